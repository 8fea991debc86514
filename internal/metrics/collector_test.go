package metrics

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewCollector_Defaults(t *testing.T) {
	c := NewCollector()

	stats := c.Stats()
	if stats.PromptsCreated != 0 {
		t.Errorf("PromptsCreated: got %d, want 0", stats.PromptsCreated)
	}
	if stats.AnalysesTotal != 0 {
		t.Errorf("AnalysesTotal: got %d, want 0", stats.AnalysesTotal)
	}
	if stats.ActiveRequests != 0 {
		t.Errorf("ActiveRequests: got %d, want 0", stats.ActiveRequests)
	}
}

func TestCollector_AnalysisBuckets(t *testing.T) {
	c := NewCollector()

	c.AnalysisServed(true, false)
	c.AnalysisServed(true, false)
	c.AnalysisServed(false, false)
	c.AnalysisServed(true, true) // cached wins over ai

	stats := c.Stats()
	if stats.AnalysesAI != 2 {
		t.Errorf("AnalysesAI: got %d, want 2", stats.AnalysesAI)
	}
	if stats.AnalysesFallback != 1 {
		t.Errorf("AnalysesFallback: got %d, want 1", stats.AnalysesFallback)
	}
	if stats.AnalysesCached != 1 {
		t.Errorf("AnalysesCached: got %d, want 1", stats.AnalysesCached)
	}
	if stats.AnalysesTotal != 4 {
		t.Errorf("AnalysesTotal: got %d, want 4", stats.AnalysesTotal)
	}
	if stats.CacheHitRate != 25 {
		t.Errorf("CacheHitRate: got %g, want 25", stats.CacheHitRate)
	}
}

func TestCollector_LabeledCounters(t *testing.T) {
	c := NewCollector()

	c.TelegramCommand("/save")
	c.TelegramCommand("/save")
	c.TelegramCommand("/stats")
	c.WebhookEvent("stripe")

	stats := c.Stats()
	if stats.TelegramCommands["/save"] != 2 || stats.TelegramCommands["/stats"] != 1 {
		t.Errorf("TelegramCommands: %v", stats.TelegramCommands)
	}
	if stats.WebhookEvents["stripe"] != 1 {
		t.Errorf("WebhookEvents: %v", stats.WebhookEvents)
	}
}

func TestCollector_ActiveRequests(t *testing.T) {
	c := NewCollector()

	c.IncrementActive()
	c.IncrementActive()
	c.DecrementActive()

	if got := c.Stats().ActiveRequests; got != 1 {
		t.Errorf("ActiveRequests: got %d, want 1", got)
	}
}

func TestCollector_ConcurrentUpdates(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.PromptCreated()
				c.AnalysisServed(false, false)
				c.TelegramCommand("/recent")
			}
		}()
	}
	wg.Wait()

	stats := c.Stats()
	if stats.PromptsCreated != 1000 {
		t.Errorf("PromptsCreated: got %d, want 1000", stats.PromptsCreated)
	}
	if stats.AnalysesFallback != 1000 {
		t.Errorf("AnalysesFallback: got %d, want 1000", stats.AnalysesFallback)
	}
	if stats.TelegramCommands["/recent"] != 1000 {
		t.Errorf("TelegramCommands: %v", stats.TelegramCommands)
	}
}

func TestPrometheusHandler(t *testing.T) {
	c := NewCollector()
	c.PromptCreated()
	c.AnalysisServed(true, false)
	c.QuotaDenied()
	c.TelegramCommand("/save")
	c.WebhookEvent("lemonsqueezy")

	w := httptest.NewRecorder()
	PrometheusHandler(c)(w, httptest.NewRequest("GET", "/metrics", nil))

	body := w.Body.String()
	for _, want := range []string{
		"# TYPE promptvault_prompts_created_total counter",
		"promptvault_prompts_created_total 1",
		"promptvault_analyses_ai_total 1",
		"promptvault_quota_denials_total 1",
		`promptvault_telegram_commands_total{command="/save"} 1`,
		`promptvault_webhook_events_total{processor="lemonsqueezy"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type: %q", ct)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{90 * time.Minute, "1h 30m"},
		{26*time.Hour + 5*time.Minute, "1d 2h 5m"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.in); got != tc.want {
			t.Errorf("formatDuration(%v): got %q, want %q", tc.in, got, tc.want)
		}
	}
}
