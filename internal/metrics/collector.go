// Package metrics tracks live service counters and exposes them in
// Prometheus text format. Counters are in-memory and reset on restart;
// durable history comes from the analysis log in the store.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks live metrics. Scalar counters use atomics; the
// labeled command and webhook maps sit behind a mutex.
type Collector struct {
	promptsCreated  int64
	versionsCreated int64

	analysesAI       int64
	analysesFallback int64
	analysesCached   int64
	quotaDenials     int64
	sharedFetches    int64

	activeRequests int64

	mu            sync.Mutex
	telegramCmds  map[string]int64
	webhookEvents map[string]int64

	startTime time.Time
}

// Stats is a point-in-time snapshot of the collector's counters,
// suitable for JSON serialisation and display on the dashboard.
type Stats struct {
	Uptime           string           `json:"uptime"`
	PromptsCreated   int64            `json:"prompts_created"`
	VersionsCreated  int64            `json:"versions_created"`
	AnalysesTotal    int64            `json:"analyses_total"`
	AnalysesAI       int64            `json:"analyses_ai"`
	AnalysesFallback int64            `json:"analyses_fallback"`
	AnalysesCached   int64            `json:"analyses_cached"`
	CacheHitRate     float64          `json:"cache_hit_rate"`
	QuotaDenials     int64            `json:"quota_denials"`
	SharedFetches    int64            `json:"shared_fetches"`
	TelegramCommands map[string]int64 `json:"telegram_commands"`
	WebhookEvents    map[string]int64 `json:"webhook_events"`
	ActiveRequests   int64            `json:"active_requests"`
}

// NewCollector creates a Collector with all counters at zero and the
// start time set to now.
func NewCollector() *Collector {
	return &Collector{
		telegramCmds:  make(map[string]int64),
		webhookEvents: make(map[string]int64),
		startTime:     time.Now(),
	}
}

// PromptCreated records one saved prompt.
func (c *Collector) PromptCreated() {
	atomic.AddInt64(&c.promptsCreated, 1)
}

// VersionCreated records one content revision.
func (c *Collector) VersionCreated() {
	atomic.AddInt64(&c.versionsCreated, 1)
}

// AnalysisServed records one analysis by how it was produced.
func (c *Collector) AnalysisServed(aiPowered, cacheHit bool) {
	switch {
	case cacheHit:
		atomic.AddInt64(&c.analysesCached, 1)
	case aiPowered:
		atomic.AddInt64(&c.analysesAI, 1)
	default:
		atomic.AddInt64(&c.analysesFallback, 1)
	}
}

// QuotaDenied records one analysis request rejected by the usage gate.
func (c *Collector) QuotaDenied() {
	atomic.AddInt64(&c.quotaDenials, 1)
}

// SharedFetch records one public share-link view.
func (c *Collector) SharedFetch() {
	atomic.AddInt64(&c.sharedFetches, 1)
}

// TelegramCommand records one handled bot command by name.
func (c *Collector) TelegramCommand(cmd string) {
	c.mu.Lock()
	c.telegramCmds[cmd]++
	c.mu.Unlock()
}

// WebhookEvent records one processed billing webhook by processor.
func (c *Collector) WebhookEvent(processor string) {
	c.mu.Lock()
	c.webhookEvents[processor]++
	c.mu.Unlock()
}

// IncrementActive increments the in-flight request counter.
func (c *Collector) IncrementActive() {
	atomic.AddInt64(&c.activeRequests, 1)
}

// DecrementActive decrements the in-flight request counter.
func (c *Collector) DecrementActive() {
	atomic.AddInt64(&c.activeRequests, -1)
}

// Stats returns a point-in-time snapshot of all counters.
func (c *Collector) Stats() *Stats {
	ai := atomic.LoadInt64(&c.analysesAI)
	fallback := atomic.LoadInt64(&c.analysesFallback)
	cached := atomic.LoadInt64(&c.analysesCached)
	total := ai + fallback + cached

	var hitRate float64
	if total > 0 {
		hitRate = float64(cached) / float64(total) * 100
	}

	c.mu.Lock()
	cmds := make(map[string]int64, len(c.telegramCmds))
	for k, v := range c.telegramCmds {
		cmds[k] = v
	}
	hooks := make(map[string]int64, len(c.webhookEvents))
	for k, v := range c.webhookEvents {
		hooks[k] = v
	}
	c.mu.Unlock()

	return &Stats{
		Uptime:           formatDuration(time.Since(c.startTime)),
		PromptsCreated:   atomic.LoadInt64(&c.promptsCreated),
		VersionsCreated:  atomic.LoadInt64(&c.versionsCreated),
		AnalysesTotal:    total,
		AnalysesAI:       ai,
		AnalysesFallback: fallback,
		AnalysesCached:   cached,
		CacheHitRate:     hitRate,
		QuotaDenials:     atomic.LoadInt64(&c.quotaDenials),
		SharedFetches:    atomic.LoadInt64(&c.sharedFetches),
		TelegramCommands: cmds,
		WebhookEvents:    hooks,
		ActiveRequests:   atomic.LoadInt64(&c.activeRequests),
	}
}

// formatDuration produces a human-readable duration string like "2d 5h 32m".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Second).String()
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return formatWithUnits(days, "d", hours, "h", minutes, "m")
	}
	if hours > 0 {
		return formatWithUnits(hours, "h", minutes, "m", 0, "")
	}
	return formatWithUnits(minutes, "m", 0, "", 0, "")
}

// formatWithUnits builds a compact duration string from up to three components.
func formatWithUnits(v1 int, u1 string, v2 int, u2 string, v3 int, u3 string) string {
	s := ""
	if v1 > 0 {
		s += intStr(v1) + u1
	}
	if v2 > 0 {
		if s != "" {
			s += " "
		}
		s += intStr(v2) + u2
	}
	if v3 > 0 && u3 != "" {
		if s != "" {
			s += " "
		}
		s += intStr(v3) + u3
	}
	if s == "" {
		return "0m"
	}
	return s
}

// intStr converts an int to its string representation without importing strconv.
func intStr(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + intStr(-n)
	}
	digits := make([]byte, 0, 10)
	for n > 0 {
		digits = append(digits, byte('0'+n%10))
		n /= 10
	}
	// reverse
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}
