package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/promptvaultdev/promptvault/internal/analyze"
	"github.com/promptvaultdev/promptvault/internal/auth"
	"github.com/promptvaultdev/promptvault/internal/billing"
	"github.com/promptvaultdev/promptvault/internal/config"
	"github.com/promptvaultdev/promptvault/internal/metrics"
	"github.com/promptvaultdev/promptvault/internal/prompts"
	"github.com/promptvaultdev/promptvault/internal/quota"
	"github.com/promptvaultdev/promptvault/internal/store"
	"github.com/promptvaultdev/promptvault/internal/testutil"
	"github.com/promptvaultdev/promptvault/internal/vault"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) (*Server, *store.Store) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.DataDir = t.TempDir()
	cfg.Analysis.Enabled = false
	cfg.Auth.OwnerEmail = "test@promptvault.local"
	for _, fn := range mutate {
		fn(cfg)
	}

	st := testutil.NewTestStore(t)
	v := vault.New()
	gate := quota.NewGate(st, cfg.Analysis.FreeMonthlyLimit)

	analyzer, err := analyze.New(st, v, gate, cfg)
	if err != nil {
		t.Fatalf("analyze.New: %v", err)
	}
	mgr, err := auth.NewManager(v, cfg)
	if err != nil {
		t.Fatalf("auth.NewManager: %v", err)
	}

	srv := New(cfg, Deps{
		Store:     st,
		Prompts:   prompts.NewService(st),
		Analyzer:  analyzer,
		Gate:      gate,
		Billing:   billing.NewService(st, v, cfg),
		Auth:      mgr,
		Collector: metrics.NewCollector(),
	})
	return srv, st
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
}

func TestPromptLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	// Create.
	w := doJSON(t, srv, "POST", "/api/prompts", map[string]any{
		"title":   "Email hook generator",
		"content": "Write 5 email subject lines for {{topic}}",
		"source":  "chatgpt",
		"tags":    []string{"Email", "hooks"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status: got %d, body %s", w.Code, w.Body.String())
	}
	var created promptJSON
	decode(t, w, &created)
	if created.CurrentVersion != 1 {
		t.Errorf("current_version: got %d, want 1", created.CurrentVersion)
	}
	if len(created.Tags) != 2 || created.Tags[0].Name != "email" {
		t.Errorf("tags: %+v", created.Tags)
	}

	// List with substring filter.
	w = doJSON(t, srv, "GET", "/api/prompts?query=subject+lines", nil)
	var list struct {
		Prompts []promptJSON `json:"prompts"`
		Count   int          `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 1 {
		t.Fatalf("list count: got %d", list.Count)
	}

	// Content update bumps the version exactly once.
	w = doJSON(t, srv, "PATCH", "/api/prompts/"+created.ID, map[string]any{
		"content":      "Write 10 email subject lines for {{topic}}",
		"change_notes": "More variants",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status: got %d, body %s", w.Code, w.Body.String())
	}
	var updated promptJSON
	decode(t, w, &updated)
	if updated.CurrentVersion != 2 {
		t.Errorf("version after content change: got %d, want 2", updated.CurrentVersion)
	}

	// Detail includes version history, newest first.
	w = doJSON(t, srv, "GET", "/api/prompts/"+created.ID, nil)
	var detail promptJSON
	decode(t, w, &detail)
	if len(detail.Versions) != 2 {
		t.Fatalf("versions: got %d, want 2", len(detail.Versions))
	}
	if detail.Versions[0].ChangeNotes != "More variants" {
		t.Errorf("newest version notes: %q", detail.Versions[0].ChangeNotes)
	}

	// Use counter.
	if w = doJSON(t, srv, "POST", "/api/prompts/"+created.ID+"/use", nil); w.Code != http.StatusOK {
		t.Fatalf("use status: got %d", w.Code)
	}

	// Delete, then 404.
	if w = doJSON(t, srv, "DELETE", "/api/prompts/"+created.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("delete status: got %d", w.Code)
	}
	if w = doJSON(t, srv, "GET", "/api/prompts/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", w.Code)
	}
}

func TestCreatePrompt_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, "POST", "/api/prompts", map[string]any{
		"content": "no title",
		"source":  "chatgpt",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["field"] != "title" {
		t.Errorf("field: got %q", body["field"])
	}
}

func TestDuplicateTagConflicts(t *testing.T) {
	srv, _ := newTestServer(t)

	if w := doJSON(t, srv, "POST", "/api/tags", map[string]string{"name": "hooks"}); w.Code != http.StatusCreated {
		t.Fatalf("first create: got %d", w.Code)
	}
	if w := doJSON(t, srv, "POST", "/api/tags", map[string]string{"name": "hooks"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate create: got %d, want 409", w.Code)
	}
}

func TestShareFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	var col collectionJSON
	w := doJSON(t, srv, "POST", "/api/collections", map[string]string{"name": "Writing"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create collection: got %d", w.Code)
	}
	decode(t, w, &col)

	w = doJSON(t, srv, "POST", "/api/prompts", map[string]any{
		"title":         "Outline builder",
		"content":       "# Outline\n\nBuild an outline for {{topic}}",
		"source":        "claude",
		"collection_id": col.ID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create prompt: got %d", w.Code)
	}

	// Enable sharing.
	w = doJSON(t, srv, "POST", "/api/collections/"+col.ID+"/share", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("share: got %d", w.Code)
	}
	var shared struct {
		ShareToken string `json:"share_token"`
		ShareURL   string `json:"share_url"`
	}
	decode(t, w, &shared)
	if len(shared.ShareToken) != 32 {
		t.Fatalf("token: %q", shared.ShareToken)
	}
	if !strings.HasSuffix(shared.ShareURL, "/share/"+shared.ShareToken) {
		t.Errorf("share url: %q", shared.ShareURL)
	}

	// Public JSON view masks the owner.
	w = doJSON(t, srv, "GET", "/api/share/"+shared.ShareToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("public share: got %d", w.Code)
	}
	var view struct {
		Owner   string       `json:"owner"`
		Prompts []promptJSON `json:"prompts"`
	}
	decode(t, w, &view)
	if view.Owner != "te***@promptvault.local" {
		t.Errorf("owner: got %q", view.Owner)
	}
	if len(view.Prompts) != 1 {
		t.Fatalf("prompts: got %d", len(view.Prompts))
	}

	// Public HTML page renders the markdown content.
	req := httptest.NewRequest("GET", "/share/"+shared.ShareToken, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("html share: got %d", rec.Code)
	}
	page := rec.Body.String()
	if !strings.Contains(page, "<h1>Outline</h1>") {
		t.Errorf("markdown heading not rendered: %s", page)
	}
	if !strings.Contains(page, "te***@promptvault.local") {
		t.Error("owner missing from share page")
	}

	// Disable sharing kills the link.
	if w = doJSON(t, srv, "DELETE", "/api/collections/"+col.ID+"/share", nil); w.Code != http.StatusOK {
		t.Fatalf("unshare: got %d", w.Code)
	}
	if w = doJSON(t, srv, "GET", "/api/share/"+shared.ShareToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("share after disable: got %d, want 404", w.Code)
	}
}

// stubProvider satisfies analyze.Provider with a canned reply.
type stubProvider struct{ body string }

func (p *stubProvider) Complete(ctx context.Context, system, user string) (string, int, int, error) {
	return p.body, 120, 40, nil
}

func TestAnalyzeFallbackAndQuota(t *testing.T) {
	srv, st := newTestServer(t)

	acct, err := st.EnsureAccount("test@promptvault.local")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	sub, err := st.EnsureSubscription(acct.ID, int64(config.DefaultConfig().Analysis.FreeMonthlyLimit))
	if err != nil {
		t.Fatalf("subscription: %v", err)
	}

	w := doJSON(t, srv, "POST", "/api/ai/analyze", map[string]string{
		"content": "Write a marketing email for our launch",
		"source":  "chatgpt",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("analyze status: got %d, body %s", w.Code, w.Body.String())
	}
	var result analyze.Result
	decode(t, w, &result)
	if result.AIPowered {
		t.Error("fallback analysis flagged as ai_powered")
	}
	if result.Title != "Write a marketing email for our launch" {
		t.Errorf("title: %q", result.Title)
	}

	// The keyless fallback path is free.
	sub, err = st.GetSubscription(acct.ID)
	if err != nil {
		t.Fatalf("re-read subscription: %v", err)
	}
	if sub.AIAnalysesUsed != 0 {
		t.Errorf("fallback consumed allowance: used=%d", sub.AIAnalysesUsed)
	}

	// With a provider and an exhausted allowance, expect the quota body.
	srv.analyzer.SetProvider(&stubProvider{body: testutil.SampleAnalysisJSON()})
	sub.AIAnalysesUsed = sub.AIAnalysesLimit
	if err := st.SaveSubscription(sub); err != nil {
		t.Fatalf("save: %v", err)
	}

	w = doJSON(t, srv, "POST", "/api/ai/analyze", map[string]string{"content": "another"})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("quota status: got %d, want 402", w.Code)
	}
	var quotaBody map[string]any
	decode(t, w, &quotaBody)
	if quotaBody["error"] != "quota_exceeded" {
		t.Errorf("quota body: %v", quotaBody)
	}

	// Denial leaves the counter untouched.
	sub, err = st.GetSubscription(acct.ID)
	if err != nil {
		t.Fatalf("re-read subscription: %v", err)
	}
	if sub.AIAnalysesUsed != sub.AIAnalysesLimit {
		t.Errorf("denied analyze mutated counter: used=%d", sub.AIAnalysesUsed)
	}
}

func TestAnalyzeCacheHitKeepsAllowance(t *testing.T) {
	srv, st := newTestServer(t)
	srv.analyzer.SetProvider(&stubProvider{body: testutil.SampleAnalysisJSON()})

	body := map[string]string{
		"content": "Write a marketing email for our launch",
		"source":  "chatgpt",
	}
	w := doJSON(t, srv, "POST", "/api/ai/analyze", body)
	if w.Code != http.StatusOK {
		t.Fatalf("first analyze: got %d, body %s", w.Code, w.Body.String())
	}
	var first analyze.Result
	decode(t, w, &first)
	if !first.AIPowered || first.CacheHit {
		t.Fatalf("first call: ai_powered=%v cache_hit=%v", first.AIPowered, first.CacheHit)
	}

	w = doJSON(t, srv, "POST", "/api/ai/analyze", body)
	if w.Code != http.StatusOK {
		t.Fatalf("second analyze: got %d, body %s", w.Code, w.Body.String())
	}
	var second analyze.Result
	decode(t, w, &second)
	if !second.CacheHit {
		t.Fatal("second call missed cache")
	}

	// Only the provider call was charged.
	acct, err := st.EnsureAccount("test@promptvault.local")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	sub, err := st.GetSubscription(acct.ID)
	if err != nil {
		t.Fatalf("subscription: %v", err)
	}
	if sub.AIAnalysesUsed != 1 {
		t.Errorf("used: got %d, want 1 (cache hit must be free)", sub.AIAnalysesUsed)
	}
}

func TestSubscriptionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, "GET", "/api/subscription", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var body struct {
		Subscription subscriptionJSON `json:"subscription"`
		IsPro        bool             `json:"is_pro"`
		CanUseAI     bool             `json:"can_use_ai"`
		AIRemaining  int64            `json:"ai_remaining"`
	}
	decode(t, w, &body)
	if body.Subscription.PlanType != "free" || body.IsPro {
		t.Errorf("plan: %+v", body)
	}
	if !body.CanUseAI || body.AIRemaining != int64(config.DefaultConfig().Analysis.FreeMonthlyLimit) {
		t.Errorf("allowance: can_use_ai=%v remaining=%d", body.CanUseAI, body.AIRemaining)
	}
}

func TestStatsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, srv, "POST", "/api/prompts", map[string]any{
		"title": "P", "content": "C", "source": "other",
	})

	w := doJSON(t, srv, "GET", "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats status: got %d", w.Code)
	}
	var stats struct {
		Library map[string]int64 `json:"library"`
		Runtime *metrics.Stats   `json:"runtime"`
	}
	decode(t, w, &stats)
	if stats.Library["total"] != 1 {
		t.Errorf("library total: got %d", stats.Library["total"])
	}
	if stats.Runtime == nil || stats.Runtime.PromptsCreated != 1 {
		t.Errorf("runtime: %+v", stats.Runtime)
	}

	if w = doJSON(t, srv, "GET", "/api/stats/history?range=7d", nil); w.Code != http.StatusOK {
		t.Fatalf("history status: got %d", w.Code)
	}
	if w = doJSON(t, srv, "GET", "/api/stats/history?range=nope", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad range: got %d, want 400", w.Code)
	}
}

func TestWebhookBadSignatures(t *testing.T) {
	srv, st := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=bad")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("stripe: got %d, want 401", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/webhooks/lemonsqueezy", strings.NewReader(`{}`))
	req.Header.Set("X-Signature", "deadbeef")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("lemonsqueezy: got %d, want 401", w.Code)
	}

	acct, _ := st.EnsureAccount("test@promptvault.local")
	if _, err := st.GetSubscription(acct.ID); err == nil {
		t.Error("rejected webhook mutated subscription state")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, srv, "POST", "/api/prompts", map[string]any{
		"title": "P", "content": "C", "source": "other",
	})

	w := doJSON(t, srv, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "promptvault_prompts_created_total 1") {
		t.Errorf("metrics body missing counter:\n%s", w.Body.String())
	}
}

func TestAuthRequiredWhenEnabled(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.Token = "dashboard-token"
		cfg.Auth.ExtensionKey = "ext-key"
	})

	// No credentials.
	if w := doJSON(t, srv, "GET", "/api/prompts", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: got %d, want 401", w.Code)
	}

	// Linking exchanges the dashboard token for a JWT.
	w := doJSON(t, srv, "POST", "/api/auth/link", map[string]string{"token": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad link token: got %d, want 401", w.Code)
	}
	w = doJSON(t, srv, "POST", "/api/auth/link", map[string]string{"token": "dashboard-token"})
	if w.Code != http.StatusOK {
		t.Fatalf("link: got %d", w.Code)
	}
	var link struct {
		Token string `json:"token"`
	}
	decode(t, w, &link)

	req := httptest.NewRequest("GET", "/api/prompts", nil)
	req.Header.Set("Authorization", "Bearer "+link.Token)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("jwt auth: got %d, body %s", rec.Code, rec.Body.String())
	}

	// The extension key works as a bearer credential too.
	req = httptest.NewRequest("GET", "/api/prompts", nil)
	req.Header.Set("X-Extension-Key", "ext-key")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("extension key auth: got %d", rec.Code)
	}

	// Health stays public.
	if w := doJSON(t, srv, "GET", "/api/health", nil); w.Code != http.StatusOK {
		t.Errorf("health with auth on: got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/prompts", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status: got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "chrome-extension://abcdef" {
		t.Errorf("allow-origin: got %q", got)
	}
}

func TestDashboardServed(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, "GET", "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "PromptVault") {
		t.Error("dashboard page missing")
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type: %q", ct)
	}
}

func TestUnknownPromptIs404(t *testing.T) {
	srv, _ := newTestServer(t)
	id := fmt.Sprintf("%032x", 0)
	if w := doJSON(t, srv, "GET", "/api/prompts/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", w.Code)
	}
}
