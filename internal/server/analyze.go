package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/promptvaultdev/promptvault/internal/quota"
)

// handleAnalyze runs the analyzer, which meters its own provider
// calls: cache hits and fallback analyses never consume allowance.
// Quota denials come back as 402 with a machine-readable body;
// provider trouble never fails the request, it degrades inside the
// analyzer.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
		Source  string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	acct := accountFrom(r)
	result, err := s.analyzer.Analyze(r.Context(), acct.ID, body.Content, body.Source)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if result.QuotaDenied {
		if s.collector != nil {
			s.collector.QuotaDenied()
		}
		plan := "free"
		if status, err := s.gate.Status(acct.ID); err == nil {
			plan = status.Plan
		}
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":     "quota_exceeded",
			"remaining": 0,
			"plan":      plan,
		})
		return
	}
	if s.collector != nil {
		s.collector.AnalysisServed(result.AIPowered, result.CacheHit)
	}
	writeJSON(w, http.StatusOK, result)
}

type subscriptionJSON struct {
	PlanType           string `json:"plan_type"`
	Status             string `json:"status"`
	Processor          string `json:"processor,omitempty"`
	CurrentPeriodStart string `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   string `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	AIAnalysesUsed     int64  `json:"ai_analyses_used"`
	AIAnalysesLimit    int64  `json:"ai_analyses_limit"`
}

// handleSubscription reports the caller's plan and remaining analysis
// allowance.
func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r)

	sub, err := s.store.EnsureSubscription(acct.ID, int64(s.cfg.Analysis.FreeMonthlyLimit))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status, err := s.gate.Status(acct.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	isPro := sub.PlanType == "pro" || sub.PlanType == "lifetime"
	writeJSON(w, http.StatusOK, map[string]any{
		"subscription": subscriptionJSON{
			PlanType:           sub.PlanType,
			Status:             sub.Status,
			Processor:          sub.Processor,
			CurrentPeriodStart: sub.CurrentPeriodStart.String,
			CurrentPeriodEnd:   sub.CurrentPeriodEnd.String,
			CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
			AIAnalysesUsed:     sub.AIAnalysesUsed,
			AIAnalysesLimit:    sub.AIAnalysesLimit,
		},
		"is_pro":       isPro,
		"can_use_ai":   isPro || status.Remaining > 0 || status.Remaining == quota.Unlimited,
		"ai_remaining": status.Remaining,
	})
}

// handleStats merges live collector counters with library totals.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	library, err := s.svc.Stats(accountFrom(r).ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var collectorStats any
	if s.collector != nil {
		collectorStats = s.collector.Stats()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"library": map[string]int64{
			"total":       library.Total,
			"favorites":   library.Favorites,
			"added_in_7d": library.AddedIn7d,
		},
		"runtime": collectorStats,
	})
}

// handleStatsHistory returns daily analysis aggregates.
// Accepts ?range=1d, 7d, 30d (default 7d).
func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	days := parseRangeDays(r.URL.Query().Get("range"), 7)
	if days <= 0 {
		writeError(w, http.StatusBadRequest, "invalid range parameter")
		return
	}

	rows, err := s.store.AnalysisHistory(days)
	if err != nil {
		log.Error().Err(err).Msg("server: stats history")
		writeServiceError(w, err)
		return
	}

	type historyPoint struct {
		Day       string  `json:"day"`
		Calls     int64   `json:"calls"`
		AIPowered int64   `json:"ai_powered"`
		CacheHits int64   `json:"cache_hits"`
		TokensIn  int64   `json:"tokens_in"`
		TokensOut int64   `json:"tokens_out"`
		CostUSD   float64 `json:"cost_usd"`
	}
	points := make([]historyPoint, 0, len(rows))
	for _, d := range rows {
		points = append(points, historyPoint{
			Day:       d.Day,
			Calls:     d.Calls,
			AIPowered: d.AIPowered,
			CacheHits: d.CacheHits,
			TokensIn:  d.TokensIn,
			TokensOut: d.TokensOut,
			CostUSD:   d.CostUSD,
		})
	}
	writeJSON(w, http.StatusOK, points)
}

// parseRangeDays converts a shorthand like "7d" or "30d" into a day
// count. Anything unparseable returns -1.
func parseRangeDays(s string, defaultDays int) int {
	if s == "" {
		return defaultDays
	}
	if len(s) < 2 || s[len(s)-1] != 'd' {
		return -1
	}
	days := 0
	for _, ch := range s[:len(s)-1] {
		if ch < '0' || ch > '9' {
			return -1
		}
		days = days*10 + int(ch-'0')
	}
	return days
}
