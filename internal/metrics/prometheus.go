package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"time"
)

// PrometheusHandler returns an http.HandlerFunc that writes metrics in
// Prometheus text exposition format (version 0.0.4). It does not require the
// Prometheus client library; metrics are formatted manually.
func PrometheusHandler(collector *Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := collector.Stats()
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		uptimeSeconds := time.Since(collector.startTime).Seconds()

		writeMetric(w, "promptvault_prompts_created_total",
			"Total number of prompts saved.",
			"counter", stats.PromptsCreated)

		writeMetric(w, "promptvault_versions_created_total",
			"Total number of prompt content revisions recorded.",
			"counter", stats.VersionsCreated)

		writeMetric(w, "promptvault_analyses_total",
			"Total number of prompt analyses served.",
			"counter", stats.AnalysesTotal)

		writeMetric(w, "promptvault_analyses_ai_total",
			"Analyses answered by the AI provider.",
			"counter", stats.AnalysesAI)

		writeMetric(w, "promptvault_analyses_fallback_total",
			"Analyses answered by the deterministic fallback.",
			"counter", stats.AnalysesFallback)

		writeMetric(w, "promptvault_analyses_cached_total",
			"Analyses answered from the cache.",
			"counter", stats.AnalysesCached)

		writeMetricFloat(w, "promptvault_analysis_cache_hit_rate",
			"Analysis cache hit rate percentage.",
			"gauge", stats.CacheHitRate)

		writeMetric(w, "promptvault_quota_denials_total",
			"Analysis requests rejected by the usage gate.",
			"counter", stats.QuotaDenials)

		writeMetric(w, "promptvault_shared_fetches_total",
			"Public share-link views.",
			"counter", stats.SharedFetches)

		writeMetric(w, "promptvault_active_requests",
			"Number of requests currently being processed.",
			"gauge", stats.ActiveRequests)

		writeMetricFloat(w, "promptvault_uptime_seconds",
			"Number of seconds since the service started.",
			"gauge", uptimeSeconds)

		writeLabeledCounter(w, "promptvault_telegram_commands_total",
			"Handled Telegram bot commands by command name.",
			"command", stats.TelegramCommands)

		writeLabeledCounter(w, "promptvault_webhook_events_total",
			"Processed billing webhook events by processor.",
			"processor", stats.WebhookEvents)
	}
}

// writeMetric writes a single integer metric in Prometheus text format.
func writeMetric(w http.ResponseWriter, name, help, metricType string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
	fmt.Fprintf(w, "%s %d\n", name, value)
}

// writeMetricFloat writes a single float64 metric in Prometheus text format.
func writeMetricFloat(w http.ResponseWriter, name, help, metricType string, value float64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
	fmt.Fprintf(w, "%s %g\n", name, value)
}

// writeLabeledCounter writes a single-label counter vec with entries in
// stable key order.
func writeLabeledCounter(w http.ResponseWriter, name, help, label string, values map[string]int64) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}
