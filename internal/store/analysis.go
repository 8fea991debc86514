package store

import (
	"database/sql"
	"fmt"
	"time"
)

// AnalysisCacheEntry is a persisted analysis result keyed by content hash.
type AnalysisCacheEntry struct {
	Key       string
	Body      []byte
	Model     string
	CreatedAt string
	ExpiresAt string
	HitCount  int64
	LastHit   sql.NullString
}

// GetAnalysisCache retrieves a cache entry by its key.
// Returns sql.ErrNoRows (wrapped) if the key does not exist.
func (s *Store) GetAnalysisCache(key string) (*AnalysisCacheEntry, error) {
	c := &AnalysisCacheEntry{}
	err := s.reader.QueryRow(`
		SELECT key, body, model, created_at, expires_at, hit_count, last_hit
		FROM analysis_cache WHERE key = ?`, key,
	).Scan(&c.Key, &c.Body, &c.Model, &c.CreatedAt, &c.ExpiresAt, &c.HitCount, &c.LastHit)
	if err != nil {
		return nil, fmt.Errorf("store: get analysis cache %s: %w", key, err)
	}
	return c, nil
}

// SetAnalysisCache inserts or replaces a cache entry.
func (s *Store) SetAnalysisCache(c *AnalysisCacheEntry) error {
	_, err := s.writer.Exec(`
		INSERT OR REPLACE INTO analysis_cache (
			key, body, model, created_at, expires_at, hit_count, last_hit
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Key, c.Body, c.Model, c.CreatedAt, c.ExpiresAt, c.HitCount, c.LastHit,
	)
	if err != nil {
		return fmt.Errorf("store: set analysis cache: %w", err)
	}
	return nil
}

// TouchAnalysisCache atomically increments the hit counter for a cache
// entry and updates last_hit to the current time.
func (s *Store) TouchAnalysisCache(key string) error {
	_, err := s.writer.Exec(`
		UPDATE analysis_cache SET hit_count = hit_count + 1, last_hit = ?
		WHERE key = ?`, now(), key,
	)
	if err != nil {
		return fmt.Errorf("store: touch analysis cache: %w", err)
	}
	return nil
}

// DeleteExpiredAnalysisCache removes cache entries past their expiry.
func (s *Store) DeleteExpiredAnalysisCache() error {
	_, err := s.writer.Exec("DELETE FROM analysis_cache WHERE expires_at < ?", now())
	if err != nil {
		return fmt.Errorf("store: delete expired analysis cache: %w", err)
	}
	return nil
}

// AnalysisRecord is one row in the provider call log.
type AnalysisRecord struct {
	ID           string
	Timestamp    string
	AccountID    string
	Model        string
	Source       string
	TokensIn     int64
	TokensOut    int64
	CostUSD      float64
	LatencyMs    int64
	AIPowered    bool
	CacheHit     bool
	ErrorMessage string
}

// InsertAnalysisRecord stores a new analysis log entry. The caller is
// responsible for providing a unique ID (typically a UUID).
func (s *Store) InsertAnalysisRecord(r *AnalysisRecord) error {
	aiInt, cacheInt := 0, 0
	if r.AIPowered {
		aiInt = 1
	}
	if r.CacheHit {
		cacheInt = 1
	}

	_, err := s.writer.Exec(`
		INSERT INTO analysis_log (
			id, timestamp, account_id, model, source,
			tokens_in, tokens_out, cost_usd, latency_ms,
			ai_powered, cache_hit, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp, r.AccountID, r.Model, r.Source,
		r.TokensIn, r.TokensOut, r.CostUSD, r.LatencyMs,
		aiInt, cacheInt, r.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("store: insert analysis record: %w", err)
	}
	return nil
}

// AnalysisDay aggregates one day of analysis activity.
type AnalysisDay struct {
	Day       string
	Calls     int64
	AIPowered int64
	CacheHits int64
	TokensIn  int64
	TokensOut int64
	CostUSD   float64
}

// AnalysisHistory returns per-day aggregates for the last `days` days,
// oldest first.
func (s *Store) AnalysisHistory(days int) ([]*AnalysisDay, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	rows, err := s.reader.Query(`
		SELECT substr(timestamp, 1, 10) AS day,
		       COUNT(*),
		       COALESCE(SUM(ai_powered), 0),
		       COALESCE(SUM(cache_hit), 0),
		       COALESCE(SUM(tokens_in), 0),
		       COALESCE(SUM(tokens_out), 0),
		       COALESCE(SUM(cost_usd), 0.0)
		FROM analysis_log
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day`, since,
	)
	if err != nil {
		return nil, fmt.Errorf("store: analysis history: %w", err)
	}
	defer rows.Close()

	var results []*AnalysisDay
	for rows.Next() {
		d := &AnalysisDay{}
		if err := rows.Scan(
			&d.Day, &d.Calls, &d.AIPowered, &d.CacheHits,
			&d.TokensIn, &d.TokensOut, &d.CostUSD,
		); err != nil {
			return nil, fmt.Errorf("store: scan analysis day: %w", err)
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: analysis history iteration: %w", err)
	}
	return results, nil
}
