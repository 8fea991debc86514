package analyze

import (
	"time"

	"github.com/promptvaultdev/promptvault/internal/cache"
	"github.com/promptvaultdev/promptvault/internal/store"
)

// storeBackend adapts the SQLite store to the cache.Backend interface,
// translating between the store's string timestamps and cache entries.
type storeBackend struct {
	st *store.Store
}

func (b storeBackend) GetEntry(key string) (*cache.Entry, error) {
	row, err := b.st.GetAnalysisCache(key)
	if err != nil {
		return nil, err
	}
	created, _ := time.Parse(time.RFC3339, row.CreatedAt)
	expires, err := time.Parse(time.RFC3339, row.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &cache.Entry{
		Body:      row.Body,
		Model:     row.Model,
		CreatedAt: created,
		ExpiresAt: expires,
	}, nil
}

func (b storeBackend) SetEntry(key string, e *cache.Entry) error {
	return b.st.SetAnalysisCache(&store.AnalysisCacheEntry{
		Key:       key,
		Body:      e.Body,
		Model:     e.Model,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt: e.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (b storeBackend) TouchEntry(key string) error {
	return b.st.TouchAnalysisCache(key)
}

func (b storeBackend) DeleteExpired() error {
	return b.st.DeleteExpiredAnalysisCache()
}
