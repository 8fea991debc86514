package cache

import (
	"bytes"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Mock Backend
// ---------------------------------------------------------------------------

type mockBackend struct {
	entries map[string]*Entry
	touches int
}

func newMockBackend() *mockBackend {
	return &mockBackend{entries: make(map[string]*Entry)}
}

func (m *mockBackend) GetEntry(key string) (*Entry, error) {
	if e, ok := m.entries[key]; ok {
		return e, nil
	}
	return nil, nil
}

func (m *mockBackend) SetEntry(key string, e *Entry) error {
	m.entries[key] = e
	return nil
}

func (m *mockBackend) TouchEntry(key string) error {
	m.touches++
	return nil
}

func (m *mockBackend) DeleteExpired() error {
	for k, e := range m.entries {
		if e.Expired() {
			delete(m.entries, k)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Key tests
// ---------------------------------------------------------------------------

func TestKey_SameInputsSameKey(t *testing.T) {
	a := Key("gpt-4o-mini", "chatgpt", "content")
	b := Key("gpt-4o-mini", "chatgpt", "content")
	if a != b {
		t.Errorf("expected identical keys, got %q and %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("key length: got %d, want 64", len(a))
	}
}

func TestKey_SeparatesFields(t *testing.T) {
	// "ab" + "c" must not collide with "a" + "bc".
	if Key("m", "ab", "c") == Key("m", "a", "bc") {
		t.Error("field boundary collision")
	}
	if Key("m1", "s", "c") == Key("m2", "s", "c") {
		t.Error("model not part of key")
	}
}

// ---------------------------------------------------------------------------
// Cache tests
// ---------------------------------------------------------------------------

func TestCache_PutGet(t *testing.T) {
	c, err := New(nil, 60, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	key := Key("gpt-4o-mini", "chatgpt", "some prompt")
	c.Put(key, []byte(`{"title":"x"}`), "gpt-4o-mini")

	entry, ok := c.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !bytes.Equal(entry.Body, []byte(`{"title":"x"}`)) {
		t.Errorf("body: got %s", entry.Body)
	}
	if entry.Model != "gpt-4o-mini" {
		t.Errorf("model: got %q", entry.Model)
	}
}

func TestCache_Miss(t *testing.T) {
	c, _ := New(nil, 60, 10)
	if _, ok := c.Get("unknown"); ok {
		t.Error("expected miss")
	}
}

func TestCache_ExpiredEntryEvicted(t *testing.T) {
	c, _ := New(nil, 60, 10)
	c.memory.Add("k", &Entry{
		Body:      []byte("old"),
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if _, ok := c.Get("k"); ok {
		t.Error("expired entry returned")
	}
	if c.memory.Contains("k") {
		t.Error("expired entry not evicted")
	}
}

func TestCache_BackendPromotion(t *testing.T) {
	backend := newMockBackend()
	c, _ := New(backend, 60, 10)

	backend.entries["k"] = &Entry{
		Body:      []byte("persisted"),
		Model:     "gpt-4o-mini",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	entry, ok := c.Get("k")
	if !ok {
		t.Fatal("expected backend hit")
	}
	if string(entry.Body) != "persisted" {
		t.Errorf("body: got %s", entry.Body)
	}
	if !c.memory.Contains("k") {
		t.Error("entry not promoted to memory")
	}
	if backend.touches == 0 {
		t.Error("backend hit not recorded")
	}
}

func TestCache_PutWritesThrough(t *testing.T) {
	backend := newMockBackend()
	c, _ := New(backend, 60, 10)

	c.Put("k", []byte("v"), "gpt-4o-mini")
	if _, ok := backend.entries["k"]; !ok {
		t.Error("entry not written to backend")
	}
}

func TestCache_Purge(t *testing.T) {
	backend := newMockBackend()
	c, _ := New(backend, 60, 10)

	expired := &Entry{Body: []byte("old"), ExpiresAt: time.Now().Add(-time.Minute)}
	live := &Entry{Body: []byte("new"), ExpiresAt: time.Now().Add(time.Hour)}
	c.memory.Add("old", expired)
	c.memory.Add("new", live)
	backend.entries["old"] = expired
	backend.entries["new"] = live

	c.purge()

	if c.memory.Contains("old") {
		t.Error("expired memory entry survived purge")
	}
	if !c.memory.Contains("new") {
		t.Error("live memory entry purged")
	}
	if _, ok := backend.entries["old"]; ok {
		t.Error("expired backend entry survived purge")
	}
}
