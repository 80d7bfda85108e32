package cache

import "sync"

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	opts    options
	upserts int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		entries: map[string]Entry{},
		opts:    buildOptions(opts),
	}
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(ids []string) ([]Entry, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return split(s.entries, ids, s.opts.now())
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	s.upserts++
	return nil
}

// Get returns the stored entry regardless of freshness.
func (s *MemoryStore) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Upserts returns how many times Upsert was called.
func (s *MemoryStore) Upserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}
