package offline

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps encoded records in process memory. It is used when no
// cache directory is configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Write implements Store.
func (s *MemoryStore) Write(_ context.Context, key string, rec Record) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records[key] = data
	s.mu.Unlock()
	return nil
}

// Read implements Store.
func (s *MemoryStore) Read(_ context.Context, key string) (Record, bool) {
	s.mu.RLock()
	data, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return Record{}, false
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return Record{}, false
	}
	return rec, true
}

// PruneBefore implements Pruner.
func (s *MemoryStore) PruneBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.records {
		if expired(key, cutoff) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
