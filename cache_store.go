package starmap

import (
	"sort"
	"sync"
)

// Store holds cache entries. Implementations must be safe for concurrent use.
type Store interface {
	Load(key string) (*Dataset, bool)
	Save(key string, dataset *Dataset)
	// LoadOrSave returns the existing entry for key when present, otherwise it
	// stores dataset and returns it. loaded reports which case applied.
	LoadOrSave(key string, dataset *Dataset) (actual *Dataset, loaded bool)
	Clear()
	Keys() []string
}

// MemoryStore is the default in-process Store. Entries live until Clear.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Dataset
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]*Dataset{}}
}

// Load returns the entry stored under key.
func (s *MemoryStore) Load(key string) (*Dataset, bool) {
	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	return record, ok
}

// Save stores dataset under key, replacing any existing entry.
func (s *MemoryStore) Save(key string, dataset *Dataset) {
	s.mu.Lock()
	s.records[key] = dataset
	s.mu.Unlock()
}

// LoadOrSave implements Store.
func (s *MemoryStore) LoadOrSave(key string, dataset *Dataset) (*Dataset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[key]; ok {
		return existing, true
	}
	s.records[key] = dataset
	return dataset, false
}

// Clear drops every entry.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.records = map[string]*Dataset{}
	s.mu.Unlock()
}

// Keys returns the stored keys sorted.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}
