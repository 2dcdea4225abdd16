// Package storage holds the in-memory state shared between the session
// orchestrator and the terminal UI.
package storage

import (
	"sync"

	"github.com/hammamikhairi/vicvoix/internal/domain"
	"github.com/hammamikhairi/vicvoix/internal/logger"
)

// CatalogStore keeps the most recently fetched voice catalog. The catalog
// is only ever replaced wholesale. Safe for concurrent access.
type CatalogStore struct {
	mu     sync.RWMutex
	voices []domain.VoiceCatalogEntry
	index  map[string]int
	log    *logger.Logger
}

// NewCatalogStore creates an empty catalog.
func NewCatalogStore(log *logger.Logger) *CatalogStore {
	return &CatalogStore{
		index: make(map[string]int),
		log:   log,
	}
}

// Replace swaps in a new catalog. The slice is copied.
func (s *CatalogStore) Replace(voices []domain.VoiceCatalogEntry) {
	cp := make([]domain.VoiceCatalogEntry, len(voices))
	copy(cp, voices)
	index := make(map[string]int, len(cp))
	for i, v := range cp {
		if _, dup := index[v.ID]; !dup {
			index[v.ID] = i
		}
	}

	s.mu.Lock()
	s.voices = cp
	s.index = index
	s.mu.Unlock()

	s.log.Debug("catalog replaced, %d voices", len(cp))
}

// List returns a copy of the catalog in service order.
func (s *CatalogStore) List() []domain.VoiceCatalogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.VoiceCatalogEntry, len(s.voices))
	copy(out, s.voices)
	return out
}

// Get returns the entry with the given id.
func (s *CatalogStore) Get(id string) (domain.VoiceCatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return domain.VoiceCatalogEntry{}, domain.ErrNotFound
	}
	return s.voices[i], nil
}

// Contains reports whether id is in the current catalog.
func (s *CatalogStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// First returns the first entry, if any.
func (s *CatalogStore) First() (domain.VoiceCatalogEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.voices) == 0 {
		return domain.VoiceCatalogEntry{}, false
	}
	return s.voices[0], true
}

// Len returns the number of voices.
func (s *CatalogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.voices)
}
