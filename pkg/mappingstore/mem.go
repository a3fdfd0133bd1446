package mappingstore

import (
	"context"
	"sync"

	"github.com/r9s-ai/x12-mapper/pkg/mapping"
	"github.com/r9s-ai/x12-mapper/pkg/maperr"
)

// MemStore is an in-memory fixture store. Each fetch decodes a fresh
// document so callers never share mutable state through it.
type MemStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	fetches map[string]int
}

// NewMemStore seeds the store with path -> document source.
func NewMemStore(files map[string]string) *MemStore {
	s := &MemStore{
		files:   make(map[string][]byte, len(files)),
		fetches: map[string]int{},
	}
	for p, src := range files {
		s.files[p] = []byte(src)
	}
	return s
}

// Put adds or replaces the document at p.
func (s *MemStore) Put(p string, src string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[p] = []byte(src)
}

// Fetches reports how many times p was fetched.
func (s *MemStore) Fetches(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[p]
}

func (s *MemStore) FetchJSON(ctx context.Context, p string) (*mapping.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.fetches[p]++
	b, ok := s.files[p]
	s.mu.Unlock()
	if !ok {
		return nil, &maperr.NotFoundError{Path: p}
	}
	return mapping.Decode(p, b)
}

var _ mapping.Store = (*MemStore)(nil)
