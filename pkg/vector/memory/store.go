// Package memory is an in-process vector store with exact cosine ranking.
package memory

import (
	"context"
	"sync"

	"github.com/andrew/textbook-rag/pkg/models"
	"github.com/andrew/textbook-rag/pkg/vector"
)

// Store keeps one collection in memory
type Store struct {
	mu      sync.RWMutex
	created bool
	dim     int
	index   map[string]int
	records []models.Record
	vectors [][]float32
}

var _ vector.Store = (*Store)(nil)

// New returns a store whose collection does not exist yet
func New() *Store {
	return &Store{}
}

// Exists reports whether Recreate has been called
func (s *Store) Exists(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.created, nil
}

// Recreate drops all points and sets the dimension
func (s *Store) Recreate(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = true
	s.dim = dim
	s.index = map[string]int{}
	s.records = nil
	s.vectors = nil
	return nil
}

// Upsert adds or replaces points by record ID
func (s *Store) Upsert(ctx context.Context, records []models.Record, vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created {
		return vector.ErrCollectionNotFound
	}
	if err := vector.CheckUpsert(records, vectors, s.dim); err != nil {
		return err
	}

	for i, r := range records {
		v := append([]float32(nil), vectors[i]...)
		if pos, ok := s.index[r.ID]; ok {
			s.records[pos] = r
			s.vectors[pos] = v
			continue
		}
		s.index[r.ID] = len(s.records)
		s.records = append(s.records, r)
		s.vectors = append(s.vectors, v)
	}
	return nil
}

// Search ranks every stored point against query
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.created {
		return nil, vector.ErrCollectionNotFound
	}
	return vector.Rank(query, s.records, s.vectors, k), nil
}

// Len returns the number of stored points
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
