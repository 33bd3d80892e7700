package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/andrew/textbook-rag/pkg/models"
)

var (
	// ErrCollectionNotFound is returned when searching or upserting into a
	// collection that has not been created
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch is returned when a vector does not match the
	// collection's dimension
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Store defines the interface for vector database operations
type Store interface {
	// Exists reports whether the collection has been created
	Exists(ctx context.Context) (bool, error)

	// Recreate drops the collection if present and creates it empty with
	// cosine distance and the given dimension
	Recreate(ctx context.Context, dim int) error

	// Upsert inserts or replaces records; vectors[i] belongs to records[i]
	Upsert(ctx context.Context, records []models.Record, vectors [][]float32) error

	// Search finds the k most similar records, most similar first
	Search(ctx context.Context, query []float32, k int) ([]models.SearchResult, error)

	// Close releases resources used by the vector store
	Close() error
}

// CheckUpsert validates the arguments shared by every Upsert implementation.
// dim <= 0 skips the dimension check.
func CheckUpsert(records []models.Record, vectors [][]float32, dim int) error {
	if len(records) != len(vectors) {
		return fmt.Errorf("got %d records and %d vectors", len(records), len(vectors))
	}
	if dim <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: record %s has %d, collection has %d", ErrDimensionMismatch, records[i].ID, len(v), dim)
		}
	}
	return nil
}

// Rank scores every candidate against query by cosine similarity and returns
// the k best, most similar first. Ties keep candidate order.
func Rank(query []float32, records []models.Record, vectors [][]float32, k int) []models.SearchResult {
	if k <= 0 || len(records) == 0 {
		return nil
	}

	results := make([]models.SearchResult, len(records))
	for i, rec := range records {
		results[i] = models.SearchResult{Record: rec, Score: Cosine(query, vectors[i])}
	}
	slices.SortStableFunc(results, func(a, b models.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
