package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/textbook-rag/pkg/models"
)

func rec(id string) models.Record {
	return models.Record{ID: id, Content: id}
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-3, 0}), 1e-6)
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 1}))
	assert.Zero(t, Cosine(nil, nil))
}

func TestRank(t *testing.T) {
	records := []models.Record{rec("a"), rec("b"), rec("c"), rec("d")}
	vectors := [][]float32{{0, 1}, {1, 0}, {1, 1}, {1, 0}}

	got := Rank([]float32{1, 0}, records, vectors, 3)
	require.Len(t, got, 3)
	// b and d tie; b was first
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "d", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	assert.Greater(t, got[1].Score, got[2].Score)
}

func TestRank_Limits(t *testing.T) {
	records := []models.Record{rec("a")}
	vectors := [][]float32{{1}}

	assert.Len(t, Rank([]float32{1}, records, vectors, 5), 1)
	assert.Empty(t, Rank([]float32{1}, records, vectors, 0))
	assert.Empty(t, Rank([]float32{1}, nil, nil, 5))
}

func TestCheckUpsert(t *testing.T) {
	records := []models.Record{rec("a"), rec("b")}

	assert.NoError(t, CheckUpsert(records, [][]float32{{1, 2}, {3, 4}}, 2))
	assert.NoError(t, CheckUpsert(records, [][]float32{{1}, {3, 4}}, 0))
	assert.Error(t, CheckUpsert(records, [][]float32{{1, 2}}, 2))
	assert.ErrorIs(t, CheckUpsert(records, [][]float32{{1, 2}, {3}}, 2), ErrDimensionMismatch)
}
