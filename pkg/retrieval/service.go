package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/andrew/textbook-rag/pkg/llm"
	"github.com/andrew/textbook-rag/pkg/logger"
	"github.com/andrew/textbook-rag/pkg/models"
	"github.com/andrew/textbook-rag/pkg/vector"
)

// TopK is the number of records retrieved per question
const TopK = 5

// Service provides functionality for retrieving relevant records
type Service interface {
	// Retrieve returns up to TopK records for the question, most similar first
	Retrieve(ctx context.Context, question string) ([]models.SearchResult, error)
}

// Retriever embeds the question and searches the vector store
type Retriever struct {
	embedder llm.Embedder
	store    vector.Store
}

var _ Service = (*Retriever)(nil)

// NewRetriever creates a retriever over store
func NewRetriever(embedder llm.Embedder, store vector.Store) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds the question and returns the TopK nearest records
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.SearchResult, error) {
	embedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	return r.SearchByVector(ctx, embedding, TopK)
}

// SearchByVector returns at most limit records, most similar first
func (r *Retriever) SearchByVector(ctx context.Context, embedding []float32, limit int) ([]models.SearchResult, error) {
	results, err := r.store.Search(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}
	if len(results) > limit {
		results = results[:limit]
	}

	logger.Debug("🔍 Found %d relevant records", len(results))
	for i, res := range results {
		logger.Debug("🔍 [%d] Page: %s, Type: %s, Score: %.4f", i+1, pageLabel(res.Metadata.PageNumber), res.Metadata.Type, res.Score)
	}
	return results, nil
}

// FormatDocs renders the retrieved records as the context block given to the
// model and printed as sources.
func FormatDocs(results []models.SearchResult) string {
	blocks := make([]string, len(results))
	for i, res := range results {
		typ := res.Metadata.Type
		if typ == "" {
			typ = "text"
		}
		blocks[i] = fmt.Sprintf("--- Source (Page %s, Type: %s) ---\n%s", pageLabel(res.Metadata.PageNumber), typ, res.Content)
	}
	return strings.Join(blocks, "\n\n")
}

func pageLabel(page int) string {
	if page <= 0 {
		return "N/A"
	}
	return strconv.Itoa(page)
}
