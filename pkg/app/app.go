// Package app builds the clients and stores both commands share from a
// loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/andrew/textbook-rag/pkg/config"
	"github.com/andrew/textbook-rag/pkg/llm"
	"github.com/andrew/textbook-rag/pkg/vector"
	"github.com/andrew/textbook-rag/pkg/vector/local"
	"github.com/andrew/textbook-rag/pkg/vector/qdrant"
)

// NewOllama creates the model server client for the configured models
func NewOllama(cfg *config.Config) (*llm.OllamaClient, error) {
	return llm.NewOllamaClient(cfg.Ollama.BaseURL, llm.Models{
		Chat:      cfg.Ollama.ChatModel,
		Vision:    cfg.Ollama.VisionModel,
		Embedding: cfg.Ollama.EmbeddingModel,
	}, cfg.Ollama.Timeout())
}

// OpenStore opens the configured vector store
func OpenStore(_ context.Context, cfg *config.Config) (vector.Store, error) {
	vs := cfg.VectorStore
	switch vs.Type {
	case config.StoreQdrant:
		s, err := qdrant.Dial(vs.Qdrant.Addr(), vs.Collection, vs.Qdrant.APIKey)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreLocal:
		s, err := local.Open(vs.Local.Path, vs.Collection)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector store type %q", vs.Type)
	}
}

// ModelHints returns the shell commands that fix a model server error
func ModelHints(err error, baseURL string) []string {
	var missing *llm.MissingModelsError
	if errors.As(err, &missing) {
		hints := make([]string, 0, len(missing.Models))
		for _, m := range missing.Models {
			hints = append(hints, "$ ollama pull "+m)
		}
		return hints
	}
	return []string{
		fmt.Sprintf("Please ensure Ollama is running at %s", baseURL),
		"$ ollama serve",
	}
}
