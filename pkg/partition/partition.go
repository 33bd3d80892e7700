// Package partition splits a PDF into typed elements in document order.
package partition

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andrew/textbook-rag/pkg/config"
	"github.com/andrew/textbook-rag/pkg/models"
)

// Partitioner turns the PDF at path into elements, in document order
type Partitioner interface {
	Partition(ctx context.Context, path string) ([]models.Element, error)
}

// New returns the partitioner for the configured strategy
func New(cfg config.PartitionConfig) (Partitioner, error) {
	switch cfg.Strategy {
	case config.StrategyHiRes:
		return NewUnstructuredPartitioner(cfg.URL, cfg.APIKey, &http.Client{Timeout: cfg.Timeout()}), nil
	case config.StrategyFast:
		return NewTextPartitioner(), nil
	default:
		return nil, fmt.Errorf("unknown partition strategy %q", cfg.Strategy)
	}
}
