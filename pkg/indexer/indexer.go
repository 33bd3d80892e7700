// Package indexer builds the vector collection from the textbook PDF.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/andrew/textbook-rag/pkg/config"
	"github.com/andrew/textbook-rag/pkg/llm"
	"github.com/andrew/textbook-rag/pkg/logger"
	"github.com/andrew/textbook-rag/pkg/models"
	"github.com/andrew/textbook-rag/pkg/partition"
	"github.com/andrew/textbook-rag/pkg/vector"
)

var (
	// ErrPDFNotFound means the configured PDF does not exist
	ErrPDFNotFound = errors.New("PDF file not found")
	// ErrConnect means the model server or a required model is unavailable
	ErrConnect = errors.New("error initializing Ollama models")
	// ErrPartition means the PDF could not be partitioned
	ErrPartition = errors.New("error during PDF partitioning")
	// ErrNoRecords means partitioning produced nothing to index
	ErrNoRecords = errors.New("no documents were extracted")
	// ErrCollectionExists means the collection exists and recreating it was not allowed
	ErrCollectionExists = errors.New("collection already exists")
)

// ImageSummarizer describes an encoded image
type ImageSummarizer interface {
	Summarize(ctx context.Context, image []byte) (string, error)
}

// Options tunes a run
type Options struct {
	PDFPath          string
	EmbeddingModel   string
	VisionModel      string
	Recreate         bool
	EmbedBatchSize   int
	UpsertBatchSize  int
	KeepFailedImages bool
}

// OptionsFromConfig copies the indexing settings out of cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PDFPath:          cfg.PDFPath,
		EmbeddingModel:   cfg.Ollama.EmbeddingModel,
		VisionModel:      cfg.Ollama.VisionModel,
		Recreate:         cfg.Indexer.Recreate,
		EmbedBatchSize:   cfg.Indexer.EmbedBatchSize,
		UpsertBatchSize:  cfg.Indexer.UpsertBatchSize,
		KeepFailedImages: cfg.Indexer.KeepFailedImages,
	}
}

// Deps are the external services a run talks to
type Deps struct {
	Models      llm.HealthChecker
	Partitioner partition.Partitioner
	Images      ImageSummarizer
	Embedder    llm.Embedder
	Store       vector.Store
}

// Stats summarises a run
type Stats struct {
	Elements     int
	Records      int
	Tables       int
	Images       int
	ImagesFailed int
	Dropped      int
	Dimension    int
}

// Indexer runs the PDF to collection pipeline
type Indexer struct {
	opts        Options
	models      llm.HealthChecker
	partitioner partition.Partitioner
	images      ImageSummarizer
	embedder    llm.Embedder
	store       vector.Store
}

// New creates an indexer. Batch sizes <= 0 fall back to the defaults.
func New(opts Options, deps Deps) *Indexer {
	defaults := config.Default().Indexer
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = defaults.EmbedBatchSize
	}
	if opts.UpsertBatchSize <= 0 {
		opts.UpsertBatchSize = defaults.UpsertBatchSize
	}
	return &Indexer{
		opts:        opts,
		models:      deps.Models,
		partitioner: deps.Partitioner,
		images:      deps.Images,
		embedder:    deps.Embedder,
		store:       deps.Store,
	}
}

// Run indexes the PDF. The store is only modified once every record has been
// embedded.
func (ix *Indexer) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	logger.Info("Starting pipeline setup for %s...", ix.opts.PDFPath)

	if _, err := os.Stat(ix.opts.PDFPath); err != nil {
		return stats, fmt.Errorf("%w at %s", ErrPDFNotFound, ix.opts.PDFPath)
	}

	if err := llm.Connect(ctx, ix.models, ix.opts.EmbeddingModel, ix.opts.VisionModel); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	logger.Info("Ollama models initialized successfully.")

	logger.Section("Partitioning")
	logger.Info("Partitioning PDF...")
	logger.Info("This may take several minutes on first run...")
	elements, err := ix.partitioner.Partition(ctx, ix.opts.PDFPath)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrPartition, err)
	}
	stats.Elements = len(elements)
	logger.Info("PDF partitioned into %d elements. Processing elements...", len(elements))

	records, err := ix.buildRecords(ctx, elements, &stats)
	if err != nil {
		return stats, err
	}
	stats.Records = len(records)
	if len(records) == 0 {
		return stats, ErrNoRecords
	}
	logger.Info("Processed %d text, table, and image chunks.", len(records))

	exists, err := ix.store.Exists(ctx)
	if err != nil {
		return stats, err
	}
	if exists && !ix.opts.Recreate {
		return stats, ErrCollectionExists
	}

	logger.Section("Embedding")
	logger.Info("Embedding %d chunks with %s...", len(records), ix.opts.EmbeddingModel)
	vectors, err := ix.embed(ctx, records)
	if err != nil {
		return stats, err
	}
	stats.Dimension = len(vectors[0])

	logger.Section("Vector Store")
	logger.Info("Creating and populating vector store (this will take time)...")
	if err := ix.store.Recreate(ctx, stats.Dimension); err != nil {
		return stats, err
	}
	if err := ix.upsert(ctx, records, vectors); err != nil {
		return stats, err
	}
	return stats, nil
}

func (ix *Indexer) embed(ctx context.Context, records []models.Record) ([][]float32, error) {
	vectors := make([][]float32, 0, len(records))
	for start := 0; start < len(records); start += ix.opts.EmbedBatchSize {
		end := min(start+ix.opts.EmbedBatchSize, len(records))

		texts := make([]string, 0, end-start)
		for _, r := range records[start:end] {
			texts = append(texts, r.Content)
		}

		batch, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed records %d-%d: %w", start, end-1, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d records", len(batch), len(texts))
		}
		logger.Debug("🧮 Embedded records %d-%d", start, end-1)
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (ix *Indexer) upsert(ctx context.Context, records []models.Record, vectors [][]float32) error {
	for start := 0; start < len(records); start += ix.opts.UpsertBatchSize {
		end := min(start+ix.opts.UpsertBatchSize, len(records))
		logger.Debug("📤 Upserting batch of %d points", end-start)
		if err := ix.store.Upsert(ctx, records[start:end], vectors[start:end]); err != nil {
			return err
		}
	}
	return nil
}
