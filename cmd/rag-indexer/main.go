package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/andrew/textbook-rag/pkg/app"
	"github.com/andrew/textbook-rag/pkg/config"
	"github.com/andrew/textbook-rag/pkg/indexer"
	"github.com/andrew/textbook-rag/pkg/logger"
	"github.com/andrew/textbook-rag/pkg/partition"
	"github.com/andrew/textbook-rag/pkg/vision"
)

var (
	configPath string
	recreate   bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "rag-indexer",
	Short: "Index the textbook PDF into the vector store",
	Long: `Partitions the textbook PDF, describes its images with the vision model,
embeds every chunk and rebuilds the vector collection.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runIndexer,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config file")
	rootCmd.Flags().BoolVar(&recreate, "recreate", true, "drop and rebuild the collection if it exists")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error(err)
		return err
	}
	if cmd.Flags().Changed("recreate") {
		cfg.Indexer.Recreate = recreate
	}
	logger.SetVerbose(verbose || cfg.Verbose)
	logger.SetOutput(cmd.OutOrStdout())

	ctx := context.Background()

	// nothing may be created before the input is known to exist
	if _, err := os.Stat(cfg.PDFPath); err != nil {
		err = fmt.Errorf("%w at %s", indexer.ErrPDFNotFound, cfg.PDFPath)
		logger.Error(err, hints(err, cfg)...)
		return err
	}

	if cfg.Partition.Strategy == config.StrategyHiRes {
		printTokenStatus(logger.Output(), cfg.HuggingFaceToken)
	}

	ollama, err := app.NewOllama(cfg)
	if err != nil {
		logger.Error(err)
		return err
	}
	partitioner, err := partition.New(cfg.Partition)
	if err != nil {
		logger.Error(err)
		return err
	}
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error(fmt.Errorf("failed to open vector store: %w", err))
		return err
	}
	defer store.Close()

	ix := indexer.New(indexer.OptionsFromConfig(cfg), indexer.Deps{
		Models:      ollama,
		Partitioner: partitioner,
		Images:      vision.NewSummarizer(ollama, cfg.Indexer.MaxImageDim),
		Embedder:    ollama,
		Store:       store,
	})

	stats, err := ix.Run(ctx)
	if err != nil {
		logger.Error(err, hints(err, cfg)...)
		return err
	}

	printSummary(logger.Output(), cfg, stats)
	return nil
}

// printTokenStatus reports whether a Hugging Face token is available for the
// layout models the partition server downloads
func printTokenStatus(w io.Writer, token string) {
	if token == "" {
		fmt.Fprintln(w, "HUGGINGFACE_TOKEN not set. Model downloads may be rate limited.")
		return
	}
	fmt.Fprintln(w, "HUGGINGFACE_TOKEN found.")
}

func printSummary(w io.Writer, cfg *config.Config, stats indexer.Stats) {
	fmt.Fprintln(w, "\n"+successLine(cfg))
	switch cfg.VectorStore.Type {
	case config.StoreLocal:
		fmt.Fprintf(w, "Path: %s\n", cfg.VectorStore.Local.Path)
	default:
		fmt.Fprintf(w, "Address: %s\n", cfg.VectorStore.Qdrant.Addr())
	}
	fmt.Fprintf(w, "Collection: %s\n", cfg.VectorStore.Collection)
	fmt.Fprintf(w, "%d documents indexed.\n", stats.Records)
	if stats.Tables > 0 || stats.Images > 0 || stats.Dropped > 0 {
		fmt.Fprintf(w, "(%d tables, %d images, %d failed images, %d elements skipped)\n",
			stats.Tables, stats.Images, stats.ImagesFailed, stats.Dropped)
	}
	fmt.Fprintln(w, "\nIndexing run complete. You can now run rag-query.")
}

func successLine(cfg *config.Config) string {
	if cfg.VectorStore.Type == config.StoreLocal {
		return "Local vector store created successfully."
	}
	return "Qdrant collection created successfully."
}

// hints suggests how to recover from a failed run
func hints(err error, cfg *config.Config) []string {
	switch {
	case errors.Is(err, indexer.ErrPDFNotFound):
		return []string{"Set pdf_path in " + configPath + " or RAG_PDF_PATH to the textbook PDF."}
	case errors.Is(err, indexer.ErrConnect):
		return app.ModelHints(err, cfg.Ollama.BaseURL)
	case errors.Is(err, indexer.ErrPartition):
		if cfg.Partition.Strategy == config.StrategyHiRes {
			return []string{
				fmt.Sprintf("Please ensure the Unstructured API is reachable at %s", cfg.Partition.URL),
				"The hi_res strategy needs poppler and tesseract installed on the partition server.",
				"Set partition.strategy to fast to extract text locally without layout detection.",
			}
		}
		return []string{"The fast strategy can only read PDFs with an embedded text layer."}
	case errors.Is(err, indexer.ErrNoRecords):
		return []string{"Check that the PDF has readable text or try the hi_res strategy."}
	case errors.Is(err, indexer.ErrCollectionExists):
		return []string{"Re-run with --recreate to replace collection " + cfg.VectorStore.Collection + "."}
	}
	return nil
}
