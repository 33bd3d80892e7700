package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/andrew/textbook-rag/pkg/app"
	"github.com/andrew/textbook-rag/pkg/config"
	"github.com/andrew/textbook-rag/pkg/llm"
	"github.com/andrew/textbook-rag/pkg/logger"
	"github.com/andrew/textbook-rag/pkg/models"
	"github.com/andrew/textbook-rag/pkg/rag"
	"github.com/andrew/textbook-rag/pkg/retrieval"
	"github.com/andrew/textbook-rag/pkg/session"
)

var (
	question    string
	summarize   bool
	sessionID   string
	configPath  string
	verbose     bool
	interactive bool
)

var rootCmd = &cobra.Command{
	Use:   "rag-query",
	Short: "Ask a question about the indexed textbook",
	Long: `Retrieves the five most relevant chunks of the indexed textbook and answers
the question with the chat model. A session id carries the conversation across runs.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		if !interactive && strings.TrimSpace(question) == "" {
			return errors.New(`required flag "question" not set`)
		}
		return nil
	},
	RunE: runQuery,
}

func init() {
	rootCmd.Flags().StringVar(&question, "question", "", "the question to ask")
	rootCmd.Flags().BoolVar(&summarize, "summarize", false, "summarize the retrieved context before answering")
	rootCmd.Flags().StringVar(&sessionID, "session_id", "", "session id to keep conversational memory")
	rootCmd.Flags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config file")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
	rootCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "run an interactive chat session")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runQuery(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error(err)
		return err
	}
	logger.SetVerbose(verbose || cfg.Verbose)
	logger.SetOutput(cmd.OutOrStdout())
	out := logger.Output()

	ctx := context.Background()

	ollama, err := app.NewOllama(cfg)
	if err != nil {
		logger.Error(err)
		return err
	}
	if err := llm.Connect(ctx, ollama, cfg.Ollama.ChatModel, cfg.Ollama.EmbeddingModel); err != nil {
		logger.Error(fmt.Errorf("error initializing models: %w", err), app.ModelHints(err, cfg.Ollama.BaseURL)...)
		return err
	}

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error(fmt.Errorf("error opening vector store: %w", err))
		return err
	}
	defer store.Close()

	exists, err := store.Exists(ctx)
	if err != nil {
		logger.Error(fmt.Errorf("error connecting to vector store: %w", err), storeHint(cfg))
		return err
	}
	if !exists {
		err := fmt.Errorf("collection '%s' does not exist", cfg.VectorStore.Collection)
		logger.Error(err, "Please ensure rag-indexer was run successfully.")
		return err
	}
	fmt.Fprintf(out, "Ollama and %s connections established.\n", storeName(cfg))

	retriever := retrieval.NewRetriever(ollama, store)

	if interactive {
		var history rag.History = session.NewStore(cfg.SessionDir)
		id := sessionID
		if id == "" {
			history = rag.NewMemoryHistory()
			id = uuid.NewString()
		}
		return chat(ctx, cmd.InOrStdin(), out, rag.New(retriever, ollama, history), id, summarize)
	}

	p := rag.New(retriever, ollama, session.NewStore(cfg.SessionDir))
	return ask(ctx, out, p, rag.Request{Question: question, Summarize: summarize, SessionID: sessionID})
}

func storeName(cfg *config.Config) string {
	if cfg.VectorStore.Type == config.StoreLocal {
		return "local vector store"
	}
	return "Qdrant"
}

func storeHint(cfg *config.Config) string {
	if cfg.VectorStore.Type == config.StoreLocal {
		return fmt.Sprintf("Please ensure %s is a readable vector store file", cfg.VectorStore.Local.Path)
	}
	return fmt.Sprintf("Please ensure Qdrant is running at %s", cfg.VectorStore.Qdrant.Addr())
}

// ask answers one question and prints the result
func ask(ctx context.Context, w io.Writer, p *rag.Pipeline, req rag.Request) error {
	if req.SessionID != "" {
		fmt.Fprintf(w, "--- Loading chat history for session: %s ---\n", req.SessionID)
	}
	fmt.Fprintf(w, "--- Querying for: '%s' ---\n", req.Question)

	res, err := p.Ask(ctx, req)
	if err != nil {
		logger.Error(err)
		return err
	}
	printResult(w, res, req.Summarize)
	if logger.IsVerbose() {
		printScores(w, res.Sources)
	}

	if req.SessionID != "" {
		fmt.Fprintf(w, "\n(Context saved to session: %s)\n", req.SessionID)
	}
	return nil
}

func printResult(w io.Writer, res *rag.Result, summarized bool) {
	rule := strings.Repeat("-", 30)
	if summarized {
		fmt.Fprintln(w, "\n### 1. Retrieved Context Summary ###")
		fmt.Fprintln(w, res.Summary)
		fmt.Fprintln(w, rule)
		fmt.Fprintln(w, "\n### 2. Final RAG Answer ###")
	} else {
		fmt.Fprintln(w, "\n### Final RAG Answer ###")
	}
	fmt.Fprintln(w, res.Answer)

	fmt.Fprintln(w, "\n"+rule)
	fmt.Fprintln(w, "### Retrieved Sources ###")
	fmt.Fprintln(w, res.Context)
	fmt.Fprintln(w, rule)
}

func printScores(w io.Writer, sources []models.SearchResult) {
	for i, src := range sources {
		fmt.Fprintf(w, "[%d] score %.4f page %d id %s\n", i+1, src.Score, src.Metadata.PageNumber, src.ID)
	}
}

// chat reads questions from r until exit, quit or EOF, reusing one session
func chat(ctx context.Context, r io.Reader, w io.Writer, p *rag.Pipeline, id string, summarized bool) error {
	reader := bufio.NewReader(r)

	fmt.Fprintln(w, "\n🤖 Welcome to the interactive textbook chat!")
	fmt.Fprintln(w, "📚 Ask me anything about the indexed textbook.")
	fmt.Fprintln(w, "💡 Type 'exit' or 'quit' to end the session.")

	for {
		fmt.Fprint(w, "\n👤 You: ")
		input, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		q := strings.TrimSpace(input)
		if lower := strings.ToLower(q); lower == "exit" || lower == "quit" {
			fmt.Fprintln(w, "\n👋 Goodbye!")
			return nil
		}
		if q != "" {
			res, askErr := p.Ask(ctx, rag.Request{Question: q, Summarize: summarized, SessionID: id})
			if askErr != nil {
				logger.Error(askErr)
				return askErr
			}
			if summarized {
				fmt.Fprintf(w, "\n📝 Summary: %s\n", res.Summary)
			}
			fmt.Fprintf(w, "\n🤖 Assistant: %s\n", res.Answer)
			logger.Debug("Answered from %d sources", len(res.Sources))
		}

		if errors.Is(err, io.EOF) {
			fmt.Fprintln(w, "\n👋 Goodbye!")
			return nil
		}
	}
}
