package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/textbook-rag/pkg/config"
	"github.com/andrew/textbook-rag/pkg/llm"
	"github.com/andrew/textbook-rag/pkg/logger"
	"github.com/andrew/textbook-rag/pkg/models"
	"github.com/andrew/textbook-rag/pkg/rag"
	"github.com/andrew/textbook-rag/pkg/session"
)

type stubRetriever struct{}

func (stubRetriever) Retrieve(context.Context, string) ([]models.SearchResult, error) {
	return []models.SearchResult{{
		Record: models.Record{
			ID:       "1",
			Content:  "The sum of two numbers is called addition.",
			Metadata: models.RecordMetadata{Source: "book.pdf", PageNumber: 1, Type: "NarrativeText"},
		},
		Score: 0.9,
	}}, nil
}

type stubChat struct{ calls int }

func (s *stubChat) Chat(_ context.Context, messages []models.Message, _ llm.ModelConfig) (models.Message, error) {
	s.calls++
	if strings.HasPrefix(messages[0].Content, "Concisely summarize") {
		return models.AssistantMessage("a short summary"), nil
	}
	return models.AssistantMessage("Addition combines numbers."), nil
}

func (s *stubChat) Ping(context.Context) error { return nil }
func (s *stubChat) ModelName() string          { return "llama3" }

func TestRootCmd_QuestionRequired(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"--summarize"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question")
}

func TestRootCmd_Flags(t *testing.T) {
	for _, name := range []string{"question", "summarize", "session_id", "config", "verbose", "interactive"} {
		assert.NotNil(t, rootCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "false", rootCmd.Flags().Lookup("summarize").DefValue)
}

func TestAsk_PrintsAnswerAndSources(t *testing.T) {
	var buf bytes.Buffer
	p := rag.New(stubRetriever{}, &stubChat{}, nil)

	require.NoError(t, ask(context.Background(), &buf, p, rag.Request{Question: "What is addition?"}))

	out := buf.String()
	assert.Contains(t, out, "--- Querying for: 'What is addition?' ---")
	assert.Contains(t, out, "### Final RAG Answer ###\nAddition combines numbers.")
	assert.Contains(t, out, "### Retrieved Sources ###\n--- Source (Page 1, Type: NarrativeText) ---\nThe sum of two numbers is called addition.")
	assert.NotContains(t, out, "Summary")
	assert.NotContains(t, out, "session")
}

func TestAsk_Summarized(t *testing.T) {
	var buf bytes.Buffer
	p := rag.New(stubRetriever{}, &stubChat{}, nil)

	require.NoError(t, ask(context.Background(), &buf, p, rag.Request{Question: "q", Summarize: true}))

	out := buf.String()
	assert.Contains(t, out, "### 1. Retrieved Context Summary ###\na short summary\n"+strings.Repeat("-", 30))
	assert.Contains(t, out, "### 2. Final RAG Answer ###")
}

func TestAsk_SessionTwice(t *testing.T) {
	store := session.NewStore(t.TempDir())
	p := rag.New(stubRetriever{}, &stubChat{}, store)

	var buf bytes.Buffer
	require.NoError(t, ask(context.Background(), &buf, p, rag.Request{Question: "What is addition?", SessionID: "test1"}))
	require.NoError(t, ask(context.Background(), &buf, p, rag.Request{Question: "And subtraction?", SessionID: "test1"}))

	assert.Contains(t, buf.String(), "--- Loading chat history for session: test1 ---")
	assert.Contains(t, buf.String(), "(Context saved to session: test1)")

	turns, err := store.Load("test1")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, models.UserMessage("What is addition?"), turns[0])
	assert.Equal(t, models.RoleAssistant, turns[1].Role)
	assert.Equal(t, models.UserMessage("And subtraction?"), turns[2])
	assert.Equal(t, models.RoleAssistant, turns[3].Role)
}

func TestChat(t *testing.T) {
	h := rag.NewMemoryHistory()
	c := &stubChat{}
	p := rag.New(stubRetriever{}, c, h)

	var buf bytes.Buffer
	in := strings.NewReader("What is addition?\n\nAgain?\nquit\nignored\n")
	require.NoError(t, chat(context.Background(), in, &buf, p, "repl", false))

	assert.Equal(t, 2, c.calls)
	assert.Equal(t, 2, strings.Count(buf.String(), "🤖 Assistant: Addition combines numbers."))
	assert.Contains(t, buf.String(), "👋 Goodbye!")

	turns, err := h.Load("repl")
	require.NoError(t, err)
	assert.Len(t, turns, 4)
}

func TestChat_EOF(t *testing.T) {
	p := rag.New(stubRetriever{}, &stubChat{}, rag.NewMemoryHistory())

	var buf bytes.Buffer
	require.NoError(t, chat(context.Background(), strings.NewReader("last question"), &buf, p, "repl", true))
	assert.Contains(t, buf.String(), "📝 Summary: a short summary")
	assert.Contains(t, buf.String(), "👋 Goodbye!")
}

func TestAsk_VerbosePrintsScores(t *testing.T) {
	logger.SetVerbose(true)
	t.Cleanup(func() { logger.SetVerbose(false) })

	var buf bytes.Buffer
	p := rag.New(stubRetriever{}, &stubChat{}, nil)
	require.NoError(t, ask(context.Background(), &buf, p, rag.Request{Question: "q"}))
	assert.Contains(t, buf.String(), "[1] score 0.9000 page 1 id 1")
}

func TestStoreWording(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "Qdrant", storeName(cfg))
	assert.Contains(t, storeHint(cfg), "Qdrant is running at localhost:6334")

	cfg.VectorStore.Type = config.StoreLocal
	assert.Equal(t, "local vector store", storeName(cfg))
	assert.Contains(t, storeHint(cfg), cfg.VectorStore.Local.Path)
	assert.NotContains(t, storeHint(cfg), "Qdrant is running")
}
