package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/textbook-rag/pkg/models"
)

var testModels = Models{Chat: "llama3", Vision: "llava-cpu", Embedding: "nomic-embed-text"}

func newTestClient(t *testing.T, handler http.Handler) *OllamaClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewOllamaClient(srv.URL, testModels, 5*time.Second)
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestChat(t *testing.T) {
	var got api.ChatRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, api.ChatResponse{
			Model:   "llama3",
			Message: api.Message{Role: "assistant", Content: "x = 4"},
			Done:    true,
		})
	}))

	reply, err := c.Chat(context.Background(), []models.Message{
		models.SystemMessage("be brief"),
		models.UserMessage("solve x - 2 = 2"),
	}, ModelConfig{Temperature: 0.2, MaxTokens: 64})
	require.NoError(t, err)

	assert.Equal(t, models.RoleAssistant, reply.Role)
	assert.Equal(t, "x = 4", reply.Content)

	assert.Equal(t, "llama3", got.Model)
	require.NotNil(t, got.Stream)
	assert.False(t, *got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "solve x - 2 = 2", got.Messages[1].Content)
	assert.InDelta(t, 0.2, got.Options["temperature"], 1e-6)
	assert.EqualValues(t, 64, got.Options["num_predict"])
	assert.NotContains(t, got.Options, "top_p")
}

func TestChat_ServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(t, w, map[string]string{"error": `model "llama3" not found, try pulling it first`})
	}))

	_, err := c.Chat(context.Background(), []models.Message{models.UserMessage("hi")}, DefaultModelConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDescribe(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	var got api.ChatRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, api.ChatResponse{
			Message: api.Message{Role: "assistant", Content: "  A right triangle with sides 3, 4, 5.\n"},
			Done:    true,
		})
	}))

	desc, err := c.Describe(context.Background(), "Describe this image.", png)
	require.NoError(t, err)
	assert.Equal(t, "A right triangle with sides 3, 4, 5.", desc)

	assert.Equal(t, "llava-cpu", got.Model)
	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Images, 1)
	assert.Equal(t, png, []byte(got.Messages[0].Images[0]))
}

func TestDescribe_EmptyReply(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, api.ChatResponse{Message: api.Message{Role: "assistant", Content: " "}, Done: true})
	}))

	_, err := c.Describe(context.Background(), "Describe this image.", []byte{1})
	assert.Error(t, err)
}

func TestEmbedBatch(t *testing.T) {
	var got api.EmbedRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, api.EmbedResponse{
			Model:      "nomic-embed-text",
			Embeddings: [][]float32{{1, 0}, {0, 1}},
		})
	}))

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, "nomic-embed-text", got.Model)
	assert.Equal(t, []any{"a", "b"}, got.Input)
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, api.EmbedResponse{Embeddings: [][]float32{{1}}})
	}))

	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestEmbedBatch_EmptyInputSkipsServer(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected request")
	}))

	vecs, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestEmbed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, api.EmbedResponse{Embeddings: [][]float32{{0.5, 0.5}}})
	}))

	vec, err := c.Embed(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	assert.NoError(t, c.Ping(context.Background()))
}

func TestPing_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := NewOllamaClient(srv.URL, testModels, time.Second)
	require.NoError(t, err)
	assert.Error(t, c.Ping(context.Background()))
}

func TestCheckModels(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		writeJSON(t, w, api.ListResponse{Models: []api.ListModelResponse{
			{Name: "llama3:latest", Model: "llama3:latest"},
			{Name: "nomic-embed-text:latest", Model: "nomic-embed-text:latest"},
		}})
	}))

	assert.NoError(t, c.CheckModels(context.Background(), "llama3", "nomic-embed-text:latest"))

	err := c.CheckModels(context.Background(), "llama3", "llava-cpu", "")
	var missing *MissingModelsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"llava-cpu"}, missing.Models)
	assert.Contains(t, err.Error(), "llava-cpu")
}

func TestNewOllamaClient_BareHost(t *testing.T) {
	c, err := NewOllamaClient("localhost:11434", testModels, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "llama3", c.ModelName())
}

func TestConnect(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.WriteHeader(http.StatusOK)
		case "/api/tags":
			writeJSON(t, w, api.ListResponse{Models: []api.ListModelResponse{{Name: "llama3:latest"}}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	assert.NoError(t, Connect(context.Background(), c, "llama3"))

	var missing *MissingModelsError
	assert.ErrorAs(t, Connect(context.Background(), c, "llama3", "nomic-embed-text"), &missing)
}
