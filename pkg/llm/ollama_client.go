package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/andrew/textbook-rag/pkg/models"
)

// Models names the model used for each kind of request
type Models struct {
	Chat      string
	Vision    string
	Embedding string
}

// OllamaClient talks to a local Ollama server. It implements Client,
// VisionClient, Embedder and HealthChecker.
type OllamaClient struct {
	api    *api.Client
	models Models
}

var (
	_ Client        = (*OllamaClient)(nil)
	_ VisionClient  = (*OllamaClient)(nil)
	_ Embedder      = (*OllamaClient)(nil)
	_ HealthChecker = (*OllamaClient)(nil)
)

// NewOllamaClient creates a client for the Ollama server at baseURL.
// A bare host:port is accepted, as in OLLAMA_HOST.
func NewOllamaClient(baseURL string, m Models, timeout time.Duration) (*OllamaClient, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}

	return &OllamaClient{
		api:    api.NewClient(base, &http.Client{Timeout: timeout}),
		models: m,
	}, nil
}

// ModelName returns the chat model
func (c *OllamaClient) ModelName() string {
	return c.models.Chat
}

// Ping checks the server is up
func (c *OllamaClient) Ping(ctx context.Context) error {
	if err := c.api.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama server not reachable: %w", err)
	}
	return nil
}

// Chat sends the conversation to the chat model and returns its reply
func (c *OllamaClient) Chat(ctx context.Context, messages []models.Message, config ModelConfig) (models.Message, error) {
	ollamaMessages := make([]api.Message, len(messages))
	for i, msg := range messages {
		ollamaMessages[i] = api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	content, err := c.chat(ctx, c.models.Chat, ollamaMessages, config.options())
	if err != nil {
		return models.Message{}, err
	}
	return models.AssistantMessage(content), nil
}

// Describe asks the vision model about a PNG image
func (c *OllamaClient) Describe(ctx context.Context, prompt string, png []byte) (string, error) {
	msg := api.Message{
		Role:    string(models.RoleUser),
		Content: prompt,
		Images:  []api.ImageData{png},
	}

	content, err := c.chat(ctx, c.models.Vision, []api.Message{msg}, nil)
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errors.New("vision model returned an empty description")
	}
	return content, nil
}

func (c *OllamaClient) chat(ctx context.Context, model string, messages []api.Message, opts map[string]any) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options:  opts,
	}

	var out strings.Builder
	err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat with %s: %w", model, err)
	}
	return out.String(), nil
}

// Embed generates a vector for a single text
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates one vector per text, in input order
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.api.Embed(ctx, &api.EmbedRequest{
		Model: c.models.Embedding,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed with %s: %w", c.models.Embedding, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// MissingModelsError lists models that are not pulled on the server
type MissingModelsError struct {
	Models []string
}

func (e *MissingModelsError) Error() string {
	return fmt.Sprintf("models not found on ollama server: %s", strings.Join(e.Models, ", "))
}

// CheckModels verifies every named model is available locally. It returns a
// *MissingModelsError naming the ones that are not.
func (c *OllamaClient) CheckModels(ctx context.Context, names ...string) error {
	resp, err := c.api.List(ctx)
	if err != nil {
		return fmt.Errorf("list ollama models: %w", err)
	}

	available := make(map[string]bool, len(resp.Models))
	for _, m := range resp.Models {
		available[withTag(m.Name)] = true
		available[withTag(m.Model)] = true
	}

	var missing []string
	for _, name := range names {
		if name == "" {
			continue
		}
		if !available[withTag(name)] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingModelsError{Models: missing}
	}
	return nil
}

// withTag appends the implicit ":latest" tag
func withTag(name string) string {
	if name == "" || strings.Contains(name, ":") {
		return name
	}
	return name + ":latest"
}
