package llm

import (
	"context"

	"github.com/andrew/textbook-rag/pkg/models"
)

// Client is the interface for chatting with an LLM
type Client interface {
	Chat(ctx context.Context, messages []models.Message, config ModelConfig) (models.Message, error)
	Ping(ctx context.Context) error
	ModelName() string
}

// VisionClient describes images with a multimodal model
type VisionClient interface {
	Describe(ctx context.Context, prompt string, png []byte) (string, error)
}

// Embedder turns text into vectors
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ModelConfig holds configuration parameters for model generation
type ModelConfig struct {
	Temperature   float32
	TopP          float32
	MaxTokens     int
	StopSequences []string
}

// DefaultModelConfig returns a default configuration
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Temperature: 0.7,
		TopP:        0.9,
		MaxTokens:   2048,
	}
}

// options converts the config into Ollama request options. Zero values are
// left out so the model's own defaults apply.
func (c ModelConfig) options() map[string]any {
	opts := map[string]any{}
	if c.Temperature > 0 {
		opts["temperature"] = c.Temperature
	}
	if c.TopP > 0 {
		opts["top_p"] = c.TopP
	}
	if c.MaxTokens > 0 {
		opts["num_predict"] = c.MaxTokens
	}
	if len(c.StopSequences) > 0 {
		opts["stop"] = c.StopSequences
	}
	return opts
}

// HealthChecker is implemented by model servers that can report readiness
type HealthChecker interface {
	Ping(ctx context.Context) error
	CheckModels(ctx context.Context, names ...string) error
}

// Connect pings the server and checks the named models are available
func Connect(ctx context.Context, hc HealthChecker, names ...string) error {
	if err := hc.Ping(ctx); err != nil {
		return err
	}
	return hc.CheckModels(ctx, names...)
}
