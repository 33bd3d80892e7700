package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given
const DefaultPath = "rag.yaml"

// Vector store types
const (
	StoreQdrant = "qdrant"
	StoreLocal  = "local"
)

// Partitioning strategies
const (
	StrategyHiRes = "hi_res"
	StrategyFast  = "fast"
)

// OllamaConfig holds the model server endpoint and the three model names.
type OllamaConfig struct {
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	VisionModel    string `yaml:"vision_model"`
	ChatModel      string `yaml:"chat_model"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

// Timeout returns the HTTP timeout for model requests.
func (c OllamaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// QdrantConfig contains connection details for a Qdrant server (gRPC port).
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// Addr returns host:port for dialing.
func (c QdrantConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LocalStoreConfig configures the file-backed vector store.
type LocalStoreConfig struct {
	Path string `yaml:"path"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type       string           `yaml:"type"`
	Collection string           `yaml:"collection"`
	Qdrant     QdrantConfig     `yaml:"qdrant"`
	Local      LocalStoreConfig `yaml:"local"`
}

// PartitionConfig selects how the PDF is split into elements.
type PartitionConfig struct {
	Strategy    string `yaml:"strategy"`
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Timeout returns the HTTP timeout for partition requests.
func (c PartitionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// IndexerConfig tunes the indexing run.
type IndexerConfig struct {
	// Recreate allows dropping an existing collection before upserting
	Recreate         bool `yaml:"recreate"`
	EmbedBatchSize   int  `yaml:"embed_batch_size"`
	UpsertBatchSize  int  `yaml:"upsert_batch_size"`
	MaxImageDim      int  `yaml:"max_image_dim"`
	KeepFailedImages bool `yaml:"keep_failed_images"`
}

// Config is the root configuration. It is built once by Load and passed to
// every component.
type Config struct {
	PDFPath     string            `yaml:"pdf_path"`
	SessionDir  string            `yaml:"session_dir"`
	Verbose     bool              `yaml:"verbose"`
	Ollama      OllamaConfig      `yaml:"ollama"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Partition   PartitionConfig   `yaml:"partition"`
	Indexer     IndexerConfig     `yaml:"indexer"`

	// HuggingFaceToken is only read from the environment
	HuggingFaceToken string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PDFPath:    "data/jemh109.pdf",
		SessionDir: "chat_sessions",
		Ollama: OllamaConfig{
			BaseURL:        "http://localhost:11434",
			EmbeddingModel: "nomic-embed-text",
			VisionModel:    "llava-cpu",
			ChatModel:      "llama3",
			TimeoutSecs:    300,
		},
		VectorStore: VectorStoreConfig{
			Type:       StoreQdrant,
			Collection: "jmeh_multimodal",
			Qdrant:     QdrantConfig{Host: "localhost", Port: 6334},
			Local:      LocalStoreConfig{Path: "qdrant_db/vectors.db"},
		},
		Partition: PartitionConfig{
			Strategy:    StrategyHiRes,
			URL:         "http://localhost:8000",
			TimeoutSecs: 900,
		},
		Indexer: IndexerConfig{
			Recreate:        true,
			EmbedBatchSize:  32,
			UpsertBatchSize: 100,
			MaxImageDim:     1024,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path, a .env
// file in the working directory and the environment, in that order. A missing
// config file or .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	_ = godotenv.Load()
	overrideByEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.VectorStore.Type {
	case StoreQdrant, StoreLocal:
	default:
		return fmt.Errorf("unknown vector store type %q", c.VectorStore.Type)
	}
	switch c.Partition.Strategy {
	case StrategyHiRes, StrategyFast:
	default:
		return fmt.Errorf("unknown partition strategy %q", c.Partition.Strategy)
	}
	if c.VectorStore.Collection == "" {
		return errors.New("vector_store.collection must be set")
	}
	if c.Indexer.EmbedBatchSize <= 0 {
		return errors.New("indexer.embed_batch_size must be positive")
	}
	if c.Indexer.UpsertBatchSize <= 0 {
		return errors.New("indexer.upsert_batch_size must be positive")
	}
	if c.Indexer.MaxImageDim <= 0 {
		return errors.New("indexer.max_image_dim must be positive")
	}
	if c.Ollama.TimeoutSecs <= 0 {
		return errors.New("ollama.timeout_secs must be positive")
	}
	return nil
}

func overrideByEnv(cfg *Config) {
	cfg.PDFPath = getEnv("RAG_PDF_PATH", cfg.PDFPath)
	cfg.SessionDir = getEnv("RAG_SESSION_DIR", cfg.SessionDir)
	cfg.Ollama.BaseURL = getEnv("OLLAMA_HOST", cfg.Ollama.BaseURL)
	cfg.VectorStore.Qdrant.Host = getEnv("QDRANT_HOST", cfg.VectorStore.Qdrant.Host)
	cfg.VectorStore.Qdrant.Port = getEnvAsInt("QDRANT_PORT", cfg.VectorStore.Qdrant.Port)
	cfg.VectorStore.Qdrant.APIKey = getEnv("QDRANT_API_KEY", cfg.VectorStore.Qdrant.APIKey)
	cfg.Partition.URL = getEnv("UNSTRUCTURED_URL", cfg.Partition.URL)
	cfg.Partition.APIKey = getEnv("UNSTRUCTURED_API_KEY", cfg.Partition.APIKey)
	cfg.HuggingFaceToken = getEnv("HUGGINGFACE_TOKEN", cfg.HuggingFaceToken)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
