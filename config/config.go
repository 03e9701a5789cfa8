package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration.
type Config struct {
	Environment string
	Server      ServerConfig
	Knowledge   KnowledgeConfig
	Embedder    EmbedderConfig
	Store       StoreConfig
	GenAI       GenAIConfig
	Chat        ChatConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string
	Port int
}

// KnowledgeConfig holds paths of the upstream data and knowledge-base artifact.
type KnowledgeConfig struct {
	DataFile string // restaurant records produced by the scraping step
	IndexDir string // persisted knowledge-base artifact directory
	WatchKB  bool   // hot-reload the artifact when its files change
}

// EmbedderConfig selects and configures the embedding backend.
type EmbedderConfig struct {
	Type        string // "ollama" or "openai"
	OllamaURL   string
	OllamaModel string
	OpenAIKey   string
	OpenAIModel string
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Type             string // "flat" or "chroma"
	ChromaURL        string
	ChromaCollection string
}

// GenAIConfig holds the Google GenAI generation settings.
type GenAIConfig struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Temperature     float64
}

// ChatConfig holds retrieval and conversation tuning knobs.
type ChatConfig struct {
	TopKResults int
	MaxHistory  int
}

// Load reads configuration from the environment, loading a .env file first if
// one is present. Missing optional values fall back to defaults; a missing
// GenAI API key is only an error when serving.
func Load() (*Config, error) {
	// A missing .env file is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host: getEnv("API_HOST", "127.0.0.1"),
			Port: getEnvInt("API_PORT", 8080),
		},
		Knowledge: KnowledgeConfig{
			DataFile: getEnv("RESTAURANT_DATA_FILE", "data/raw/restaurant_data.json"),
			IndexDir: getEnv("KB_INDEX_DIR", "models/index"),
			WatchKB:  getEnvBool("WATCH_KB", false),
		},
		Embedder: EmbedderConfig{
			Type:        getEnv("EMBEDDER", "ollama"),
			OllamaURL:   getEnv("OLLAMA_URL", "http://localhost:11434"),
			OllamaModel: getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text:v1.5"),
			OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
			OpenAIModel: getEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		},
		Store: StoreConfig{
			Type:             getEnv("STORE", "flat"),
			ChromaURL:        getEnv("CHROMA_URL", "http://localhost:8000"),
			ChromaCollection: getEnv("CHROMA_COLLECTION", "restaurants"),
		},
		GenAI: GenAIConfig{
			APIKey:          os.Getenv("GENAI_API_KEY"),
			Model:           getEnv("GENAI_MODEL", "gemini-1.5-pro"),
			MaxOutputTokens: getEnvInt("MAX_OUTPUT_TOKENS", 1024),
			Temperature:     getEnvFloat("TEMPERATURE", 0.2),
		},
		Chat: ChatConfig{
			TopKResults: getEnvInt("TOP_K_RESULTS", 5),
			MaxHistory:  getEnvInt("MAX_HISTORY", 10),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Embedder.Type {
	case "ollama":
	case "openai":
		if c.Embedder.OpenAIKey == "" {
			return fmt.Errorf("config: EMBEDDER=openai requires OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("config: unknown embedder type %q", c.Embedder.Type)
	}

	switch c.Store.Type {
	case "flat", "chroma":
	default:
		return fmt.Errorf("config: unknown store type %q", c.Store.Type)
	}

	if c.Chat.TopKResults <= 0 {
		return fmt.Errorf("config: TOP_K_RESULTS must be positive")
	}
	if c.Chat.MaxHistory <= 0 {
		return fmt.Errorf("config: MAX_HISTORY must be positive")
	}
	return nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
