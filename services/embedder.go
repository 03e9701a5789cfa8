package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/restroassist/rag/config"
)

// Embedder converts free text into a fixed-length vector representation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// NewEmbedder builds the embedding backend selected by the configuration.
func NewEmbedder(cfg config.EmbedderConfig) (Embedder, error) {
	switch cfg.Type {
	case "ollama":
		httpClient := &http.Client{Timeout: 30 * time.Second}
		return NewOllamaEmbedder(httpClient, cfg.OllamaURL, cfg.OllamaModel), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.OpenAIKey, cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Type)
	}
}
