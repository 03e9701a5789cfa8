package services

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiGenerator implements TextGenerator on top of Google Gemini.
type GeminiGenerator struct {
	client          *genai.Client
	model           string
	maxOutputTokens int32
	temperature     float32
}

// NewGeminiGenerator creates a Gemini-backed text generator.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, maxOutputTokens int, temperature float64) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiGenerator{
		client:          client,
		model:           model,
		maxOutputTokens: int32(maxOutputTokens),
		temperature:     float32(temperature),
	}, nil
}

// GenerateText sends the prompt to Gemini and concatenates the text parts of
// the first candidate.
func (g *GeminiGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: g.maxOutputTokens,
		Temperature:     genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}
