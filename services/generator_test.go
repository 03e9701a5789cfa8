package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/restroassist/rag/models"
)

type fakeLLM struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeLLM) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func stampedDoc(restaurant, content string, queryType models.QueryType) models.RetrievedDocument {
	return models.RetrievedDocument{
		Document: models.Document{
			Content: content,
			Metadata: map[string]interface{}{
				"restaurant": restaurant,
				"query_type": string(queryType),
			},
		},
		Score: 0.9,
	}
}

func TestGenerate_GroupsContextByRestaurant(t *testing.T) {
	llm := &fakeLLM{response: "They serve biryani and pizza."}
	g := NewGenerator(llm, zap.NewNop())

	docs := []models.RetrievedDocument{
		stampedDoc("Biryani Blues", "Serves Hyderabadi biryani.", models.QueryTypeMenu),
		stampedDoc("Ovenstory", "Wood-fired pizzas.", models.QueryTypeMenu),
		stampedDoc("Biryani Blues", "Also has kebabs.", models.QueryTypeMenu),
	}

	_, err := g.Generate(context.Background(), "What do they serve?", docs, "s1")
	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)

	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "RESTAURANT INFORMATION:")
	assert.Contains(t, prompt, "## Biryani Blues")
	assert.Contains(t, prompt, "## Ovenstory")

	// First-seen restaurant order is preserved, and both documents for the
	// same restaurant land under a single header.
	assert.Less(t, strings.Index(prompt, "## Biryani Blues"), strings.Index(prompt, "## Ovenstory"))
	assert.Equal(t, 1, strings.Count(prompt, "## Biryani Blues"))
	assert.Contains(t, prompt, "Also has kebabs.")
}

func TestGenerate_EmptyContext(t *testing.T) {
	llm := &fakeLLM{response: "I don't have that information."}
	g := NewGenerator(llm, zap.NewNop())

	_, err := g.Generate(context.Background(), "Any sushi places?", nil, "s1")
	require.NoError(t, err)

	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "No relevant information found.")
	assert.Contains(t, prompt, "QUERY TYPE: general")
}

func TestGenerate_QueryTypeFromDocuments(t *testing.T) {
	llm := &fakeLLM{response: "Yes, there are vegetarian options."}
	g := NewGenerator(llm, zap.NewNop())

	docs := []models.RetrievedDocument{
		stampedDoc("Biryani Blues", "Veg biryani available.", models.QueryTypeDietary),
	}

	_, err := g.Generate(context.Background(), "Vegetarian options?", docs, "s1")
	require.NoError(t, err)

	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "QUERY TYPE: dietary_restrictions")
	assert.Contains(t, prompt, "For dietary restriction queries:")
}

func TestGenerate_MetadataLinesInContext(t *testing.T) {
	llm := &fakeLLM{response: "ok"}
	g := NewGenerator(llm, zap.NewNop())

	docs := []models.RetrievedDocument{
		{
			Document: models.Document{
				Content: "North Indian place.",
				Metadata: map[string]interface{}{
					"restaurant":  "Biryani Blues",
					"cuisine":     "indian",
					"price_range": "moderate",
				},
			},
			Score: 0.8,
		},
	}

	_, err := g.Generate(context.Background(), "Tell me more", docs, "s1")
	require.NoError(t, err)

	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "Cuisine: indian")
	assert.Contains(t, prompt, "Price Range: moderate")
}

func TestGenerate_HistoryRecap(t *testing.T) {
	llm := &fakeLLM{response: "It is in Gurgaon."}
	g := NewGenerator(llm, zap.NewNop())

	_, err := g.Generate(context.Background(), "Tell me about Biryani Blues", nil, "s1")
	require.NoError(t, err)
	assert.NotContains(t, llm.prompts[0], "PREVIOUS CONVERSATION:")

	_, err = g.Generate(context.Background(), "Where is it?", nil, "s1")
	require.NoError(t, err)

	second := llm.prompts[1]
	assert.Contains(t, second, "PREVIOUS CONVERSATION:")
	assert.Contains(t, second, "User: Tell me about Biryani Blues")
	assert.Contains(t, second, "Assistant: It is in Gurgaon.")
}

func TestGenerate_HistoryIsPerSession(t *testing.T) {
	llm := &fakeLLM{response: "ok"}
	g := NewGenerator(llm, zap.NewNop())

	_, err := g.Generate(context.Background(), "first question", nil, "s1")
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "second question", nil, "s2")
	require.NoError(t, err)

	assert.NotContains(t, llm.prompts[1], "first question")
}

func TestGenerate_FailureLeavesHistoryUntouched(t *testing.T) {
	llm := &fakeLLM{err: errors.New("quota exceeded")}
	g := NewGenerator(llm, zap.NewNop())

	_, err := g.Generate(context.Background(), "Any vegan food?", nil, "s1")
	require.Error(t, err)
	assert.True(t, IsGeneratorError(err))

	// A later call on the same session must not see the failed turn.
	llm.err = nil
	llm.response = "ok"
	_, err = g.Generate(context.Background(), "Still there?", nil, "s1")
	require.NoError(t, err)
	assert.NotContains(t, llm.prompts[1], "PREVIOUS CONVERSATION:")
}

func TestGenerate_ClearHistory(t *testing.T) {
	llm := &fakeLLM{response: "ok"}
	g := NewGenerator(llm, zap.NewNop())

	_, err := g.Generate(context.Background(), "first question", nil, "s1")
	require.NoError(t, err)

	g.ClearHistory("s1")

	_, err = g.Generate(context.Background(), "second question", nil, "s1")
	require.NoError(t, err)
	assert.NotContains(t, llm.prompts[1], "PREVIOUS CONVERSATION:")
}

func TestPostProcessResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips disclaimer",
			in:   "Based on the provided information, they serve biryani.",
			want: ", they serve biryani.",
		},
		{
			name: "strips according-to variant",
			in:   "According to the available context, it opens at noon.",
			want: ", it opens at noon.",
		},
		{
			name: "normalizes no-info phrasing",
			in:   "I don't have information beyond what's provided about desserts.",
			want: "I don't have that information about desserts.",
		},
		{
			name: "collapses whitespace",
			in:   "They  serve\n\nbiryani   daily.",
			want: "They serve biryani daily.",
		},
		{
			name: "clean response untouched",
			in:   "Biryani Blues serves Hyderabadi biryani.",
			want: "Biryani Blues serves Hyderabadi biryani.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, postProcessResponse(tt.in))
		})
	}
}
