package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/restroassist/rag/models"
)

// TextGenerator is the external text-generation capability.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// noContextMarker is what the model sees when retrieval came back empty. The
// generation call must receive an explicit signal of absence, not silence.
const noContextMarker = "No relevant information found."

var (
	disclaimerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)based on the (provided|given|available) (information|context|data)`),
		regexp.MustCompile(`(?i)according to the (provided|given|available) (information|context|data)`),
	}
	noInfoPattern    = regexp.MustCompile(`(?i)I (don't|do not) have (information|details) (beyond|outside) (what's|what is) provided`)
	repeatWhitespace = regexp.MustCompile(`\s+`)
)

// generatorTurn is one entry in the generator's internal micro-history. This
// short window exists purely for phrasing continuity in the prompt and is
// independent of the ConversationManager turn log.
type generatorTurn struct {
	Query    string
	Response string
}

// Generator formats retrieved documents into a prompt, invokes the text
// generation capability and sanitizes its output.
type Generator struct {
	llm     TextGenerator
	mu      sync.Mutex
	history map[string][]generatorTurn
	logger  *zap.Logger
}

// NewGenerator creates a generator over the given text-generation capability.
func NewGenerator(llm TextGenerator, logger *zap.Logger) *Generator {
	return &Generator{
		llm:     llm,
		history: make(map[string][]generatorTurn),
		logger:  logger,
	}
}

// Generate produces a response for the query from the retrieved documents.
// The session's micro-history is only updated after a successful generation.
func (g *Generator) Generate(ctx context.Context, query string, docs []models.RetrievedDocument, sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = "default"
	}

	history := g.recentHistory(sessionID, 5)

	queryType := models.QueryTypeGeneral
	if len(docs) > 0 {
		if qt, ok := docs[0].Metadata["query_type"].(string); ok && qt != "" {
			queryType = models.QueryType(qt)
		}
	}

	contextBlock := formatRetrievedContext(docs)
	prompt := buildPrompt(query, contextBlock, queryType, history)

	g.logger.Debug("prompt assembled",
		zap.String("query_type", string(queryType)),
		zap.Int("prompt_length", len(prompt)))

	response, err := g.llm.GenerateText(ctx, prompt)
	if err != nil {
		return "", NewGeneratorError("failed to generate response", err)
	}

	response = postProcessResponse(strings.TrimSpace(response))

	g.appendHistory(sessionID, query, response)
	return response, nil
}

// ClearHistory drops the micro-history of a session.
func (g *Generator) ClearHistory(sessionID string) {
	g.mu.Lock()
	delete(g.history, sessionID)
	g.mu.Unlock()
}

func (g *Generator) recentHistory(sessionID string, maxTurns int) []generatorTurn {
	g.mu.Lock()
	defer g.mu.Unlock()

	turns := g.history[sessionID]
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	out := make([]generatorTurn, len(turns))
	copy(out, turns)
	return out
}

func (g *Generator) appendHistory(sessionID, query, response string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	turns := append(g.history[sessionID], generatorTurn{Query: query, Response: response})
	if len(turns) > 10 {
		turns = turns[len(turns)-10:]
	}
	g.history[sessionID] = turns
}

// formatRetrievedContext renders the documents grouped by restaurant, keeping
// first-seen order so the block is deterministic.
func formatRetrievedContext(docs []models.RetrievedDocument) string {
	if len(docs) == 0 {
		return noContextMarker
	}

	var order []string
	grouped := make(map[string][]models.RetrievedDocument)
	for i, doc := range docs {
		restaurant := doc.Restaurant()
		if restaurant == "" {
			restaurant = fmt.Sprintf("Restaurant %d", i+1)
		}
		if _, ok := grouped[restaurant]; !ok {
			order = append(order, restaurant)
		}
		grouped[restaurant] = append(grouped[restaurant], doc)
	}

	var sb strings.Builder
	sb.WriteString("RESTAURANT INFORMATION:\n\n")
	for _, restaurant := range order {
		sb.WriteString("## " + restaurant + "\n")
		for _, doc := range grouped[restaurant] {
			if content := strings.TrimSpace(doc.Content); content != "" {
				sb.WriteString(content + "\n\n")
			}
			for _, key := range []string{"category", "cuisine", "price_range", "location", "rating"} {
				if value, ok := doc.Metadata[key]; ok {
					sb.WriteString(fmt.Sprintf("%s: %v\n", metadataLabel(key), value))
				}
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func metadataLabel(key string) string {
	switch key {
	case "price_range":
		return "Price Range"
	default:
		return strings.ToUpper(key[:1]) + key[1:]
	}
}

// buildPrompt assembles the final prompt: role framing, dialogue recap,
// context block, the literal query, the detected type and the type-specific
// instruction bullets.
func buildPrompt(query, contextBlock string, queryType models.QueryType, history []generatorTurn) string {
	var historyContext string
	if len(history) > 0 {
		var sb strings.Builder
		sb.WriteString("PREVIOUS CONVERSATION:\n")
		start := len(history) - 3
		if start < 0 {
			start = 0
		}
		for _, turn := range history[start:] {
			sb.WriteString("User: " + turn.Query + "\n")
			if turn.Response != "" {
				sb.WriteString("Assistant: " + turn.Response + "\n")
			}
		}
		sb.WriteString("\n")
		historyContext = sb.String()
	}

	var typeInstructions string
	switch queryType {
	case models.QueryTypeMenu:
		typeInstructions = `For menu queries:
- List available dishes with brief descriptions when available
- Mention prices if available
- Note any special features of dishes (signature, popular, etc.)`
	case models.QueryTypePrice:
		typeInstructions = `For price range queries:
- Be specific about price points when available
- Mention price ranges for different categories (appetizers, mains, etc.)
- Compare to other restaurants if this information is available`
	case models.QueryTypeDietary:
		typeInstructions = `For dietary restriction queries:
- Clearly identify which items meet the dietary requirements
- Mention if modifications are possible for other items
- Be explicit about ingredients that may violate restrictions`
	case models.QueryTypeComparison:
		typeInstructions = `For restaurant comparison queries:
- Compare on multiple factors: food, price, ambiance, etc.
- Highlight unique strengths of each restaurant
- Be balanced in your assessment`
	}

	return fmt.Sprintf(`You are a helpful and knowledgeable restaurant information assistant. Answer the user's question based ONLY on the provided restaurant information. Be conversational, accurate, and helpful.

%s

%s

USER QUESTION: %s

QUERY TYPE: %s

INSTRUCTIONS:
1. Answer ONLY based on the information provided above.
2. Be conversational, friendly, and natural in your response.
3. If information is not available, acknowledge what you can answer and what information is missing.
4. Keep your response concise (2-4 sentences for most questions).
5. Don't apologize for or mention "the provided information/context" - simply present what you know naturally.
6. Don't make up information not present in the context.
%s

RESPONSE:`, historyContext, contextBlock, query, queryType, typeInstructions)
}

// postProcessResponse strips stock disclaimer phrasing and collapses repeated
// whitespace.
func postProcessResponse(response string) string {
	for _, pattern := range disclaimerPatterns {
		response = pattern.ReplaceAllString(response, "")
	}
	response = noInfoPattern.ReplaceAllString(response, "I don't have that information")
	return strings.TrimSpace(repeatWhitespace.ReplaceAllString(response, " "))
}
