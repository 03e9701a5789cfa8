package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/restroassist/rag/models"
)

// outOfScopeKeywords gate requests the assistant cannot help with before any
// retrieval happens.
var outOfScopeKeywords = []string{
	"booking", "reservation", "order", "deliver", "pickup", "weather", "stock", "politics",
}

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	Response  string
	Sources   []models.SourceInfo
	SessionID string
	QueryType models.QueryType
}

// Chatbot wires retrieval, generation and conversation memory into the
// per-turn control flow. Memory is only written after a response was produced,
// so a failed turn never corrupts the history.
type Chatbot struct {
	retriever     *Retriever
	generator     *Generator
	conversations *ConversationManager
	logger        *zap.Logger
}

// NewChatbot creates the chat orchestrator.
func NewChatbot(retriever *Retriever, generator *Generator, conversations *ConversationManager, logger *zap.Logger) *Chatbot {
	return &Chatbot{
		retriever:     retriever,
		generator:     generator,
		conversations: conversations,
		logger:        logger,
	}
}

// Chat processes one user turn: session resolution, scope gate, retrieval,
// generation and the memory update.
func (b *Chatbot) Chat(ctx context.Context, query, sessionID string) (*ChatResult, error) {
	if sessionID == "" {
		sessionID = b.conversations.CreateSession()
	}

	if strings.TrimSpace(query) == "" {
		return &ChatResult{
			Response:  "I didn't receive a question. How can I help you with restaurant information?",
			SessionID: sessionID,
			QueryType: models.QueryTypeGeneral,
		}, nil
	}

	if b.isOutOfScope(query) {
		response := "I'm specialized in providing information about restaurants, their menus, and features. " +
			"I can't help with bookings, ordering, or topics unrelated to restaurant information. " +
			"How else can I assist you with restaurant details?"
		b.conversations.AddTurn(sessionID, query, response, map[string]interface{}{
			"query_type": string(models.QueryTypeOutOfScope),
		})
		return &ChatResult{
			Response:  response,
			SessionID: sessionID,
			QueryType: models.QueryTypeOutOfScope,
		}, nil
	}

	history := b.conversations.GetHistory(sessionID, 0)
	queryType := b.retriever.DetectQueryType(query)

	docs, err := b.retriever.Retrieve(ctx, query, nil, history)
	if err != nil {
		return nil, err
	}

	response, err := b.generator.Generate(ctx, query, docs, sessionID)
	if err != nil {
		return nil, err
	}

	b.conversations.AddTurn(sessionID, query, response, map[string]interface{}{
		"query_type": string(queryType),
	})

	return &ChatResult{
		Response:  response,
		Sources:   summarizeSources(docs),
		SessionID: sessionID,
		QueryType: queryType,
	}, nil
}

// ChatAboutRestaurant processes a turn scoped to a single restaurant. The
// query is prefixed with the restaurant context and retrieval is filtered to
// it; when retrieval comes back empty, a fallback document is synthesized from
// the restaurant record so the generator still has something to answer from.
func (b *Chatbot) ChatAboutRestaurant(ctx context.Context, restaurant models.Restaurant, query, sessionID string) (*ChatResult, error) {
	if sessionID == "" {
		sessionID = b.conversations.CreateSession()
	}

	enhancedQuery := fmt.Sprintf("For the restaurant '%s': %s", restaurant.Name, query)
	history := b.conversations.GetHistory(sessionID, 0)

	docs, err := b.retriever.Retrieve(ctx, enhancedQuery, map[string]string{"restaurant": restaurant.Name}, history)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		docs = []models.RetrievedDocument{synthesizeRestaurantDoc(restaurant)}
		b.logger.Debug("retrieval empty, synthesized restaurant fallback document",
			zap.String("restaurant", restaurant.Name))
	}

	response, err := b.generator.Generate(ctx, enhancedQuery, docs, sessionID)
	if err != nil {
		return nil, err
	}

	b.conversations.AddTurn(sessionID, query, response, map[string]interface{}{
		"restaurant_id": restaurant.ID,
	})

	return &ChatResult{
		Response:  response,
		Sources:   summarizeSources(docs),
		SessionID: sessionID,
	}, nil
}

// ResetConversation clears both the turn log and the generator's micro-history
// for a session. It reports whether a session existed.
func (b *Chatbot) ResetConversation(sessionID string) bool {
	b.generator.ClearHistory(sessionID)
	return b.conversations.ClearHistory(sessionID)
}

func (b *Chatbot) isOutOfScope(query string) bool {
	queryLower := strings.ToLower(query)
	for _, keyword := range outOfScopeKeywords {
		if strings.Contains(queryLower, keyword) {
			return true
		}
	}
	return false
}

// synthesizeRestaurantDoc builds an info document straight from the restaurant
// record, scored as an exact match.
func synthesizeRestaurantDoc(restaurant models.Restaurant) models.RetrievedDocument {
	var menu strings.Builder
	for _, item := range restaurant.Menu {
		if item.Name == "" {
			continue
		}
		description := item.Description
		if description == "" {
			description = "No description"
		}
		foodType := item.FoodType
		if foodType == "" {
			foodType = "Unknown type"
		}
		menu.WriteString(fmt.Sprintf("- %s: %s (%s)\n", item.Name, description, foodType))
	}

	content := fmt.Sprintf("Restaurant: %s\nLocation: %s\nMenu items:\n%s",
		restaurant.Name, restaurant.Location, menu.String())
	return models.RetrievedDocument{
		Document: models.Document{
			Content: content,
			Metadata: map[string]interface{}{
				"restaurant": restaurant.Name,
				"type":       "info",
			},
		},
		Score: 1.0,
	}
}

// summarizeSources truncates document contents for the API response.
func summarizeSources(docs []models.RetrievedDocument) []models.SourceInfo {
	sources := make([]models.SourceInfo, 0, len(docs))
	for _, doc := range docs {
		content := doc.Content
		if len(content) > 100 {
			content = content[:100] + "..."
		}
		restaurant := doc.Restaurant()
		if restaurant == "" {
			restaurant = "Unknown"
		}
		sources = append(sources, models.SourceInfo{
			Content:    content,
			Restaurant: restaurant,
			Score:      doc.Score,
		})
	}
	return sources
}
