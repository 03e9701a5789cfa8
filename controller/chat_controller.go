package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/restroassist/rag/models"
	"github.com/restroassist/rag/services"
)

// ChatController handles the HTTP requests for the restaurant assistant. It
// depends on the Chatbot and ConversationManager to perform the actual logic.
type ChatController struct {
	chatbot       *services.Chatbot
	conversations *services.ConversationManager
	restaurants   []models.Restaurant
	logger        *zap.Logger
}

// NewChatController creates a new ChatController. Called from main.go to
// inject the service dependencies.
func NewChatController(chatbot *services.Chatbot, conversations *services.ConversationManager, restaurants []models.Restaurant, logger *zap.Logger) *ChatController {
	return &ChatController{
		chatbot:       chatbot,
		conversations: conversations,
		restaurants:   restaurants,
		logger:        logger,
	}
}

// Chat is the handler for POST /api/chat.
func (c *ChatController) Chat(ctx *gin.Context) {
	var req models.ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := c.chatbot.Chat(ctx.Request.Context(), req.Message, req.SessionID)
	if err != nil {
		c.logger.Error("chat request failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error": "I'm sorry, I encountered an error processing your request. Could you try asking in a different way?",
		})
		return
	}

	ctx.JSON(http.StatusOK, models.ChatResponse{
		Response:  result.Response,
		Sources:   result.Sources,
		SessionID: result.SessionID,
		QueryType: result.QueryType,
	})
}

// ChatRestaurant is the handler for POST /api/chat/restaurant/:id.
func (c *ChatController) ChatRestaurant(ctx *gin.Context) {
	restaurant, ok := c.findRestaurant(ctx.Param("id"))
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
		return
	}

	var req models.ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := c.chatbot.ChatAboutRestaurant(ctx.Request.Context(), restaurant, req.Message, req.SessionID)
	if err != nil {
		c.logger.Error("restaurant chat request failed", zap.Error(err), zap.String("restaurant", restaurant.Name))
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error": "I'm sorry, I encountered an error processing your request. Could you try asking in a different way?",
		})
		return
	}

	ctx.JSON(http.StatusOK, models.ChatResponse{
		Response:  result.Response,
		Sources:   result.Sources,
		SessionID: result.SessionID,
		QueryType: result.QueryType,
	})
}

// ListRestaurants is the handler for GET /api/restaurants.
func (c *ChatController) ListRestaurants(ctx *gin.Context) {
	summaries := make([]models.RestaurantSummary, 0, len(c.restaurants))
	for _, r := range c.restaurants {
		location := r.Location
		if location == "" {
			location = "Location not available"
		}
		summaries = append(summaries, models.RestaurantSummary{
			ID:       r.ID,
			Name:     r.Name,
			Location: location,
		})
	}
	ctx.JSON(http.StatusOK, summaries)
}

// GetRestaurant is the handler for GET /api/restaurant/:id.
func (c *ChatController) GetRestaurant(ctx *gin.Context) {
	restaurant, ok := c.findRestaurant(ctx.Param("id"))
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
		return
	}
	ctx.JSON(http.StatusOK, restaurant)
}

// GetRestaurantMenu is the handler for GET /api/restaurant/:id/menu.
func (c *ChatController) GetRestaurantMenu(ctx *gin.Context) {
	restaurant, ok := c.findRestaurant(ctx.Param("id"))
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
		return
	}
	menu := restaurant.Menu
	if menu == nil {
		menu = []models.MenuItem{}
	}
	ctx.JSON(http.StatusOK, menu)
}

// CreateSession is the handler for POST /api/session.
func (c *ChatController) CreateSession(ctx *gin.Context) {
	ctx.JSON(http.StatusCreated, models.SessionResponse{
		SessionID: c.conversations.CreateSession(),
	})
}

// GetSessionHistory is the handler for GET /api/session/:id/history.
func (c *ChatController) GetSessionHistory(ctx *gin.Context) {
	sessionID := ctx.Param("id")
	ctx.JSON(http.StatusOK, models.HistoryResponse{
		SessionID: sessionID,
		Turns:     c.conversations.GetHistory(sessionID, 0),
	})
}

// DeleteSession is the handler for DELETE /api/session/:id.
func (c *ChatController) DeleteSession(ctx *gin.Context) {
	sessionID := ctx.Param("id")
	if !c.chatbot.ResetConversation(sessionID) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "success", "message": "Conversation reset successfully"})
}

func (c *ChatController) findRestaurant(id string) (models.Restaurant, bool) {
	for _, r := range c.restaurants {
		if r.ID == id {
			return r, true
		}
	}
	return models.Restaurant{}, false
}
