package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/restroassist/rag/models"
)

// ConversationManager is the bounded per-session turn log. Sessions are keyed
// by opaque ids and never expire automatically; only ClearHistory removes one.
type ConversationManager struct {
	mu            sync.Mutex
	conversations map[string][]models.ConversationTurn
	maxHistory    int
}

// NewConversationManager creates a manager keeping at most maxHistory turns
// per session (default 10).
func NewConversationManager(maxHistory int) *ConversationManager {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	return &ConversationManager{
		conversations: make(map[string][]models.ConversationTurn),
		maxHistory:    maxHistory,
	}
}

// CreateSession registers a new empty session and returns its id.
func (m *ConversationManager) CreateSession() string {
	sessionID := uuid.New().String()
	m.mu.Lock()
	m.conversations[sessionID] = []models.ConversationTurn{}
	m.mu.Unlock()
	return sessionID
}

// AddTurn appends a turn to the session, creating the session lazily if it is
// unknown. The oldest turns are dropped once the session exceeds maxHistory.
func (m *ConversationManager) AddTurn(sessionID, query, response string, metadata map[string]interface{}) {
	turn := models.ConversationTurn{
		Query:     query,
		Response:  response,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	turns := append(m.conversations[sessionID], turn)
	if len(turns) > m.maxHistory {
		turns = turns[len(turns)-m.maxHistory:]
	}
	m.conversations[sessionID] = turns
}

// GetHistory returns the session's turns in insertion order. Unknown sessions
// yield an empty list, never an error. A positive maxTurns limits the result
// to the most recent slice.
func (m *ConversationManager) GetHistory(sessionID string, maxTurns int) []models.ConversationTurn {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := m.conversations[sessionID]
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	out := make([]models.ConversationTurn, len(turns))
	copy(out, turns)
	return out
}

// ClearHistory removes a session entirely. It reports whether the session
// existed.
func (m *ConversationManager) ClearHistory(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[sessionID]; !ok {
		return false
	}
	delete(m.conversations, sessionID)
	return true
}
