package models

import "time"

// ConversationTurn is one (query, response) exchange in a session's history.
type ConversationTurn struct {
	Query     string                 `json:"query"`
	Response  string                 `json:"response"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
