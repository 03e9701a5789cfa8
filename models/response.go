package models

// SourceInfo is a truncated view of a retrieved document returned alongside a
// chat answer so clients can show where the information came from.
type SourceInfo struct {
	Content    string  `json:"content"`
	Restaurant string  `json:"restaurant"`
	Score      float64 `json:"score"`
}

// ChatResponse is the body returned by the chat endpoints.
type ChatResponse struct {
	Response  string       `json:"response"`
	Sources   []SourceInfo `json:"sources,omitempty"`
	SessionID string       `json:"session_id"`
	QueryType QueryType    `json:"query_type,omitempty"`
}

// SessionResponse is returned when a new session is created.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// HistoryResponse is returned by the session history endpoint.
type HistoryResponse struct {
	SessionID string             `json:"session_id"`
	Turns     []ConversationTurn `json:"turns"`
}

// RestaurantSummary is the list view of a restaurant.
type RestaurantSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}
