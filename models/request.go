package models

// ChatRequest is the body of the chat endpoints.
type ChatRequest struct {
	Message   string `json:"message" binding:"required,max=1000"`
	SessionID string `json:"session_id,omitempty"`
}
