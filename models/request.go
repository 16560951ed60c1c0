package models

// ChatMessage is one prior turn supplied by the caller.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message   string        `json:"message" binding:"required"`
	SessionID string        `json:"sessionID,omitempty"`
	History   []ChatMessage `json:"history,omitempty"`
}

type TariffQueryRequest struct {
	Query   string `json:"query" binding:"required"`
	Country string `json:"country" binding:"required"`
	K       int    `json:"k,omitempty"`
}

type EmailRequest struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
}
