package ai

import (
	"context"
	"errors"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider sends a full message sequence to a chat-completion backend and
// returns the assistant text.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ErrMissingAPIKey is returned before any network call when the provider has
// no credentials configured.
var ErrMissingAPIKey = errors.New("api key not configured")

// APIError is a non-success answer from an external API.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return e.Provider + ": " + e.Body
}
