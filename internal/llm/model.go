// Package llm talks to the language models that play the persona, coach the
// trainee and score the call.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/prompt"
)

// ErrMissingAPIKey is returned by hosted providers configured without a key.
var ErrMissingAPIKey = errors.New("llm: api key missing")

// Role of a chat message. Replies from the model use RoleModel.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one entry of a conversation sent to a model.
type Message struct {
	Role Role
	Text string
}

// Request is a single generation call.
type Request struct {
	System   string
	Messages []Message
	// Schema, when set, asks for a JSON response of that shape.
	Schema *prompt.Schema
	// NoThinking disables extended reasoning for latency-sensitive calls.
	NoThinking bool
}

// Model generates one complete response. Streaming providers buffer internally.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// stripFences removes a ```json fence some models wrap JSON output in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
