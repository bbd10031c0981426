// Package providers defines the text generation interface behind the chat
// engine, with an OpenAI-backed implementation and a deterministic scripted
// provider for tests and offline operation.
package providers

import (
	"context"
	"time"

	"github.com/daeguwebtoon/chatcore/types"
)

// ChatRequest carries one generation call: a system prompt plus the recent
// conversation tail.
type ChatRequest struct {
	System      string
	Messages    []types.Message
	Temperature float32
	MaxTokens   int
}

// ChatResponse is the provider's reply for a single turn.
type ChatResponse struct {
	Content string
	Usage   types.Usage
	Latency time.Duration
}

// Provider generates in-character replies. Implementations must be safe for
// concurrent use.
type Provider interface {
	// ID returns a short stable identifier used in logs and metrics.
	ID() string

	// Model names the underlying model, for logs and metrics labels.
	Model() string

	// Chat produces one assistant reply for the given request.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// Close releases any underlying resources.
	Close() error
}
