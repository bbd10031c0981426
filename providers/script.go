package providers

import (
	"context"
	"sync"
	"time"

	"github.com/daeguwebtoon/chatcore/types"
)

// ScriptProvider replays a fixed sequence of replies. It backs tests and
// offline operation when no API key is configured.
//
// Replies are consumed in order; once exhausted the provider repeats the
// final entry. An empty script falls back to a single stock reply.
type ScriptProvider struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	index   int
	calls   []ChatRequest
}

const scriptFallbackReply = "응, 계속 이야기해 줄래?"

// NewScriptProvider creates a provider that replays the given replies in order.
func NewScriptProvider(replies ...string) *ScriptProvider {
	return &ScriptProvider{replies: replies}
}

// FailWith queues errors to be returned before any scripted replies are
// consumed. Each queued error is returned once, in order.
func (p *ScriptProvider) FailWith(errs ...error) *ScriptProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, errs...)
	return p
}

// ID implements Provider.
func (p *ScriptProvider) ID() string { return "script" }

// Model returns a fixed placeholder; scripted replies involve no model.
func (p *ScriptProvider) Model() string { return "scripted" }

// Chat implements Provider.
func (p *ScriptProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return ChatResponse{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, req)

	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return ChatResponse{}, err
	}

	reply := scriptFallbackReply
	if len(p.replies) > 0 {
		i := p.index
		if i >= len(p.replies) {
			i = len(p.replies) - 1
		}
		reply = p.replies[i]
		p.index++
	}

	return ChatResponse{
		Content: reply,
		Usage: types.Usage{
			PromptTokens:     len(req.Messages) * 10,
			CompletionTokens: len([]rune(reply)),
			TotalTokens:      len(req.Messages)*10 + len([]rune(reply)),
		},
		Latency: time.Millisecond,
	}, nil
}

// Calls returns a copy of every request seen so far.
func (p *ScriptProvider) Calls() []ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ChatRequest, len(p.calls))
	copy(out, p.calls)
	return out
}

// Close implements Provider.
func (p *ScriptProvider) Close() error { return nil }

var _ Provider = (*ScriptProvider)(nil)
var _ Provider = (*OpenAIProvider)(nil)
