package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/daeguwebtoon/chatcore/logger"
	"github.com/daeguwebtoon/chatcore/types"
)

// HTTP constants
const (
	openAIChatCompletionsPath = "/chat/completions"
	contentTypeHeader         = "Content-Type"
	applicationJSON           = "application/json"
	authorizationHeader       = "Authorization"
	bearerPrefix              = "Bearer "
)

// Generation defaults tuned for short in-character replies.
const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultMaxTokens   = 120
	DefaultTemperature = 0.85
	defaultHTTPTimeout = 30 * time.Second
)

// OpenAIProvider implements Provider against the OpenAI chat completions API.
type OpenAIProvider struct {
	id      string
	model   string
	baseURL string
	apiKey  string
	client  *http.Client
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithModel overrides the default model.
func WithModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL points the provider at a different API endpoint, typically a
// test server or proxy.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if baseURL != "" {
			p.baseURL = baseURL
		}
	}
}

// WithAPIKey sets the API key explicitly instead of reading OPENAI_API_KEY.
func WithAPIKey(key string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if key != "" {
			p.apiKey = key
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		if client != nil {
			p.client = client
		}
	}
}

// NewOpenAIProvider creates an OpenAI-backed provider. The API key is read
// from OPENAI_API_KEY unless supplied via WithAPIKey.
func NewOpenAIProvider(opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		id:      "openai",
		model:   DefaultModel,
		baseURL: DefaultBaseURL,
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OpenAI API request/response structures
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float32         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// ID implements Provider.
func (p *OpenAIProvider) ID() string { return p.id }

// Model returns the configured chat completion model.
func (p *OpenAIProvider) Model() string { return p.model }

// prepareMessages converts a chat request into OpenAI wire format with the
// system prompt first.
func (p *OpenAIProvider) prepareMessages(req ChatRequest) []openAIMessage {
	messages := make([]openAIMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openAIMessage{Role: m.Role, Content: m.Content})
	}
	return messages
}

// applyDefaults fills zero-valued generation parameters.
func (p *OpenAIProvider) applyDefaults(req ChatRequest) (temperature float32, maxTokens int) {
	temperature = req.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	maxTokens = req.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	return temperature, maxTokens
}

// Chat implements Provider.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if p.apiKey == "" {
		return ChatResponse{}, fmt.Errorf("openai: API key not configured")
	}

	temperature, maxTokens := p.applyDefaults(req)
	body := openAIRequest{
		Model:       p.model,
		Messages:    p.prepareMessages(req),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("openai: marshal request: %w", err)
	}

	url := p.baseURL + openAIChatCompletionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set(contentTypeHeader, applicationJSON)
	httpReq.Header.Set(authorizationHeader, bearerPrefix+p.apiKey)

	logger.LLMCall(p.id, p.model, len(body.Messages), float64(temperature))
	logger.APIRequest(p.id, http.MethodPost, url, nil, body)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		logger.LLMError(p.id, p.model, err)
		return ChatResponse{}, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("openai: read response: %w", err)
	}
	logger.APIResponse(p.id, resp.StatusCode, string(raw), nil)

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ChatResponse{}, fmt.Errorf("openai: decode response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		err := fmt.Errorf("openai: API error %s: %s", parsed.Error.Type, parsed.Error.Message)
		logger.LLMError(p.id, p.model, err)
		return ChatResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("openai: unexpected status %d", resp.StatusCode)
		logger.LLMError(p.id, p.model, err)
		return ChatResponse{}, err
	}
	if len(parsed.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("openai: response contained no choices")
	}

	latency := time.Since(start)
	logger.LLMResponse(p.id, p.model, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens,
		"latency_ms", latency.Milliseconds())

	return ChatResponse{
		Content: parsed.Choices[0].Message.Content,
		Usage: types.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
		Latency: latency,
	}, nil
}

// Close implements Provider.
func (p *OpenAIProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
