package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

var (
	ErrMissingMessages  = errors.New("missing required field: messages")
	ErrMessagesNotArray = errors.New("messages must be an array")
	ErrMissingAPIKey    = errors.New("deepseek: API key is not configured")
	ErrTimeout          = errors.New("deepseek: upstream timeout")
	ErrResponseTooLarge = errors.New("deepseek: upstream response too large")
	errNilPayload       = errors.New("deepseek: payload is nil")
)

// ChatRequest is the inbound client body. Pointer fields distinguish an
// absent value from an explicit zero; any other field is dropped on decode.
type ChatRequest struct {
	Model       *string         `json:"model"`
	Messages    json.RawMessage `json:"messages"`
	Temperature *float64        `json:"temperature"`
	MaxTokens   *int            `json:"max_tokens"`
}

// Validate checks that messages is a non-empty JSON array and returns its
// elements untouched.
func (r *ChatRequest) Validate() ([]json.RawMessage, error) {
	raw := bytes.TrimSpace(r.Messages)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrMissingMessages
	}

	var messages []json.RawMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, ErrMessagesNotArray
	}
	if len(messages) == 0 {
		return nil, ErrMissingMessages
	}
	return messages, nil
}

// Payload is the body sent upstream.
type Payload struct {
	Model       string            `json:"model"`
	Messages    []json.RawMessage `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
	Stream      bool              `json:"stream"`
}

// BuildPayload merges the client fields with the defaults. Stream is always
// false.
func BuildPayload(req *ChatRequest, messages []json.RawMessage) *Payload {
	p := &Payload{
		Model:       DefaultModel,
		Messages:    messages,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Stream:      false,
	}
	if req.Model != nil && *req.Model != "" {
		p.Model = *req.Model
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		p.MaxTokens = *req.MaxTokens
	}
	return p
}

// Response is the raw upstream answer. Body is not parsed.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type completionEnvelope struct {
	Model string `json:"model"`
	Usage *Usage `json:"usage"`
}

// ParseUsage extracts the model and token usage from a completion body.
// ok is false when the body carries no usage member.
func ParseUsage(body []byte) (model string, usage Usage, ok bool) {
	var env completionEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Usage == nil {
		return "", Usage{}, false
	}
	return env.Model, *env.Usage, true
}

type Client interface {
	ChatCompletion(ctx context.Context, payload *Payload) (*Response, error)
}
