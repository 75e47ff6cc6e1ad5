// Package gateway talks to the chat-completion provider (Groq, through its
// OpenAI-compatible API).
package gateway

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Roles understood by the provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Defaults for Groq.
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama3-8b-8192"
	DefaultTimeout = 30 * time.Second
)

// ErrNoChoices is returned when the provider answers without any choice.
var ErrNoChoices = errors.New("completion returned no choices")

// Message is one prompt entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice is one completion alternative, shaped like the OpenAI response so
// clients can read choices[0].message.content.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Completer produces completions for a prompt.
type Completer interface {
	Complete(ctx context.Context, msgs []Message) ([]Choice, error)
}

// Config configures the Groq client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Groq is a Completer backed by langchaingo's OpenAI client.
type Groq struct {
	llm     llms.Model
	timeout time.Duration
}

// NewGroq builds a client. An API key is required.
func NewGroq(cfg Config) (*Groq, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gateway: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, errors.Wrap(err, "gateway: create client")
	}
	return &Groq{llm: llm, timeout: cfg.Timeout}, nil
}

// Complete sends the prompt once. There is no retry.
func (g *Groq) Complete(ctx context.Context, msgs []Message) ([]Choice, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	content := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		content = append(content, llms.TextParts(messageType(m.Role), m.Content))
	}

	resp, err := g.llm.GenerateContent(ctx, content)
	if err != nil {
		return nil, errors.Wrap(err, "gateway: generate content")
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choices := make([]Choice, 0, len(resp.Choices))
	for i, c := range resp.Choices {
		choices = append(choices, Choice{
			Index:        i,
			Message:      Message{Role: RoleAssistant, Content: c.Content},
			FinishReason: c.StopReason,
		})
	}
	return choices, nil
}

func messageType(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
