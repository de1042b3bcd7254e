package provider

import (
	"context"
	"errors"
	"time"

	openai_provider "github.com/devy-ai/devy/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Message is one entry of a chat-completion context.
type Message = openai_provider.Message

// Chat roles understood by the providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider is the language-generation capability the advisor depends on.
// Implementations may be slow, may fail, and may return text that does not
// conform to any expected format; callers must never assume well-formed
// output. Generate blocks until the model replies, the context is
// cancelled, or the client timeout fires.
type Provider interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Options configures a provider client. Constructed once at startup and
// handed to NewProvider; there is no package-level client state.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewProvider creates an LLM client for the given provider type.
func NewProvider(client Client, opts Options) (Provider, error) {
	switch client {
	case OpenAI:
		if opts.APIKey == "" {
			return nil, errors.New("openai api key not set")
		}
		if opts.Timeout <= 0 {
			opts.Timeout = 30 * time.Second
		}
		return openai_provider.NewClient(opts.APIKey, opts.BaseURL, opts.Model, opts.Temperature, opts.MaxTokens, opts.Timeout), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
