// Package chat answers site visitor questions through a Gemini model primed
// with the company knowledge base.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-flash-latest"

var (
	// ErrAPIKeyMissing is returned by Reply when no API key was configured.
	ErrAPIKeyMissing = errors.New("API key not configured")
	// ErrNoMessages is returned for an empty conversation.
	ErrNoMessages = errors.New("conversation has no messages")
)

// Message is one turn of a visitor conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Model is the slice of the genai models API the proxy needs. *genai.Models
// satisfies it.
type Model interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var _ Model = (*genai.Models)(nil)

// Config selects the remote model.
type Config struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// Proxy forwards conversations to the model.
type Proxy struct {
	model  Model
	name   string
	logger *zap.Logger
}

// NewProxy wraps an existing model client.
func NewProxy(model Model, name string, logger *zap.Logger) *Proxy {
	if name == "" {
		name = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{model: model, name: name, logger: logger}
}

// NewGeminiProxy builds a proxy backed by the Gemini API. Without an API key
// the proxy is still returned and every Reply fails with ErrAPIKeyMissing.
func NewGeminiProxy(ctx context.Context, cfg Config, logger *zap.Logger) (*Proxy, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return NewProxy(nil, cfg.Model, logger), nil
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return NewProxy(client.Models, cfg.Model, logger), nil
}

// Configured reports whether Reply can reach a model.
func (p *Proxy) Configured() bool { return p.model != nil }

// WantsShort reports whether the visitor asked for a brief answer.
func WantsShort(message string) bool {
	lower := strings.ToLower(message)
	for _, trigger := range shortTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

// Prompt returns the model prompt for the last visitor message.
func Prompt(message string) string {
	if WantsShort(message) {
		return message + shortSuffix
	}
	return message
}

// History converts prior turns to model contents. Only "user" maps to the user
// role; every other role is attributed to the model.
func History(messages []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleModel)
		if m.Role == "user" {
			role = genai.RoleUser
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

// Reply answers the last message of the conversation with the earlier turns as
// history.
func (p *Proxy) Reply(ctx context.Context, messages []Message) (string, error) {
	if p.model == nil {
		return "", ErrAPIKeyMissing
	}
	if len(messages) == 0 {
		return "", ErrNoMessages
	}
	last := messages[len(messages)-1]
	contents := History(messages[:len(messages)-1])
	contents = append(contents, genai.NewContentFromText(Prompt(last.Content), genai.RoleUser))

	resp, err := p.model.GenerateContent(ctx, p.name, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(SystemPrompt)}},
	})
	if err != nil {
		p.logger.Warn("chat generation failed", zap.String("model", p.name), zap.Int("turns", len(messages)), zap.Error(err))
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	p.logger.Debug("chat reply", zap.String("model", p.name), zap.Int("turns", len(messages)), zap.Bool("short", WantsShort(last.Content)))
	return text, nil
}
