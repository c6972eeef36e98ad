package ai

import (
	"context"
	"fmt"

	"github.com/personagpt/backend/internal/config"
	"github.com/personagpt/backend/internal/model/chat"
)

// Request is one assembled conversation handed to a provider.
type Request struct {
	System  string
	History []chat.Turn
	Message string
}

// Messages flattens the request into the ordered sequence the provider
// receives: system instruction first, retained history next, the new user
// message last.
func (r Request) Messages() []chat.Turn {
	messages := make([]chat.Turn, 0, len(r.History)+2)
	messages = append(messages, chat.Turn{Role: chat.RoleSystem, Content: r.System})
	messages = append(messages, r.History...)
	messages = append(messages, chat.Turn{Role: chat.RoleUser, Content: r.Message})
	return messages
}

// Gateway performs a single completion call against a hosted model.
// Implementations classify every failure as an *Error so callers can map it
// without knowing the provider.
type Gateway interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// NewGateway builds the provider selected by CHAT_PROVIDER.
func NewGateway(ctx context.Context, cfg config.AIConfig) (Gateway, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIGateway(cfg), nil
	case config.ProviderArk:
		return NewArkGateway(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported chat provider: %q", cfg.Provider)
	}
}
