package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/personagpt/backend/internal/config"
	"github.com/personagpt/backend/internal/model/chat"
)

// ArkGateway runs completions through a Volcengine Ark model behind an eino
// chain.
type ArkGateway struct {
	runnable compose.Runnable[map[string]any, *schema.Message]
	timeout  time.Duration
}

// NewArkGateway compiles the prompt-plus-model chain. When the Ark
// credentials are absent the gateway still constructs, and every Complete
// call reports an authentication failure.
func NewArkGateway(ctx context.Context, cfg config.AIConfig) (*ArkGateway, error) {
	gateway := &ArkGateway{timeout: cfg.RequestTimeout}
	if !cfg.ArkConfigured() {
		return gateway, nil
	}

	chatModel, err := cfg.NewArkChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	gateway.runnable = runnable
	return gateway, nil
}

// Complete sends the assembled conversation and returns the model's reply.
func (g *ArkGateway) Complete(ctx context.Context, req Request) (string, error) {
	if g.runnable == nil {
		return "", AuthenticationFailure("ark credentials are not configured")
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	response, err := g.runnable.Invoke(ctx, map[string]any{
		"system":  req.System,
		"history": historyMessages(req.History),
		"query":   req.Message,
	})
	if err != nil {
		return "", classifyArkError(err)
	}

	if strings.TrimSpace(response.Content) == "" {
		return "", UnknownFailure("model returned an empty message", nil)
	}

	return response.Content, nil
}

func historyMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}

	return history
}

// classifyArkError maps chain failures onto the gateway taxonomy. The chain
// flattens provider responses into plain errors, so beyond cancellation and
// network failures the classification leans on well-known message fragments.
func classifyArkError(err error) error {
	if isCancellation(err) {
		return UpstreamUnavailable("model call canceled or timed out", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "authentication", "unauthorized", "invalid api key", "access denied", "401", "403"):
		return AuthenticationFailure("ark rejected the credentials: " + err.Error())
	case containsAny(msg, "rate limit", "too many requests", "quota", "429"):
		return RateLimited("ark throttled the request", err)
	case isNetworkError(err) || containsAny(msg, "service unavailable", "internal server error", "bad gateway", "502", "503", "504"):
		return UpstreamUnavailable("ark endpoint unavailable", err)
	default:
		return UnknownFailure("model call failed", err)
	}
}

func containsAny(s string, fragments ...string) bool {
	for _, fragment := range fragments {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}
