package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/personagpt/backend/internal/config"
	"github.com/personagpt/backend/internal/model/chat"
)

// OpenAIGateway talks to OpenAI or any API-compatible endpoint.
type OpenAIGateway struct {
	client      *openai.Client
	apiKey      string
	model       string
	timeout     time.Duration
	temperature *float64
	topP        *float64
	maxTokens   *int
}

// NewOpenAIGateway builds the gateway. Missing credentials do not fail
// construction; the first Complete call reports them as an authentication
// failure instead.
func NewOpenAIGateway(cfg config.AIConfig) *OpenAIGateway {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIGateway{
		client:      openai.NewClientWithConfig(clientConfig),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		timeout:     cfg.RequestTimeout,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
	}
}

// Complete sends the assembled conversation and returns the model's reply.
func (g *OpenAIGateway) Complete(ctx context.Context, req Request) (string, error) {
	if g.apiKey == "" {
		return "", AuthenticationFailure("OPENAI_API_KEY is not set")
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.CreateChatCompletion(ctx, g.completionRequest(req))
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", UnknownFailure("model returned no choices", nil)
	}

	reply := resp.Choices[0].Message.Content
	if strings.TrimSpace(reply) == "" {
		return "", UnknownFailure("model returned an empty message", nil)
	}

	return reply, nil
}

func (g *OpenAIGateway) completionRequest(req Request) openai.ChatCompletionRequest {
	turns := req.Messages()
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    roleForOpenAI(turn.Role),
			Content: turn.Content,
		})
	}

	out := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
	}
	if g.temperature != nil {
		out.Temperature = float32(*g.temperature)
	}
	if g.topP != nil {
		out.TopP = float32(*g.topP)
	}
	if g.maxTokens != nil {
		out.MaxTokens = *g.maxTokens
	}
	return out
}

func roleForOpenAI(role chat.Role) string {
	switch role {
	case chat.RoleSystem:
		return openai.ChatMessageRoleSystem
	case chat.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// classifyOpenAIError folds the client's error types into the gateway
// taxonomy. Status-bearing errors classify by status; everything else is
// split into cancellation, network trouble, and the unknown remainder.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	if isCancellation(err) {
		return UpstreamUnavailable("model call canceled or timed out", err)
	}
	if isNetworkError(err) {
		return UpstreamUnavailable("model endpoint unreachable", err)
	}

	return UnknownFailure("model call failed", err)
}
