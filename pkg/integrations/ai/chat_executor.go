package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const DefaultChatTimeout = 60 * time.Second

type ChatParams struct {
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	Prompt       string   `json:"prompt"`
	SystemPrompt string   `json:"systemPrompt"`
	Temperature  *float64 `json:"temperature"`
	MaxTokens    int      `json:"maxTokens"`
	TimeoutMs    int      `json:"timeoutMs"`
}

type ChatExecutor struct {
	providers       map[string]ChatProvider
	defaultProvider string
	timeout         time.Duration
}

type ChatExecutorDependencies struct {
	Providers       map[string]ChatProvider
	DefaultProvider string
	Timeout         time.Duration
}

func NewChatExecutor(deps ChatExecutorDependencies) *ChatExecutor {
	defaultProvider := deps.DefaultProvider
	if defaultProvider == "" {
		defaultProvider = ProviderOpenAI
	}

	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultChatTimeout
	}

	return &ChatExecutor{
		providers:       deps.Providers,
		defaultProvider: defaultProvider,
		timeout:         timeout,
	}
}

func (e *ChatExecutor) Run(ctx context.Context, input domain.RunInput) (any, error) {
	var params ChatParams
	if err := domain.DecodeParams(input.Data, &params); err != nil {
		return nil, err
	}

	if strings.TrimSpace(params.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	providerName := strings.ToLower(strings.TrimSpace(params.Provider))
	if providerName == "" {
		providerName = e.defaultProvider
	}

	provider, ok := e.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("ai provider %q is not configured", providerName)
	}

	timeout := e.timeout
	if params.TimeoutMs > 0 {
		timeout = time.Duration(params.TimeoutMs) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()

	resp, err := provider.Chat(ctx, ChatRequest{
		Model:        params.Model,
		SystemPrompt: params.SystemPrompt,
		Prompt:       params.Prompt,
		Temperature:  params.Temperature,
		MaxTokens:    params.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("node_id", input.NodeID).
		Str("provider", providerName).
		Str("model", resp.Model).
		Int("total_tokens", resp.Usage.TotalTokens).
		Dur("duration", time.Since(started)).
		Msg("Chat completion finished")

	return map[string]any{
		"content":  resp.Content,
		"model":    resp.Model,
		"provider": providerName,
		"usage": map[string]any{
			"promptTokens":     resp.Usage.PromptTokens,
			"completionTokens": resp.Usage.CompletionTokens,
			"totalTokens":      resp.Usage.TotalTokens,
		},
	}, nil
}
