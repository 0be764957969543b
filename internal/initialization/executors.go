package initialization

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/expressions"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/integrations/ai"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/integrations/apiconnector"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/integrations/code"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/integrations/condition"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/integrations/delay"
	httpintegration "github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/integrations/http"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/integrations/knowledge"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/integrations/messaging"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/integrations/response"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/integrations/trigger"
)

type ExecutorRegistryDependencies struct {
	Config           ExecutorsConfig
	AI               AIConfig
	Transport        http.RoundTripper
	ArtifactManager  domain.ArtifactManager
	ChannelDirectory domain.ChannelDirectory
	ChannelDelivery  domain.ChannelDelivery
	KnowledgeBase    domain.KnowledgeBase
}

// NewOutboundTransport returns the round tripper shared by every plugin that
// calls out over HTTP, instrumented so outbound calls join the run's trace.
func NewOutboundTransport() http.RoundTripper {
	return otelhttp.NewTransport(http.DefaultTransport)
}

// BuildExecutorRegistry registers one executor per node type, aliases included.
func BuildExecutorRegistry(deps ExecutorRegistryDependencies) *domain.ExecutorRegistry {
	registry := domain.NewExecutorRegistry()

	transport := deps.Transport
	if transport == nil {
		transport = NewOutboundTransport()
	}

	evaluator := expressions.NewEvaluator()

	httpExecutor := domain.NewBaseExecutor(httpintegration.NewHTTPExecutor(httpintegration.HTTPExecutorDependencies{
		Transport:      transport,
		DefaultTimeout: deps.Config.HTTPTimeout,
	}))
	registry.Register(domain.NodeTypeHTTP, httpExecutor)
	registry.Register(domain.NodeTypeHTTPRequest, httpExecutor)

	registry.Register(domain.NodeTypeCode, domain.NewBaseExecutor(code.NewCodeExecutor(code.CodeExecutorDependencies{
		Timeout: deps.Config.CodeTimeout,
	})))

	registry.Register(domain.NodeTypeCondition, domain.NewBaseExecutor(condition.NewConditionExecutor()))

	registry.Register(domain.NodeTypeDelay, domain.NewBaseExecutor(delay.NewDelayExecutor(delay.DelayExecutorDependencies{
		MaxDuration: deps.Config.MaxDelay,
	})))

	apiConnector := apiconnector.NewAPIConnectorExecutor(apiconnector.APIConnectorExecutorDependencies{
		Transport:      transport,
		Evaluator:      evaluator,
		DefaultTimeout: deps.Config.APIConnectorTimeout,
	})
	registry.Register(domain.NodeTypeAPIConnector, domain.NewBaseExecutor(apiConnector))

	registry.Register(domain.NodeTypeWebhook, domain.NewBaseExecutor(trigger.NewWebhookExecutor(trigger.WebhookExecutorDependencies{
		Outbound: apiConnector,
	})))

	passthrough := domain.NewBaseExecutor(trigger.NewPassthroughExecutor())
	registry.Register(domain.NodeTypeManual, passthrough)
	registry.Register(domain.NodeTypeTrigger, passthrough)
	registry.Register(domain.NodeTypeSchedule, passthrough)

	registry.Register(domain.NodeTypeResponseHandler, domain.NewBaseExecutor(response.NewResponseHandlerExecutor(response.ResponseHandlerExecutorDependencies{
		Evaluator: evaluator,
	})))

	messagingExecutor := domain.NewBaseExecutor(messaging.NewMessagingExecutor(messaging.MessagingExecutorDependencies{
		Directory: deps.ChannelDirectory,
		Delivery:  deps.ChannelDelivery,
	}))
	registry.Register(domain.NodeTypeMessaging, messagingExecutor)
	registry.Register(domain.NodeTypeChannel, messagingExecutor)
	registry.Register(domain.NodeTypeSendMessage, messagingExecutor)

	knowledgeExecutor := domain.NewBaseExecutor(knowledge.NewKnowledgeExecutor(knowledge.KnowledgeExecutorDependencies{
		KnowledgeBase: deps.KnowledgeBase,
	}))
	registry.Register(domain.NodeTypeKnowledge, knowledgeExecutor)
	registry.Register(domain.NodeTypeKnowledgeQuery, knowledgeExecutor)

	chatProviders, imageProvider := buildAIProviders(deps.AI, transport)

	registry.Register(domain.NodeTypeAIChat, domain.NewBaseExecutor(ai.NewChatExecutor(ai.ChatExecutorDependencies{
		Providers:       chatProviders,
		DefaultProvider: deps.AI.DefaultProvider,
		Timeout:         deps.Config.AITimeout,
	})))

	registry.Register(domain.NodeTypeAIImage, domain.NewBaseExecutor(ai.NewImageExecutor(ai.ImageExecutorDependencies{
		Provider:        imageProvider,
		ArtifactManager: deps.ArtifactManager,
		Timeout:         deps.Config.AITimeout,
	})))

	log.Info().Int("node_types", len(registry.Types())).Msg("Registered node executors")

	return registry
}

// buildAIProviders creates a provider for every configured API key. Image
// generation is only offered through OpenAI.
func buildAIProviders(config AIConfig, transport http.RoundTripper) (map[string]ai.ChatProvider, ai.ImageProvider) {
	providers := map[string]ai.ChatProvider{}

	var imageProvider ai.ImageProvider

	if config.OpenAI.APIKey != "" {
		openAIProvider := ai.NewOpenAIProvider(ai.OpenAIConfig{
			APIKey:     config.OpenAI.APIKey,
			BaseURL:    config.OpenAI.BaseURL,
			HTTPClient: &http.Client{Transport: transport},
		})

		providers[ai.ProviderOpenAI] = openAIProvider
		imageProvider = openAIProvider
	}

	if config.Anthropic.APIKey != "" {
		providers[ai.ProviderAnthropic] = ai.NewAnthropicProvider(ai.AnthropicConfig{
			APIKey:  config.Anthropic.APIKey,
			BaseURL: config.Anthropic.BaseURL,
		})
	}

	if config.Gemini.APIKey != "" {
		providers[ai.ProviderGemini] = ai.NewGeminiProvider(ai.GeminiConfig{
			APIKey: config.Gemini.APIKey,
		})
	}

	for name := range providers {
		log.Debug().Str("provider", name).Msg("AI provider configured")
	}

	return providers, imageProvider
}
