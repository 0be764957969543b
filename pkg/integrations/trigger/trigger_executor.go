package trigger

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

// PassthroughExecutor starts a flow: its output is its input.
type PassthroughExecutor struct{}

func NewPassthroughExecutor() *PassthroughExecutor {
	return &PassthroughExecutor{}
}

func (e *PassthroughExecutor) Run(ctx context.Context, input domain.RunInput) (any, error) {
	return input.Input, nil
}

// WebhookExecutor passes input through unless the node has a url, in which
// case the call is delegated to the outbound runner.
type WebhookExecutor struct {
	outbound domain.NodeRunner
}

type WebhookExecutorDependencies struct {
	Outbound domain.NodeRunner
}

func NewWebhookExecutor(deps WebhookExecutorDependencies) *WebhookExecutor {
	return &WebhookExecutor{
		outbound: deps.Outbound,
	}
}

func (e *WebhookExecutor) Run(ctx context.Context, input domain.RunInput) (any, error) {
	url, _ := input.Data["url"].(string)
	if strings.TrimSpace(url) == "" || e.outbound == nil {
		return input.Input, nil
	}

	log.Debug().Str("node_id", input.NodeID).Msg("Webhook node has a url, calling out")

	return e.outbound.Run(ctx, input)
}
