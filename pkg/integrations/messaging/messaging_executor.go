package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/expressions"
)

type MessagingParams struct {
	ChannelIDs   []string `json:"channelIds"`
	ChannelTypes []string `json:"channelTypes"`
	Message      string   `json:"message"`
	Content      string   `json:"content"`
	Subject      string   `json:"subject"`
	To           string   `json:"to"`
}

func (p MessagingParams) message() domain.ChannelMessage {
	content := p.Message
	if content == "" {
		content = p.Content
	}

	return domain.ChannelMessage{
		To:      p.To,
		Subject: p.Subject,
		Content: content,
	}
}

// MessagingExecutor fans a message out to every resolved channel. Each target
// is attempted independently; the node fails only when nothing was delivered.
type MessagingExecutor struct {
	directory domain.ChannelDirectory
	delivery  domain.ChannelDelivery
}

type MessagingExecutorDependencies struct {
	Directory domain.ChannelDirectory
	Delivery  domain.ChannelDelivery
}

func NewMessagingExecutor(deps MessagingExecutorDependencies) *MessagingExecutor {
	return &MessagingExecutor{
		directory: deps.Directory,
		delivery:  deps.Delivery,
	}
}

func (e *MessagingExecutor) Run(ctx context.Context, input domain.RunInput) (any, error) {
	var params MessagingParams
	if err := domain.DecodeParams(input.Data, &params); err != nil {
		return nil, err
	}

	message := params.message()
	if message.Content == "" && input.Input != nil {
		message.Content = expressions.ToString(input.Input)
	}

	if strings.TrimSpace(message.Content) == "" {
		return nil, fmt.Errorf("message is required")
	}

	if len(params.ChannelIDs) == 0 && len(params.ChannelTypes) == 0 {
		return nil, fmt.Errorf("channelIds or channelTypes is required")
	}

	if e.directory == nil || e.delivery == nil {
		return nil, fmt.Errorf("messaging channels are not configured")
	}

	types := make([]domain.ChannelType, 0, len(params.ChannelTypes))
	for _, channelType := range params.ChannelTypes {
		types = append(types, domain.ChannelType(strings.ToLower(strings.TrimSpace(channelType))))
	}

	targets, err := e.directory.ResolveChannels(ctx, params.ChannelIDs, types)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channels: %w", err)
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("no channels matched the requested ids or types")
	}

	results := make([]any, 0, len(targets))
	successful := 0
	var failures []string

	for _, target := range targets {
		result, err := e.delivery.Send(ctx, target, message)
		if err != nil {
			result = domain.DeliveryResult{
				ChannelID: target.ID,
				Type:      target.Type,
				Success:   false,
				Error:     err.Error(),
			}
		}

		if result.Success {
			successful++
		} else {
			failures = append(failures, fmt.Sprintf("%s: %s", target.ID, result.Error))
			log.Warn().
				Str("node_id", input.NodeID).
				Str("channel_id", target.ID).
				Str("channel_type", string(target.Type)).
				Str("error", result.Error).
				Msg("Message delivery failed")
		}

		results = append(results, resultToMap(result))
	}

	if successful == 0 {
		return nil, fmt.Errorf("all %d deliveries failed: %s", len(targets), strings.Join(failures, "; "))
	}

	return map[string]any{
		"results":         results,
		"successfulPosts": successful,
		"failedPosts":     len(targets) - successful,
		"totalTargets":    len(targets),
	}, nil
}

func resultToMap(result domain.DeliveryResult) map[string]any {
	out := map[string]any{
		"channelId": result.ChannelID,
		"type":      string(result.Type),
		"success":   result.Success,
	}

	if result.MessageID != "" {
		out["messageId"] = result.MessageID
	}
	if result.Error != "" {
		out["error"] = result.Error
	}

	return out
}
