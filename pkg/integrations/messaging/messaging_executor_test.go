package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

type staticDirectory struct {
	channels []domain.ChannelRef
	err      error
}

func (d *staticDirectory) ResolveChannels(ctx context.Context, ids []string, types []domain.ChannelType) ([]domain.ChannelRef, error) {
	if d.err != nil {
		return nil, d.err
	}

	var out []domain.ChannelRef
	for _, channel := range d.channels {
		for _, id := range ids {
			if channel.ID == id {
				out = append(out, channel)
			}
		}
		for _, channelType := range types {
			if channel.Type == channelType {
				out = append(out, channel)
			}
		}
	}
	return out, nil
}

type scriptedDelivery struct {
	succeed map[string]bool
	sent    []domain.ChannelMessage
}

func (d *scriptedDelivery) Send(ctx context.Context, channel domain.ChannelRef, message domain.ChannelMessage) (domain.DeliveryResult, error) {
	d.sent = append(d.sent, message)

	if !d.succeed[channel.ID] {
		return domain.DeliveryResult{}, errors.New("provider rejected message")
	}

	return domain.DeliveryResult{
		ChannelID: channel.ID,
		Type:      channel.Type,
		Success:   true,
		MessageID: "m-" + channel.ID,
	}, nil
}

var channels = []domain.ChannelRef{
	{ID: "c1", Type: domain.ChannelTypeSlack},
	{ID: "c2", Type: domain.ChannelTypeDiscord},
	{ID: "c3", Type: domain.ChannelTypeTelegram},
}

func send(t *testing.T, delivery *scriptedDelivery, data map[string]any) domain.ExecutionOutput {
	t.Helper()

	executor := domain.NewBaseExecutor(NewMessagingExecutor(MessagingExecutorDependencies{
		Directory: &staticDirectory{channels: channels},
		Delivery:  delivery,
	}))

	return executor.Execute(context.Background(), domain.ExecutionInput{
		NodeID:   "msg",
		NodeType: domain.NodeTypeMessaging,
		Data:     data,
		Input:    map[string]any{"name": "ada"},
	})
}

func TestMessagingExecutor_PartialSuccess(t *testing.T) {
	delivery := &scriptedDelivery{succeed: map[string]bool{"c2": true}}

	output := send(t, delivery, map[string]any{
		"channelIds": []any{"c1", "c2", "c3"},
		"message":    "hello {{name}}",
	})

	require.True(t, output.Success, output.Error)

	result := output.Output.(map[string]any)
	assert.Equal(t, 1, result["successfulPosts"])
	assert.Equal(t, 2, result["failedPosts"])
	assert.Equal(t, 3, result["totalTargets"])
	assert.Len(t, result["results"], 3)

	require.Len(t, delivery.sent, 3)
	assert.Equal(t, "hello ada", delivery.sent[0].Content)
}

func TestMessagingExecutor_AllFailed(t *testing.T) {
	output := send(t, &scriptedDelivery{}, map[string]any{
		"channelTypes": []any{"slack"},
		"message":      "hi",
	})

	assert.False(t, output.Success)
	assert.Contains(t, output.Error, "all 1 deliveries failed")
}

func TestMessagingExecutor_NoTargets(t *testing.T) {
	output := send(t, &scriptedDelivery{}, map[string]any{
		"channelIds": []any{"missing"},
		"message":    "hi",
	})

	assert.False(t, output.Success)
	assert.Contains(t, output.Error, "no channels matched")
}

func TestMessagingExecutor_RequiresSelector(t *testing.T) {
	output := send(t, &scriptedDelivery{}, map[string]any{"message": "hi"})

	assert.False(t, output.Success)
	assert.Contains(t, output.Error, "channelIds or channelTypes")
}

func TestMessagingExecutor_SelectsByType(t *testing.T) {
	delivery := &scriptedDelivery{succeed: map[string]bool{"c3": true}}

	output := send(t, delivery, map[string]any{
		"channelTypes": "Telegram",
		"content":      "ping",
	})

	require.True(t, output.Success, output.Error)
	assert.Equal(t, 1, output.Output.(map[string]any)["totalTargets"])
}
