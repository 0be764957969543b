package channels

import (
	"context"
	"fmt"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

// Sender delivers a message to one provider-side target and returns the
// provider's message id.
type Sender interface {
	Send(ctx context.Context, target string, message domain.ChannelMessage) (string, error)
}

// Router implements domain.ChannelDelivery by dispatching on channel type.
// Provider failures are reported in the DeliveryResult, not as errors.
type Router struct {
	senders map[domain.ChannelType]Sender
}

func NewRouter() *Router {
	return &Router{
		senders: make(map[domain.ChannelType]Sender),
	}
}

func (r *Router) Register(channelType domain.ChannelType, sender Sender) {
	r.senders[channelType] = sender
}

func (r *Router) Send(ctx context.Context, channel domain.ChannelRef, message domain.ChannelMessage) (domain.DeliveryResult, error) {
	result := domain.DeliveryResult{
		ChannelID: channel.ID,
		Type:      channel.Type,
	}

	sender, ok := r.senders[channel.Type]
	if !ok {
		result.Error = fmt.Sprintf("no sender configured for channel type %q", channel.Type)
		return result, nil
	}

	target := channel.Target
	if message.To != "" && channel.Type == domain.ChannelTypeEmail {
		target = message.To
	}

	if target == "" {
		result.Error = "channel has no target"
		return result, nil
	}

	messageID, err := sender.Send(ctx, target, message)
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	result.Success = true
	result.MessageID = messageID

	return result, nil
}
