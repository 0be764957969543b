package domain

import (
	"context"
	"errors"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
)

type ChannelType string

const (
	ChannelTypeSlack    ChannelType = "slack"
	ChannelTypeDiscord  ChannelType = "discord"
	ChannelTypeTelegram ChannelType = "telegram"
	ChannelTypeEmail    ChannelType = "email"
)

// ChannelRef points at a configured delivery destination. Target is the
// provider-side address: a Slack or Discord channel id, a Telegram chat id or
// an email recipient.
type ChannelRef struct {
	ID     string      `json:"id" mapstructure:"id"`
	Type   ChannelType `json:"type" mapstructure:"type"`
	Name   string      `json:"name,omitempty" mapstructure:"name"`
	Target string      `json:"target,omitempty" mapstructure:"target"`
}

type ChannelMessage struct {
	To      string `json:"to,omitempty"`
	Subject string `json:"subject,omitempty"`
	Content string `json:"content"`
}

type DeliveryResult struct {
	ChannelID string      `json:"channelId"`
	Type      ChannelType `json:"type"`
	Success   bool        `json:"success"`
	MessageID string      `json:"messageId,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type ChannelDirectory interface {
	ResolveChannels(ctx context.Context, ids []string, types []ChannelType) ([]ChannelRef, error)
}

type ChannelDelivery interface {
	Send(ctx context.Context, channel ChannelRef, message ChannelMessage) (DeliveryResult, error)
}
