package managers

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const (
	DefaultRedisEventChannel = "flowengine:events"
	DefaultNATSEventSubject  = "flowengine.events"

	EventTypeHeader = "Flowengine-Event-Type"
	RunIDHeader     = "Flowengine-Run-Id"
)

// EventEnvelope is the wire form of a published event.
type EventEnvelope struct {
	Type  domain.EventType `json:"type"`
	RunID string           `json:"run_id"`
	Data  domain.Event     `json:"data"`
}

func encodeEvent(event domain.Event) ([]byte, error) {
	payload, err := json.Marshal(EventEnvelope{
		Type:  event.GetType(),
		RunID: event.GetRunID(),
		Data:  event,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", event.GetType(), err)
	}

	return payload, nil
}

// RedisEventPublisher publishes events on a shared channel and on a per-run
// channel "<channel>:<runID>".
type RedisEventPublisher struct {
	client  redis.UniversalClient
	channel string
}

type RedisEventPublisherDependencies struct {
	Client  redis.UniversalClient
	Channel string
}

func NewRedisEventPublisher(deps RedisEventPublisherDependencies) *RedisEventPublisher {
	channel := deps.Channel
	if channel == "" {
		channel = DefaultRedisEventChannel
	}

	return &RedisEventPublisher{
		client:  deps.Client,
		channel: channel,
	}
}

func (p *RedisEventPublisher) RunChannel(runID string) string {
	return p.channel + ":" + runID
}

func (p *RedisEventPublisher) PublishEvent(ctx context.Context, event domain.Event) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, p.channel, payload)
	pipe.Publish(ctx, p.RunChannel(event.GetRunID()), payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish event to redis: %w", err)
	}

	return nil
}

type natsMessagePublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSEventPublisher publishes each event on "<subject>.<runID>.<eventType>".
type NATSEventPublisher struct {
	conn    natsMessagePublisher
	subject string
}

type NATSEventPublisherDependencies struct {
	Conn    natsMessagePublisher
	Subject string
}

func NewNATSEventPublisher(deps NATSEventPublisherDependencies) *NATSEventPublisher {
	subject := deps.Subject
	if subject == "" {
		subject = DefaultNATSEventSubject
	}

	return &NATSEventPublisher{
		conn:    deps.Conn,
		subject: subject,
	}
}

func (p *NATSEventPublisher) Subject(event domain.Event) string {
	return fmt.Sprintf("%s.%s.%s", p.subject, event.GetRunID(), event.GetType())
}

func (p *NATSEventPublisher) PublishEvent(ctx context.Context, event domain.Event) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(p.Subject(event))
	msg.Data = payload
	msg.Header.Set(EventTypeHeader, string(event.GetType()))
	msg.Header.Set(RunIDHeader, event.GetRunID())

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish event to nats: %w", err)
	}

	return nil
}

type NATSConnectionConfig struct {
	URL           string
	Name          string
	Token         string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

func ConnectNATS(config NATSConnectionConfig) (*nats.Conn, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("nats url cannot be empty")
	}

	name := config.Name
	if name == "" {
		name = "flowengine"
	}

	maxReconnects := config.MaxReconnects
	if maxReconnects == 0 {
		maxReconnects = -1
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	if config.ReconnectWait > 0 {
		opts = append(opts, nats.ReconnectWait(config.ReconnectWait))
	}

	if config.Timeout > 0 {
		opts = append(opts, nats.Timeout(config.Timeout))
	}

	if config.Token != "" {
		opts = append(opts, nats.Token(config.Token))
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return conn, nil
}
