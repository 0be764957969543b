package managers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

type recordingPublisher struct {
	events []domain.Event
	err    error
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, event domain.Event) error {
	p.events = append(p.events, event)
	return p.err
}

func TestPublisherEventSink_StampsEventOrder(t *testing.T) {
	publisher := &recordingPublisher{}
	sink := NewPublisherEventSink(publisher)

	ctx := domain.NewContextWithEventOrder(context.Background())

	sink.RunStart(ctx, "run-1", "flow-1")
	sink.NodeStart(ctx, "run-1", "a")
	sink.NodeComplete(ctx, "run-1", "a", map[string]any{"ok": true})
	sink.NodeError(ctx, "run-1", "b", "boom")
	sink.RunError(ctx, "run-1", "boom")

	require.Len(t, publisher.events, 5)

	expectedTypes := []domain.EventType{
		domain.RunStarted,
		domain.NodeStarted,
		domain.NodeCompleted,
		domain.NodeFailed,
		domain.RunFailed,
	}

	for i, event := range publisher.events {
		ordered, ok := event.(domain.OrderedEvent)
		require.True(t, ok)
		assert.Equal(t, i+1, ordered.GetEventOrder())
		assert.Equal(t, expectedTypes[i], event.GetType())
		assert.Equal(t, "run-1", event.GetRunID())
	}

	failed := publisher.events[3].(*domain.NodeFailedEvent)
	assert.Equal(t, "boom", failed.Error)
}

func TestPublisherEventSink_SwallowsPublishErrors(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	sink := NewPublisherEventSink(publisher)

	assert.NotPanics(t, func() {
		sink.RunComplete(context.Background(), "run-1", "done")
	})

	require.Len(t, publisher.events, 1)
	assert.Equal(t, 0, publisher.events[0].(domain.OrderedEvent).GetEventOrder())
}

type countingSink struct {
	LogEventSink
	starts int
}

func (c *countingSink) RunStart(ctx context.Context, runID, flowID string) {
	c.starts++
}

func TestMultiEventSink_FansOut(t *testing.T) {
	first := &countingSink{}
	second := &countingSink{}

	sink := NewMultiEventSink(first, nil, second)
	require.Len(t, sink, 2)

	sink.RunStart(context.Background(), "run-1", "flow-1")

	assert.Equal(t, 1, first.starts)
	assert.Equal(t, 1, second.starts)
}

func TestRedisEventPublisher_PublishEvent(t *testing.T) {
	_, client := newMiniredisClient(t)
	publisher := NewRedisEventPublisher(RedisEventPublisherDependencies{Client: client})

	ctx := context.Background()

	subscription := client.Subscribe(ctx, publisher.RunChannel("run-1"))
	defer subscription.Close()

	_, err := subscription.Receive(ctx)
	require.NoError(t, err)

	err = publisher.PublishEvent(ctx, &domain.NodeCompletedEvent{RunID: "run-1", NodeID: "a", Output: "ok", EventOrder: 3})
	require.NoError(t, err)

	select {
	case msg := <-subscription.Channel():
		var envelope struct {
			Type  string         `json:"type"`
			RunID string         `json:"run_id"`
			Data  map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &envelope))

		assert.Equal(t, string(domain.NodeCompleted), envelope.Type)
		assert.Equal(t, "run-1", envelope.RunID)
		assert.Equal(t, "a", envelope.Data["node_id"])
		assert.EqualValues(t, 3, envelope.Data["event_order"])
	case <-time.After(2 * time.Second):
		t.Fatal("expected a message on the run channel")
	}
}

type fakeNATSConn struct {
	msgs []*nats.Msg
}

func (f *fakeNATSConn) PublishMsg(msg *nats.Msg) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func TestNATSEventPublisher_PublishEvent(t *testing.T) {
	conn := &fakeNATSConn{}
	publisher := NewNATSEventPublisher(NATSEventPublisherDependencies{Conn: conn})

	err := publisher.PublishEvent(context.Background(), &domain.RunCompletedEvent{RunID: "run-9", Result: 10})
	require.NoError(t, err)

	require.Len(t, conn.msgs, 1)
	msg := conn.msgs[0]

	assert.Equal(t, "flowengine.events.run-9.run_completed", msg.Subject)
	assert.Equal(t, "run_completed", msg.Header.Get(EventTypeHeader))
	assert.Equal(t, "run-9", msg.Header.Get(RunIDHeader))
	assert.Contains(t, string(msg.Data), `"result":10`)
}
