package managers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

// PublisherEventSink turns sink calls into domain events and hands them to a
// publisher. Events are stamped with the run's event order when the context
// carries one.
type PublisherEventSink struct {
	publisher domain.EventPublisher
	now       func() time.Time
}

func NewPublisherEventSink(publisher domain.EventPublisher) *PublisherEventSink {
	return &PublisherEventSink{
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *PublisherEventSink) RunStart(ctx context.Context, runID, flowID string) {
	s.publish(ctx, &domain.RunStartedEvent{
		RunID:     runID,
		FlowID:    flowID,
		Timestamp: s.now().UnixMilli(),
	})
}

func (s *PublisherEventSink) NodeStart(ctx context.Context, runID, nodeID string) {
	s.publish(ctx, &domain.NodeStartedEvent{
		RunID:     runID,
		NodeID:    nodeID,
		Timestamp: s.now().UnixMilli(),
	})
}

func (s *PublisherEventSink) NodeComplete(ctx context.Context, runID, nodeID string, output any) {
	s.publish(ctx, &domain.NodeCompletedEvent{
		RunID:     runID,
		NodeID:    nodeID,
		Output:    output,
		Timestamp: s.now().UnixMilli(),
	})
}

func (s *PublisherEventSink) NodeError(ctx context.Context, runID, nodeID string, errorMessage string) {
	s.publish(ctx, &domain.NodeFailedEvent{
		RunID:     runID,
		NodeID:    nodeID,
		Error:     errorMessage,
		Timestamp: s.now().UnixMilli(),
	})
}

func (s *PublisherEventSink) RunComplete(ctx context.Context, runID string, result any) {
	s.publish(ctx, &domain.RunCompletedEvent{
		RunID:     runID,
		Result:    result,
		Timestamp: s.now().UnixMilli(),
	})
}

func (s *PublisherEventSink) RunError(ctx context.Context, runID string, errorMessage string) {
	s.publish(ctx, &domain.RunFailedEvent{
		RunID:     runID,
		Error:     errorMessage,
		Timestamp: s.now().UnixMilli(),
	})
}

func (s *PublisherEventSink) publish(ctx context.Context, event domain.OrderedEvent) {
	if order, ok := domain.GetEventOrderContext(ctx); ok {
		event.SetEventOrder(order.GetNextOrder())
	}

	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("run_id", event.GetRunID()).
			Str("event_type", string(event.GetType())).
			Msg("Failed to publish execution event")
	}
}

// LogEventSink writes run progress to the structured log.
type LogEventSink struct{}

func NewLogEventSink() LogEventSink {
	return LogEventSink{}
}

func (LogEventSink) RunStart(ctx context.Context, runID, flowID string) {
	log.Info().Str("run_id", runID).Str("flow_id", flowID).Msg("Run started")
}

func (LogEventSink) NodeStart(ctx context.Context, runID, nodeID string) {
	log.Debug().Str("run_id", runID).Str("node_id", nodeID).Msg("Node started")
}

func (LogEventSink) NodeComplete(ctx context.Context, runID, nodeID string, output any) {
	log.Debug().Str("run_id", runID).Str("node_id", nodeID).Msg("Node completed")
}

func (LogEventSink) NodeError(ctx context.Context, runID, nodeID string, errorMessage string) {
	log.Warn().Str("run_id", runID).Str("node_id", nodeID).Str("error", errorMessage).Msg("Node failed")
}

func (LogEventSink) RunComplete(ctx context.Context, runID string, result any) {
	log.Info().Str("run_id", runID).Msg("Run completed")
}

func (LogEventSink) RunError(ctx context.Context, runID string, errorMessage string) {
	log.Warn().Str("run_id", runID).Str("error", errorMessage).Msg("Run failed")
}

// MultiEventSink forwards every call to each sink in order.
type MultiEventSink []domain.EventSink

func NewMultiEventSink(sinks ...domain.EventSink) MultiEventSink {
	filtered := make(MultiEventSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}

	return filtered
}

func (m MultiEventSink) RunStart(ctx context.Context, runID, flowID string) {
	for _, sink := range m {
		sink.RunStart(ctx, runID, flowID)
	}
}

func (m MultiEventSink) NodeStart(ctx context.Context, runID, nodeID string) {
	for _, sink := range m {
		sink.NodeStart(ctx, runID, nodeID)
	}
}

func (m MultiEventSink) NodeComplete(ctx context.Context, runID, nodeID string, output any) {
	for _, sink := range m {
		sink.NodeComplete(ctx, runID, nodeID, output)
	}
}

func (m MultiEventSink) NodeError(ctx context.Context, runID, nodeID string, errorMessage string) {
	for _, sink := range m {
		sink.NodeError(ctx, runID, nodeID, errorMessage)
	}
}

func (m MultiEventSink) RunComplete(ctx context.Context, runID string, result any) {
	for _, sink := range m {
		sink.RunComplete(ctx, runID, result)
	}
}

func (m MultiEventSink) RunError(ctx context.Context, runID string, errorMessage string) {
	for _, sink := range m {
		sink.RunError(ctx, runID, errorMessage)
	}
}
