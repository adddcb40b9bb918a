package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/observability"
)

// RegisterEventObservers logs and counts every dispatched domain event in-process.
func RegisterEventObservers(dispatcher *events.InMemoryDispatcher, logger *zap.Logger, metrics *observability.Metrics) {
	if dispatcher == nil {
		return
	}
	dispatcher.SubscribeAll(func(_ context.Context, e events.DomainEvent) error {
		metrics.RecordEvent(e.Name())
		logger.Debug("domain event",
			zap.String("event", e.Name()),
			zap.String("entity_id", e.EntityID),
			zap.String("routing_key", events.RoutingKey(e)))
		return nil
	})
}
