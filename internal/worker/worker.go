package worker

import (
	"context"
	"fmt"
	"time"

	"inventory-tracker/internal/broker"
	"inventory-tracker/internal/models"
	"inventory-tracker/internal/util"

	"go.uber.org/zap"
)

// Deduper records processed event ids
type Deduper interface {
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// Applier brings open workspaces up to date with a change
type Applier interface {
	ApplyChange(ctx context.Context, event *models.ChangeEvent) error
}

// SyncWorker consumes change events made by other sessions and refreshes
// the affected workspaces of this instance
type SyncWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	dedupe       Deduper
	applier      Applier
	scope        string
	ttl          time.Duration
	logger       *zap.Logger
}

// NewSyncWorker creates a sync worker. scope namespaces the dedupe keys so
// that instances sharing a Redis do not swallow each other's deliveries.
func NewSyncWorker(
	consumer *broker.Consumer,
	dedupe Deduper,
	applier Applier,
	scope string,
	ttl time.Duration,
) *SyncWorker {
	w := &SyncWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		dedupe:       dedupe,
		applier:      applier,
		scope:        scope,
		ttl:          ttl,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnChange(w.HandleChange)
	return w
}

// Start starts the worker
func (w *SyncWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting sync worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SyncWorker) Stop() error {
	w.logger.Info("Stopping sync worker")
	return w.consumer.Close()
}

// HandleChange applies a change event once per instance
func (w *SyncWorker) HandleChange(ctx context.Context, event *models.ChangeEvent) error {
	if event.EventID != "" {
		first, err := w.dedupe.MarkEventProcessed(ctx, fmt.Sprintf("%s:%s", w.scope, event.EventID), w.ttl)
		if err != nil {
			util.ChangeEventsTotal.WithLabelValues("in", "error").Inc()
			return fmt.Errorf("failed to check event %s: %w", event.EventID, err)
		}
		if !first {
			util.ChangeEventsTotal.WithLabelValues("in", "duplicate").Inc()
			w.logger.Debug("Skipping duplicate change event", zap.String("event_id", event.EventID))
			return nil
		}
	}

	if err := w.applier.ApplyChange(ctx, event); err != nil {
		util.ChangeEventsTotal.WithLabelValues("in", "error").Inc()
		return fmt.Errorf("failed to apply %s: %w", event.EventType, err)
	}

	util.ChangeEventsTotal.WithLabelValues("in", "ok").Inc()
	w.logger.Info("Applied change event",
		zap.String("event_type", event.EventType),
		zap.String("entity_id", event.EntityID),
		zap.String("actor", event.Actor))
	return nil
}
