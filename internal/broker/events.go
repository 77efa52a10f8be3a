package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"inventory-tracker/internal/models"
	"inventory-tracker/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher writes keyed events
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher publishes change events
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishChange publishes a change event keyed by the changed entity
func (ep *EventPublisher) PublishChange(ctx context.Context, event *models.ChangeEvent) error {
	ctx, span := util.StartSpan(ctx, "EventPublisher.PublishChange")
	err := ep.producer.PublishEvent(ctx, changeKey(event), event)
	util.EndSpan(span, err)
	return err
}

func changeKey(event *models.ChangeEvent) string {
	if event.EntityID == "" {
		return event.Entity
	}
	return fmt.Sprintf("%s-%s", event.Entity, event.EntityID)
}

// EventHandler routes incoming events
type EventHandler struct {
	onChange func(context.Context, *models.ChangeEvent) error
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnChange registers the handler for every change event type
func (eh *EventHandler) OnChange(handler func(context.Context, *models.ChangeEvent) error) {
	eh.onChange = handler
}

// HandleMessage routes messages to the registered handler
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeInventoryUpdated,
		models.EventTypeProductCreated,
		models.EventTypeProductUpdated,
		models.EventTypeCategoryCreated,
		models.EventTypeCategoryUpdated,
		models.EventTypeDescriptionUpdated:
		if eh.onChange != nil {
			var event models.ChangeEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onChange(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
