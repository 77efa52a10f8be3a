package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"inventory-tracker/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	args := m.Called(ctx, key, event)
	return args.Error(0)
}

func TestPublishChange_KeysByEntity(t *testing.T) {
	producer := new(MockProducer)
	event := &models.ChangeEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeInventoryUpdated},
		Entity:    models.EntityProduct,
		EntityID:  "p1",
	}
	producer.On("PublishEvent", mock.Anything, "product-p1", event).Return(nil)

	require.NoError(t, NewEventPublisher(producer).PublishChange(context.Background(), event))
	producer.AssertExpectations(t)
}

func TestPublishChange_Description(t *testing.T) {
	producer := new(MockProducer)
	event := &models.ChangeEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeDescriptionUpdated},
		Entity:    models.EntityDescription,
	}
	producer.On("PublishEvent", mock.Anything, "description", event).Return(errors.New("no brokers"))

	err := NewEventPublisher(producer).PublishChange(context.Background(), event)
	assert.EqualError(t, err, "no brokers")
}

func message(t *testing.T, event interface{}) kafka.Message {
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestHandleMessage_RoutesChangeEvents(t *testing.T) {
	var got *models.ChangeEvent
	h := NewEventHandler()
	h.OnChange(func(ctx context.Context, e *models.ChangeEvent) error {
		got = e
		return nil
	})

	msg := message(t, &models.ChangeEvent{
		BaseEvent:     models.BaseEvent{EventID: "e1", EventType: models.EventTypeCategoryUpdated},
		Entity:        models.EntityCategory,
		EntityID:      "c1",
		Actor:         "Ming",
		OriginSession: "s1",
	})
	require.NoError(t, h.HandleMessage(context.Background(), msg))

	require.NotNil(t, got)
	assert.Equal(t, "e1", got.EventID)
	assert.Equal(t, models.EntityCategory, got.Entity)
	assert.Equal(t, "s1", got.OriginSession)
}

func TestHandleMessage_IgnoresUnknownTypes(t *testing.T) {
	called := false
	h := NewEventHandler()
	h.OnChange(func(ctx context.Context, e *models.ChangeEvent) error {
		called = true
		return nil
	})

	msg := message(t, models.BaseEvent{EventID: "e1", EventType: "ORDER_CREATED"})
	require.NoError(t, h.HandleMessage(context.Background(), msg))
	assert.False(t, called)
}

func TestHandleMessage_BadPayload(t *testing.T) {
	err := NewEventHandler().HandleMessage(context.Background(), kafka.Message{Value: []byte("{")})
	assert.ErrorContains(t, err, "failed to unmarshal base event")
}
