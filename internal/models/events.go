package models

import "time"

// Event types
const (
	EventTypeInventoryUpdated   = "INVENTORY_UPDATED"
	EventTypeProductCreated     = "PRODUCT_CREATED"
	EventTypeProductUpdated     = "PRODUCT_UPDATED"
	EventTypeCategoryCreated    = "CATEGORY_CREATED"
	EventTypeCategoryUpdated    = "CATEGORY_UPDATED"
	EventTypeDescriptionUpdated = "DESCRIPTION_UPDATED"
)

// Entity kinds carried by change events
const (
	EntityProduct     = "product"
	EntityCategory    = "category"
	EntityDescription = "description"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ChangeEvent is published after a write was confirmed by the store
type ChangeEvent struct {
	BaseEvent
	Entity        string `json:"entity"`
	EntityID      string `json:"entity_id,omitempty"`
	Field         string `json:"field,omitempty"`
	Actor         string `json:"actor"`
	OriginSession string `json:"origin_session,omitempty"`
}
