package editor

import (
	"errors"
	"fmt"
	"strings"

	"inventory-tracker/internal/models"
)

// Kind tags the active edit
type Kind string

const (
	Idle                Kind = "idle"
	EditingQuantityCell Kind = "editing_quantity_cell"
	EditingProduct      Kind = "editing_product"
	EditingCategory     Kind = "editing_category"
	EditingDescription  Kind = "editing_description"
	CreatingProduct     Kind = "creating_product"
	CreatingCategory    Kind = "creating_category"
)

// Keys understood while editing a quantity cell
const (
	KeyAccept = "Enter"
	KeyCancel = "Escape"
)

var (
	ErrEditInProgress = errors.New("another edit is already active")
	ErrNoActiveEdit   = errors.New("no active edit")
	ErrCommitPending  = errors.New("a save is already in progress")
	ErrNotFound       = errors.New("edit target not found")
	ErrWrongDraft     = errors.New("draft does not match the active edit")
	ErrUnsupportedKey = errors.New("key not supported for the active edit")
	ErrUnknownKind    = errors.New("unknown edit kind")
)

// ValidationError rejects a draft before anything is sent to the store
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Target selects what Start opens
type Target struct {
	Kind       Kind                 `json:"kind" binding:"required"`
	ProductID  string               `json:"product_id,omitempty"`
	Field      models.QuantityField `json:"field,omitempty"`
	CategoryID string               `json:"category_id,omitempty"`
}

// ProductDraft is the form state of a product being created or edited
type ProductDraft struct {
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	CategoryID string `json:"category_id"`
	Notes      string `json:"notes"`
}

func draftFrom(p models.Product) ProductDraft {
	d := ProductDraft{Name: p.Name, SKU: p.SKU}
	if p.CategoryID != nil {
		d.CategoryID = *p.CategoryID
	}
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
	return d
}

// fields validates the draft and converts blanks to nulls
func (d ProductDraft) fields() (models.ProductFields, error) {
	name := strings.TrimSpace(d.Name)
	sku := strings.TrimSpace(d.SKU)
	if name == "" {
		return models.ProductFields{}, &ValidationError{Field: "name", Message: "product name is required"}
	}
	if sku == "" {
		return models.ProductFields{}, &ValidationError{Field: "sku", Message: "SKU is required"}
	}

	f := models.ProductFields{Name: name, SKU: sku}
	if d.CategoryID != "" {
		categoryID := d.CategoryID
		f.CategoryID = &categoryID
	}
	if d.Notes != "" {
		notes := d.Notes
		f.Notes = &notes
	}
	return f, nil
}

// State is a snapshot of the active edit. Text holds the pending quantity
// for cells, the name draft for categories and the description draft.
type State struct {
	Kind       Kind                 `json:"kind"`
	ProductID  string               `json:"product_id,omitempty"`
	Field      models.QuantityField `json:"field,omitempty"`
	CategoryID string               `json:"category_id,omitempty"`
	Text       string               `json:"text"`
	Product    *ProductDraft        `json:"product,omitempty"`
	Pending    bool                 `json:"pending"`
}

func (s State) clone() State {
	if s.Product != nil {
		d := *s.Product
		s.Product = &d
	}
	return s
}

func (s State) acceptsText() bool {
	switch s.Kind {
	case EditingQuantityCell, EditingCategory, EditingDescription, CreatingCategory:
		return true
	}
	return false
}

func (s State) acceptsProductDraft() bool {
	return s.Kind == EditingProduct || s.Kind == CreatingProduct
}
