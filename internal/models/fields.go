package models

import (
	"fmt"
	"time"
)

// QuantityField names one of the per-location stock columns
type QuantityField string

const (
	Inventory1F        QuantityField = "inventory_1f"
	Inventory2F        QuantityField = "inventory_2f"
	InventoryWarehouse QuantityField = "inventory_warehouse"
)

// QuantityFields lists the stock columns in display order
var QuantityFields = []QuantityField{Inventory1F, Inventory2F, InventoryWarehouse}

// ParseQuantityField validates a column name coming from a client
func ParseQuantityField(s string) (QuantityField, error) {
	for _, f := range QuantityFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown quantity field %q", s)
}

// CompanionPrefix returns the column prefix of the field's audit columns.
// The warehouse column stores its audit pair under "inventory_war".
func (f QuantityField) CompanionPrefix() string {
	if f == InventoryWarehouse {
		return "inventory_war"
	}
	return string(f)
}

// UpdatedAtColumn is the companion timestamp column
func (f QuantityField) UpdatedAtColumn() string {
	return f.CompanionPrefix() + "_updated_at"
}

// UpdatedByColumn is the companion actor column
func (f QuantityField) UpdatedByColumn() string {
	return f.CompanionPrefix() + "_updated_by"
}

// Quantity returns the stock count for a field
func (p *Product) Quantity(f QuantityField) int {
	switch f {
	case Inventory1F:
		return p.Inventory1F
	case Inventory2F:
		return p.Inventory2F
	case InventoryWarehouse:
		return p.InventoryWarehouse
	}
	return 0
}

// Companions returns the audit pair for a field, or nils for an unknown field
func (p *Product) Companions(f QuantityField) (*time.Time, *string) {
	at, by := p.companionRefs(f)
	if at == nil {
		return nil, nil
	}
	return *at, *by
}

func (p *Product) companionRefs(f QuantityField) (**time.Time, **string) {
	switch f.CompanionPrefix() {
	case "inventory_1f":
		return &p.Inventory1FUpdatedAt, &p.Inventory1FUpdatedBy
	case "inventory_2f":
		return &p.Inventory2FUpdatedAt, &p.Inventory2FUpdatedBy
	case "inventory_war":
		return &p.InventoryWarUpdatedAt, &p.InventoryWarUpdatedBy
	}
	return nil, nil
}

// SetQuantity writes a stock count together with its companion columns and
// last_modified_by. No other field is touched.
func (p *Product) SetQuantity(f QuantityField, value int, at time.Time, actor string) bool {
	atRef, byRef := p.companionRefs(f)
	if atRef == nil {
		return false
	}

	switch f {
	case Inventory1F:
		p.Inventory1F = value
	case Inventory2F:
		p.Inventory2F = value
	case InventoryWarehouse:
		p.InventoryWarehouse = value
	}

	stamp := at
	by := actor
	modifiedBy := actor
	*atRef = &stamp
	*byRef = &by
	p.LastModifiedBy = &modifiedBy
	return true
}
