package models

import "time"

// DescriptionKey is the settings key holding the inventory description
const DescriptionKey = "inventory_description"

// UnknownActor is stamped when a session has neither nickname nor email
const UnknownActor = "Unknown"

// Product represents a product with stock counts at three locations
type Product struct {
	ID         string  `db:"id" json:"id"`
	Name       string  `db:"name" json:"name"`
	SKU        string  `db:"sku" json:"sku"`
	CategoryID *string `db:"category_id" json:"category_id"`
	Notes      *string `db:"notes" json:"notes"`

	Inventory1F        int `db:"inventory_1f" json:"inventory_1f"`
	Inventory2F        int `db:"inventory_2f" json:"inventory_2f"`
	InventoryWarehouse int `db:"inventory_warehouse" json:"inventory_warehouse"`

	Inventory1FUpdatedAt  *time.Time `db:"inventory_1f_updated_at" json:"inventory_1f_updated_at"`
	Inventory1FUpdatedBy  *string    `db:"inventory_1f_updated_by" json:"inventory_1f_updated_by"`
	Inventory2FUpdatedAt  *time.Time `db:"inventory_2f_updated_at" json:"inventory_2f_updated_at"`
	Inventory2FUpdatedBy  *string    `db:"inventory_2f_updated_by" json:"inventory_2f_updated_by"`
	InventoryWarUpdatedAt *time.Time `db:"inventory_war_updated_at" json:"inventory_war_updated_at"`
	InventoryWarUpdatedBy *string    `db:"inventory_war_updated_by" json:"inventory_war_updated_by"`

	LastModifiedBy *string   `db:"last_modified_by" json:"last_modified_by"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ProductFields are the user-editable descriptive fields of a product
type ProductFields struct {
	Name       string
	SKU        string
	CategoryID *string
	Notes      *string
}

// Apply overwrites the descriptive fields and stamps the actor
func (p *Product) Apply(f ProductFields, actor string) {
	p.Name = f.Name
	p.SKU = f.SKU
	p.CategoryID = f.CategoryID
	p.Notes = f.Notes
	p.LastModifiedBy = &actor
}

// Category groups products
type Category struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Setting is a keyed free-text record
type Setting struct {
	Key       string     `db:"key" json:"key"`
	Value     string     `db:"value" json:"value"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at"`
	UpdatedBy *string    `db:"updated_by" json:"updated_by"`
}

// User is an authenticated account
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Nickname  string    `db:"nickname" json:"nickname"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Session is a signed-in user session. ID is stable across token refreshes.
type Session struct {
	ID          string    `json:"id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// ResolveActor returns the display identifier stamped onto audit columns
func ResolveActor(s *Session) string {
	if s == nil {
		return UnknownActor
	}
	if s.User.Nickname != "" {
		return s.User.Nickname
	}
	if s.User.Email != "" {
		return s.User.Email
	}
	return UnknownActor
}

// Auth lifecycle events
type AuthEvent string

const (
	AuthSignedIn       AuthEvent = "SIGNED_IN"
	AuthSignedOut      AuthEvent = "SIGNED_OUT"
	AuthTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	AuthUserUpdated    AuthEvent = "USER_UPDATED"
)
