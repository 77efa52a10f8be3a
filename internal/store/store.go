package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inventory-tracker/internal/models"
	"inventory-tracker/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNotFound is returned when a keyed row does not exist
var ErrNotFound = errors.New("not found")

const productColumns = `id, name, sku, category_id, notes,
	inventory_1f, inventory_2f, inventory_warehouse,
	inventory_1f_updated_at, inventory_1f_updated_by,
	inventory_2f_updated_at, inventory_2f_updated_by,
	inventory_war_updated_at, inventory_war_updated_by,
	last_modified_by, updated_at`

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, used by the readiness check
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListProducts returns all products, most recently updated first
func (s *Store) ListProducts(ctx context.Context) (products []models.Product, err error) {
	ctx, span := util.StartSpan(ctx, "Store.ListProducts")
	defer func() { util.EndSpan(span, err) }()

	products = []models.Product{}
	err = s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products ORDER BY updated_at DESC")
	return products, err
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id string) (_ *models.Product, err error) {
	ctx, span := util.StartSpan(ctx, "Store.GetProduct", attribute.String("product_id", id))
	defer func() { util.EndSpan(span, err) }()

	var product models.Product
	err = s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// InsertProduct creates a product and reloads it, so p ends up holding the
// stored row including the columns the database defaults.
func (s *Store) InsertProduct(ctx context.Context, p *models.Product) (err error) {
	ctx, span := util.StartSpan(ctx, "Store.InsertProduct")
	defer func() { util.EndSpan(span, err) }()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO products (id, name, sku, category_id, notes,
			inventory_1f, inventory_2f, inventory_warehouse, last_modified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if _, err = s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.SKU, p.CategoryID, p.Notes,
		p.Inventory1F, p.Inventory2F, p.InventoryWarehouse, p.LastModifiedBy); err != nil {
		return err
	}

	created, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to reload product: %w", err)
	}
	*p = *created
	return nil
}

// UpdateQuantity sets one stock count and its companion audit columns
func (s *Store) UpdateQuantity(ctx context.Context, productID string, field models.QuantityField, value int, at time.Time, actor string) (err error) {
	ctx, span := util.StartSpan(ctx, "Store.UpdateQuantity",
		attribute.String("product_id", productID),
		attribute.String("field", string(field)))
	defer func() { util.EndSpan(span, err) }()

	if _, err = models.ParseQuantityField(string(field)); err != nil {
		return err
	}

	// column names come from the QuantityField whitelist above
	query := fmt.Sprintf(
		"UPDATE products SET %s = $1, %s = $2, %s = $3, last_modified_by = $3, updated_at = NOW() WHERE id = $4",
		field, field.UpdatedAtColumn(), field.UpdatedByColumn())

	res, err := s.db.ExecContext(ctx, query, value, at, actor, productID)
	if err != nil {
		return err
	}
	return expectRow(res, "product", productID)
}

// UpdateProduct overwrites the descriptive fields of a product
func (s *Store) UpdateProduct(ctx context.Context, id string, f models.ProductFields, actor string) (err error) {
	ctx, span := util.StartSpan(ctx, "Store.UpdateProduct", attribute.String("product_id", id))
	defer func() { util.EndSpan(span, err) }()

	res, err := s.db.ExecContext(ctx,
		`UPDATE products
		SET name = $1, sku = $2, category_id = $3, notes = $4, last_modified_by = $5, updated_at = NOW()
		WHERE id = $6`,
		f.Name, f.SKU, f.CategoryID, f.Notes, actor, id)
	if err != nil {
		return err
	}
	return expectRow(res, "product", id)
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
