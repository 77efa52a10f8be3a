package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inventory-tracker/internal/models"
	"inventory-tracker/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ListCategories returns all categories ordered by name
func (s *Store) ListCategories(ctx context.Context) (categories []models.Category, err error) {
	ctx, span := util.StartSpan(ctx, "Store.ListCategories")
	defer func() { util.EndSpan(span, err) }()

	categories = []models.Category{}
	err = s.db.SelectContext(ctx, &categories, "SELECT id, name FROM categories ORDER BY name")
	return categories, err
}

// InsertCategory creates a category, filling in its ID
func (s *Store) InsertCategory(ctx context.Context, c *models.Category) (err error) {
	ctx, span := util.StartSpan(ctx, "Store.InsertCategory")
	defer func() { util.EndSpan(span, err) }()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err = s.db.ExecContext(ctx, "INSERT INTO categories (id, name) VALUES ($1, $2)", c.ID, c.Name)
	return err
}

// UpdateCategory renames a category
func (s *Store) UpdateCategory(ctx context.Context, id, name string) (err error) {
	ctx, span := util.StartSpan(ctx, "Store.UpdateCategory", attribute.String("category_id", id))
	defer func() { util.EndSpan(span, err) }()

	res, err := s.db.ExecContext(ctx, "UPDATE categories SET name = $1 WHERE id = $2", name, id)
	if err != nil {
		return err
	}
	return expectRow(res, "category", id)
}

// GetSetting returns the setting for key, or nil when it has never been saved
func (s *Store) GetSetting(ctx context.Context, key string) (setting *models.Setting, err error) {
	ctx, span := util.StartSpan(ctx, "Store.GetSetting", attribute.String("key", key))
	defer func() { util.EndSpan(span, err) }()

	var st models.Setting
	err = s.db.GetContext(ctx, &st,
		"SELECT key, value, updated_at, updated_by FROM settings WHERE key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// UpsertSetting replaces a setting wholesale
func (s *Store) UpsertSetting(ctx context.Context, st *models.Setting) (err error) {
	ctx, span := util.StartSpan(ctx, "Store.UpsertSetting", attribute.String("key", st.Key))
	defer func() { util.EndSpan(span, err) }()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by`,
		st.Key, st.Value, st.UpdatedAt, st.UpdatedBy)
	return err
}

// UpsertUserByEmail returns the user for email, creating it on first sign-in
func (s *Store) UpsertUserByEmail(ctx context.Context, email string) (user *models.User, err error) {
	ctx, span := util.StartSpan(ctx, "Store.UpsertUserByEmail")
	defer func() { util.EndSpan(span, err) }()

	var u models.User
	err = s.db.GetContext(ctx, &u,
		`INSERT INTO users (id, email, nickname)
		VALUES ($1, $2, '')
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, nickname, created_at`,
		uuid.New().String(), email)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u,
		"SELECT id, email, nickname, created_at FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateNickname stores the user's display nickname
func (s *Store) UpdateNickname(ctx context.Context, id, nickname string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u,
		`UPDATE users SET nickname = $1 WHERE id = $2
		RETURNING id, email, nickname, created_at`,
		nickname, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
