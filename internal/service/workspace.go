package service

import (
	"context"
	"sync"

	"inventory-tracker/internal/cache"
	"inventory-tracker/internal/editor"
	"inventory-tracker/internal/gesture"
	"inventory-tracker/internal/models"
	"inventory-tracker/internal/session"
	"inventory-tracker/internal/view"
)

// Workspace is the state one signed-in client works against: its session,
// its cached copy of the store, its single active edit and its
// pull-to-refresh gesture.
type Workspace struct {
	id      string
	session *session.Manager
	cache   *cache.Cache
	editor  *editor.Controller
	gesture *gesture.Handler
	sorter  *view.Sorter

	mu      sync.RWMutex
	loadErr error
}

// ID is the session id the workspace belongs to
func (w *Workspace) ID() string {
	return w.id
}

func (w *Workspace) Session() *session.Manager {
	return w.session
}

func (w *Workspace) Editor() *editor.Controller {
	return w.editor
}

func (w *Workspace) Gesture() *gesture.Handler {
	return w.gesture
}

// Products returns the filtered, sorted product list
func (w *Workspace) Products(f view.Filter) []view.Row {
	return w.sorter.ProductList(w.cache.Products(), w.cache.Categories(), f)
}

// SettingsProducts returns every cached product in store order with its
// category name resolved
func (w *Workspace) SettingsProducts() []view.Row {
	return view.Rows(w.cache.Products(), w.cache.Categories())
}

// CategoryOptions returns the category filter choices
func (w *Workspace) CategoryOptions() []view.Option {
	return w.sorter.CategoryOptions(w.cache.Categories())
}

func (w *Workspace) Categories() []models.Category {
	return w.cache.Categories()
}

func (w *Workspace) Description() models.Setting {
	return w.cache.Description()
}

// LoadError is the error of the last full load, nil once a load succeeds.
// Views served while it is set may be empty or stale.
func (w *Workspace) LoadError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loadErr
}

func (w *Workspace) setLoadError(err error) error {
	w.mu.Lock()
	w.loadErr = err
	w.mu.Unlock()
	return err
}

// Reload refetches every cached slice
func (w *Workspace) Reload(ctx context.Context) error {
	return w.setLoadError(w.cache.RefreshAll(ctx))
}

// pullRefresh reloads the lists behind the pull-to-refresh gesture
func (w *Workspace) pullRefresh(ctx context.Context) error {
	return w.setLoadError(w.cache.Refresh(ctx))
}

// refreshFor reloads the slice an external change touched
func (w *Workspace) refreshFor(ctx context.Context, entity string) error {
	switch entity {
	case models.EntityProduct:
		return w.cache.RefreshProducts(ctx)
	case models.EntityCategory:
		return w.cache.RefreshCategories(ctx)
	case models.EntityDescription:
		return w.cache.RefreshDescription(ctx)
	}
	return w.cache.RefreshAll(ctx)
}

func (w *Workspace) close() {
	w.session.Close()
	w.editor.Reset()
	w.cache.Clear()
}
