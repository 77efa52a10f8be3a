package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"inventory-tracker/internal/models"
	"inventory-tracker/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source is the read side of the remote store
type Source interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
}

// Cache mirrors products, categories and the description setting of the
// remote store. Writers patch it only after the store confirmed a write.
type Cache struct {
	source             Source
	defaultDescription string
	compareNames       func(a, b string) int
	logger             *zap.Logger

	mu          sync.RWMutex
	products    []models.Product
	categories  []models.Category
	description models.Setting
}

// Option configures a Cache
type Option func(*Cache)

// WithNameOrder sets the ordering used when categories are added locally
func WithNameOrder(compare func(a, b string) int) Option {
	return func(c *Cache) { c.compareNames = compare }
}

// WithLogger overrides the global logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New creates an empty cache
func New(source Source, defaultDescription string, opts ...Option) *Cache {
	c := &Cache{
		source:             source,
		defaultDescription: defaultDescription,
		compareNames:       strings.Compare,
		logger:             util.GetLogger(),
		products:           []models.Product{},
		categories:         []models.Category{},
		description:        models.Setting{Key: models.DescriptionKey, Value: defaultDescription},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) observe(slice string, start time.Time, err error) {
	util.CacheRefreshLatency.WithLabelValues(slice).Observe(time.Since(start).Seconds())
	if err != nil {
		util.CacheRefreshTotal.WithLabelValues(slice, "error").Inc()
		c.logger.Error("Cache refresh failed, keeping previous data",
			zap.String("slice", slice),
			zap.Error(err))
		return
	}
	util.CacheRefreshTotal.WithLabelValues(slice, "ok").Inc()
}

// RefreshProducts replaces the product slice with the remote list
func (c *Cache) RefreshProducts(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "Cache.RefreshProducts")
	start := time.Now()

	products, err := c.source.ListProducts(ctx)
	c.observe("products", start, err)
	util.EndSpan(span, err)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	if products == nil {
		products = []models.Product{}
	}

	c.mu.Lock()
	c.products = products
	c.mu.Unlock()
	return nil
}

// RefreshCategories replaces the category slice with the remote list
func (c *Cache) RefreshCategories(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "Cache.RefreshCategories")
	start := time.Now()

	categories, err := c.source.ListCategories(ctx)
	c.observe("categories", start, err)
	util.EndSpan(span, err)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	if categories == nil {
		categories = []models.Category{}
	}

	c.mu.Lock()
	c.categories = categories
	c.mu.Unlock()
	return nil
}

// RefreshDescription loads the description setting. A setting that was
// never saved is replaced by the default text.
func (c *Cache) RefreshDescription(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "Cache.RefreshDescription")
	start := time.Now()

	setting, err := c.source.GetSetting(ctx, models.DescriptionKey)
	c.observe("description", start, err)
	util.EndSpan(span, err)
	if err != nil {
		return fmt.Errorf("failed to load description: %w", err)
	}
	if setting == nil {
		setting = &models.Setting{Key: models.DescriptionKey, Value: c.defaultDescription}
	}

	c.mu.Lock()
	c.description = *setting
	c.mu.Unlock()
	return nil
}

// Refresh reloads products and categories concurrently. A failing slice
// does not cancel the other one.
func (c *Cache) Refresh(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.RefreshProducts(ctx) })
	g.Go(func() error { return c.RefreshCategories(ctx) })
	return g.Wait()
}

// RefreshAll reloads every slice
func (c *Cache) RefreshAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.RefreshProducts(ctx) })
	g.Go(func() error { return c.RefreshCategories(ctx) })
	g.Go(func() error { return c.RefreshDescription(ctx) })
	return g.Wait()
}

// Products returns a copy of the cached products in remote order
func (c *Cache) Products() []models.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Categories returns a copy of the cached categories in name order
func (c *Cache) Categories() []models.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Description returns the cached description setting
func (c *Cache) Description() models.Setting {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.description
}

// Product looks a product up by id
func (c *Cache) Product(id string) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.productIndex(id); i >= 0 {
		return c.products[i], true
	}
	return models.Product{}, false
}

// Category looks a category up by id
func (c *Cache) Category(id string) (models.Category, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cat := range c.categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return models.Category{}, false
}

func (c *Cache) productIndex(id string) int {
	for i := range c.products {
		if c.products[i].ID == id {
			return i
		}
	}
	return -1
}

// ApplyQuantityPatch merges a confirmed quantity write into the cached
// product. It reports false when the product is not cached.
func (c *Cache) ApplyQuantityPatch(productID string, field models.QuantityField, value int, actor string, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.productIndex(productID)
	if i < 0 {
		return false
	}
	return c.products[i].SetQuantity(field, value, at, actor)
}

// PatchProduct merges confirmed descriptive fields into the cached product
func (c *Cache) PatchProduct(productID string, fields models.ProductFields, actor string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.productIndex(productID)
	if i < 0 {
		return false
	}
	c.products[i].Apply(fields, actor)
	return true
}

// AddProduct prepends a newly created product
func (c *Cache) AddProduct(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]models.Product, 0, len(c.products)+1)
	next = append(next, p)
	next = append(next, c.products...)
	c.products = next
}

// AddCategory inserts a newly created category keeping name order
func (c *Cache) AddCategory(cat models.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]models.Category, 0, len(c.categories)+1)
	next = append(next, c.categories...)
	next = append(next, cat)
	c.sortCategories(next)
	c.categories = next
}

// RenameCategory applies a confirmed rename keeping name order
func (c *Cache) RenameCategory(id, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]models.Category, len(c.categories))
	copy(next, c.categories)
	found := false
	for i := range next {
		if next[i].ID == id {
			next[i].Name = name
			found = true
		}
	}
	if !found {
		return false
	}
	c.sortCategories(next)
	c.categories = next
	return true
}

func (c *Cache) sortCategories(cats []models.Category) {
	sort.SliceStable(cats, func(i, j int) bool {
		return c.compareNames(cats[i].Name, cats[j].Name) < 0
	})
}

// SetDescription replaces the cached description with a confirmed save
func (c *Cache) SetDescription(s models.Setting) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.description = s
}

// Clear drops every cached entity
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = []models.Product{}
	c.categories = []models.Category{}
	c.description = models.Setting{Key: models.DescriptionKey, Value: c.defaultDescription}
}
