package editor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"inventory-tracker/internal/cache"
	"inventory-tracker/internal/models"
	"inventory-tracker/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Remote is the write side of the remote store
type Remote interface {
	UpdateQuantity(ctx context.Context, productID string, field models.QuantityField, value int, at time.Time, actor string) error
	UpdateProduct(ctx context.Context, id string, f models.ProductFields, actor string) error
	InsertProduct(ctx context.Context, p *models.Product) error
	UpdateCategory(ctx context.Context, id, name string) error
	InsertCategory(ctx context.Context, c *models.Category) error
	UpsertSetting(ctx context.Context, s *models.Setting) error
}

// Publisher announces confirmed writes to other instances
type Publisher interface {
	PublishChange(ctx context.Context, event *models.ChangeEvent) error
}

// Controller owns the single active edit of a workspace
type Controller struct {
	remote    Remote
	cache     *cache.Cache
	actor     func() string
	publisher Publisher
	origin    string
	now       func() time.Time
	logger    *zap.Logger

	mu    sync.Mutex
	state State
}

// Option configures a Controller
type Option func(*Controller)

// WithPublisher publishes a change event after every commit. origin is
// carried in the event so the sender can skip its own changes.
func WithPublisher(p Publisher, origin string) Option {
	return func(c *Controller) {
		c.publisher = p
		c.origin = origin
	}
}

// WithClock overrides the commit timestamp source
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger overrides the global logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// New creates an idle controller. actor resolves the audit identifier at
// commit time.
func New(remote Remote, c *cache.Cache, actor func() string, opts ...Option) *Controller {
	ctrl := &Controller{
		remote: remote,
		cache:  c,
		actor:  actor,
		now:    func() time.Time { return time.Now().UTC() },
		logger: util.GetLogger(),
		state:  State{Kind: Idle},
	}
	for _, opt := range opts {
		opt(ctrl)
	}
	return ctrl
}

// State returns a snapshot of the active edit
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Start opens an edit. Only one edit may be active at a time.
func (c *Controller) Start(target Target) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Pending {
		return c.state.clone(), ErrCommitPending
	}
	if c.state.Kind != Idle {
		return c.state.clone(), ErrEditInProgress
	}

	next, err := c.seed(target)
	if err != nil {
		return c.state.clone(), err
	}

	c.state = next
	util.EditsStartedTotal.WithLabelValues(string(next.Kind)).Inc()
	return c.state.clone(), nil
}

// seed builds the initial draft for a target from the cache
func (c *Controller) seed(t Target) (State, error) {
	switch t.Kind {
	case EditingQuantityCell:
		field, err := models.ParseQuantityField(string(t.Field))
		if err != nil {
			return State{}, &ValidationError{Field: "field", Message: err.Error()}
		}
		p, ok := c.cache.Product(t.ProductID)
		if !ok {
			return State{}, fmt.Errorf("product %s: %w", t.ProductID, ErrNotFound)
		}
		return State{
			Kind:      EditingQuantityCell,
			ProductID: p.ID,
			Field:     field,
			Text:      strconv.Itoa(p.Quantity(field)),
		}, nil

	case EditingProduct:
		p, ok := c.cache.Product(t.ProductID)
		if !ok {
			return State{}, fmt.Errorf("product %s: %w", t.ProductID, ErrNotFound)
		}
		draft := draftFrom(p)
		return State{Kind: EditingProduct, ProductID: p.ID, Product: &draft}, nil

	case EditingCategory:
		cat, ok := c.cache.Category(t.CategoryID)
		if !ok {
			return State{}, fmt.Errorf("category %s: %w", t.CategoryID, ErrNotFound)
		}
		return State{Kind: EditingCategory, CategoryID: cat.ID, Text: cat.Name}, nil

	case EditingDescription:
		return State{Kind: EditingDescription, Text: c.cache.Description().Value}, nil

	case CreatingProduct:
		return State{Kind: CreatingProduct, Product: &ProductDraft{}}, nil

	case CreatingCategory:
		return State{Kind: CreatingCategory}, nil
	}

	return State{}, fmt.Errorf("%w: %q", ErrUnknownKind, t.Kind)
}

// SetText replaces the text draft of the active edit
func (c *Controller) SetText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editable(); err != nil {
		return err
	}
	if !c.state.acceptsText() {
		return ErrWrongDraft
	}
	c.state.Text = text
	return nil
}

// SetProductDraft replaces the product form draft of the active edit
func (c *Controller) SetProductDraft(d ProductDraft) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editable(); err != nil {
		return err
	}
	if !c.state.acceptsProductDraft() {
		return ErrWrongDraft
	}
	c.state.Product = &d
	return nil
}

func (c *Controller) editable() error {
	if c.state.Pending {
		return ErrCommitPending
	}
	if c.state.Kind == Idle {
		return ErrNoActiveEdit
	}
	return nil
}

// Cancel discards the active edit without contacting the store. Cancelling
// while idle is a no-op.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Pending {
		return ErrCommitPending
	}
	if c.state.Kind != Idle {
		util.EditsCancelledTotal.WithLabelValues(string(c.state.Kind)).Inc()
	}
	c.state = State{Kind: Idle}
	return nil
}

// Key applies the keyboard contract of quantity cells
func (c *Controller) Key(ctx context.Context, key string) error {
	state := c.State()
	if state.Pending {
		return ErrCommitPending
	}
	if state.Kind != EditingQuantityCell {
		return ErrUnsupportedKey
	}

	switch key {
	case KeyAccept:
		return c.Commit(ctx)
	case KeyCancel:
		return c.Cancel()
	}
	return ErrUnsupportedKey
}

// Reset forces the controller back to idle, used on sign-out
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{Kind: Idle}
}

// operation is a validated commit: a store write and the cache patch that
// follows its confirmation
type operation struct {
	write func(ctx context.Context) error
	apply func()
	event func() *models.ChangeEvent
}

// Commit validates the active draft, writes it to the store and, once the
// store confirmed, patches the cache and returns to idle. On any failure the
// edit stays open so it can be retried.
func (c *Controller) Commit(ctx context.Context) error {
	c.mu.Lock()
	if err := c.editable(); err != nil {
		c.mu.Unlock()
		return err
	}

	snapshot := c.state.clone()
	op, err := c.prepare(snapshot, c.actor(), c.now())
	if err != nil {
		c.mu.Unlock()
		util.EditValidationFailedTotal.WithLabelValues(string(snapshot.Kind)).Inc()
		return err
	}
	c.state.Pending = true
	c.mu.Unlock()

	spanCtx, span := util.StartSpan(ctx, "Editor.Commit", attribute.String("kind", string(snapshot.Kind)))
	start := time.Now()
	err = op.write(spanCtx)
	util.CommitLatency.WithLabelValues(string(snapshot.Kind)).Observe(time.Since(start).Seconds())
	util.EndSpan(span, err)

	c.mu.Lock()
	c.state.Pending = false
	if err != nil {
		c.mu.Unlock()
		util.RemoteWriteFailedTotal.WithLabelValues(string(snapshot.Kind)).Inc()
		c.logger.Error("Failed to save edit",
			zap.String("kind", string(snapshot.Kind)),
			zap.String("product_id", snapshot.ProductID),
			zap.String("category_id", snapshot.CategoryID),
			zap.Error(err))
		return fmt.Errorf("failed to save %s: %w", snapshot.Kind, err)
	}
	op.apply()
	c.state = State{Kind: Idle}
	c.mu.Unlock()

	util.EditsCommittedTotal.WithLabelValues(string(snapshot.Kind)).Inc()
	c.publish(ctx, op.event())
	return nil
}

// prepare validates a snapshot and builds the operation for its kind
func (c *Controller) prepare(s State, actor string, at time.Time) (*operation, error) {
	switch s.Kind {
	case EditingQuantityCell:
		value, err := strconv.Atoi(strings.TrimSpace(s.Text))
		if err != nil {
			return nil, &ValidationError{Field: string(s.Field), Message: "quantity must be a whole number"}
		}
		if value < 0 {
			return nil, &ValidationError{Field: string(s.Field), Message: "quantity cannot be negative"}
		}
		return &operation{
			write: func(ctx context.Context) error {
				return c.remote.UpdateQuantity(ctx, s.ProductID, s.Field, value, at, actor)
			},
			apply: func() { c.cache.ApplyQuantityPatch(s.ProductID, s.Field, value, actor, at) },
			event: changeEvent(models.EventTypeInventoryUpdated, models.EntityProduct, s.ProductID, string(s.Field)),
		}, nil

	case EditingProduct, CreatingProduct:
		if s.Product == nil {
			return nil, ErrWrongDraft
		}
		fields, err := s.Product.fields()
		if err != nil {
			return nil, err
		}
		if s.Kind == EditingProduct {
			return &operation{
				write: func(ctx context.Context) error {
					return c.remote.UpdateProduct(ctx, s.ProductID, fields, actor)
				},
				apply: func() { c.cache.PatchProduct(s.ProductID, fields, actor) },
				event: changeEvent(models.EventTypeProductUpdated, models.EntityProduct, s.ProductID, ""),
			}, nil
		}

		p := &models.Product{}
		p.Apply(fields, actor)
		return &operation{
			write: func(ctx context.Context) error { return c.remote.InsertProduct(ctx, p) },
			apply: func() { c.cache.AddProduct(*p) },
			event: func() *models.ChangeEvent {
				return changeEvent(models.EventTypeProductCreated, models.EntityProduct, p.ID, "")()
			},
		}, nil

	case EditingCategory, CreatingCategory:
		name := strings.TrimSpace(s.Text)
		if name == "" {
			return nil, &ValidationError{Field: "name", Message: "category name is required"}
		}
		if s.Kind == EditingCategory {
			return &operation{
				write: func(ctx context.Context) error { return c.remote.UpdateCategory(ctx, s.CategoryID, name) },
				apply: func() { c.cache.RenameCategory(s.CategoryID, name) },
				event: changeEvent(models.EventTypeCategoryUpdated, models.EntityCategory, s.CategoryID, ""),
			}, nil
		}

		cat := &models.Category{Name: name}
		return &operation{
			write: func(ctx context.Context) error { return c.remote.InsertCategory(ctx, cat) },
			apply: func() { c.cache.AddCategory(*cat) },
			event: func() *models.ChangeEvent {
				return changeEvent(models.EventTypeCategoryCreated, models.EntityCategory, cat.ID, "")()
			},
		}, nil

	case EditingDescription:
		if strings.TrimSpace(s.Text) == "" {
			return nil, &ValidationError{Field: "description", Message: "description cannot be empty"}
		}
		updatedAt, updatedBy := at, actor
		setting := models.Setting{
			Key:       models.DescriptionKey,
			Value:     s.Text,
			UpdatedAt: &updatedAt,
			UpdatedBy: &updatedBy,
		}
		return &operation{
			write: func(ctx context.Context) error { return c.remote.UpsertSetting(ctx, &setting) },
			apply: func() { c.cache.SetDescription(setting) },
			event: changeEvent(models.EventTypeDescriptionUpdated, models.EntityDescription, models.DescriptionKey, ""),
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
}

func changeEvent(eventType, entity, entityID, field string) func() *models.ChangeEvent {
	return func() *models.ChangeEvent {
		return &models.ChangeEvent{
			BaseEvent: models.BaseEvent{EventType: eventType},
			Entity:    entity,
			EntityID:  entityID,
			Field:     field,
		}
	}
}

func (c *Controller) publish(ctx context.Context, event *models.ChangeEvent) {
	if c.publisher == nil || event == nil {
		return
	}

	event.EventID = uuid.New().String()
	event.Timestamp = c.now()
	event.Actor = c.actor()
	event.OriginSession = c.origin

	if err := c.publisher.PublishChange(ctx, event); err != nil {
		util.ChangeEventsTotal.WithLabelValues("out", "error").Inc()
		c.logger.Warn("Failed to publish change event",
			zap.String("event_type", event.EventType),
			zap.String("entity_id", event.EntityID),
			zap.Error(err))
		return
	}
	util.ChangeEventsTotal.WithLabelValues("out", "ok").Inc()
}
