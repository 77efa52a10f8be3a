package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"inventory-tracker/internal/auth"
	"inventory-tracker/internal/models"
	"inventory-tracker/internal/view"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	mu        sync.Mutex
	sessions  map[string]*models.Session
	listeners map[int]auth.Listener
	next      int
	err       error
}

func newFakeAuth(sessions ...*models.Session) *fakeAuth {
	f := &fakeAuth{
		sessions:  make(map[string]*models.Session),
		listeners: make(map[int]auth.Listener),
	}
	for _, s := range sessions {
		f.sessions[s.AccessToken] = s
	}
	return f
}

func (f *fakeAuth) GetSession(ctx context.Context, token string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[token]
	if !ok {
		return nil, fmt.Errorf("%w: session not found", auth.ErrSessionRevoked)
	}
	copied := *s
	return &copied, nil
}

func (f *fakeAuth) OnAuthChange(listener auth.Listener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.listeners[id] = listener
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeAuth) emit(event models.AuthEvent, s *models.Session) {
	f.mu.Lock()
	listeners := make([]auth.Listener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()
	for _, l := range listeners {
		l(event, s)
	}
}

func (f *fakeAuth) expire(token string) {
	f.mu.Lock()
	delete(f.sessions, token)
	f.mu.Unlock()
}

func (f *fakeAuth) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

type fakeSource struct {
	productLoads int32
	failProducts atomic.Bool
}

func (f *fakeSource) ListProducts(ctx context.Context) ([]models.Product, error) {
	atomic.AddInt32(&f.productLoads, 1)
	if f.failProducts.Load() {
		return nil, errors.New("store unavailable")
	}
	fruit := "c-fruit"
	return []models.Product{
		{ID: "p1", Name: "Apple", SKU: "A1"},
		{ID: "p2", Name: "Banana", SKU: "B1", CategoryID: &fruit},
	}, nil
}

func (f *fakeSource) ListCategories(ctx context.Context) ([]models.Category, error) {
	return []models.Category{{ID: "c-fruit", Name: "Fruit"}}, nil
}

func (f *fakeSource) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	return nil, nil
}

func testSession(id string) *models.Session {
	return &models.Session{
		ID:          id,
		AccessToken: "token-" + id,
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        models.User{ID: "u-" + id, Email: id + "@example.com"},
	}
}

func newTestRegistry(a *fakeAuth, src *fakeSource) *Registry {
	return NewRegistry(a, src, nil, nil, view.NewSorter("en", ""), "default text")
}

func TestOpen_LoadsWorkspaceOnce(t *testing.T) {
	a := newFakeAuth(testSession("s1"))
	src := &fakeSource{}
	r := newTestRegistry(a, src)
	defer r.Close()

	ws, err := r.Open(context.Background(), testSession("s1"))
	require.NoError(t, err)
	assert.Equal(t, "s1", ws.ID())
	assert.Equal(t, "default text", ws.Description().Value)
	assert.Equal(t, "s1@example.com", ws.Session().Actor())

	again, err := r.Open(context.Background(), testSession("s1"))
	require.NoError(t, err)
	assert.Same(t, ws, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.productLoads))
	assert.Equal(t, 1, r.Len())
}

func TestOpen_RejectsUnknownSession(t *testing.T) {
	a := newFakeAuth()
	r := newTestRegistry(a, &fakeSource{})

	_, err := r.Open(context.Background(), testSession("ghost"))
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, a.subscribers())

	_, err = r.Open(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestOpen_FailedLoadIsReported(t *testing.T) {
	src := &fakeSource{}
	src.failProducts.Store(true)
	r := newTestRegistry(newFakeAuth(testSession("s1")), src)
	defer r.Close()

	ws, err := r.Open(context.Background(), testSession("s1"))
	require.NoError(t, err)
	assert.ErrorContains(t, ws.LoadError(), "store unavailable")
	assert.Empty(t, ws.Products(view.Filter{}))
	assert.Len(t, ws.Categories(), 1)

	again, err := r.Open(context.Background(), testSession("s1"))
	require.NoError(t, err)
	assert.Error(t, again.LoadError())

	src.failProducts.Store(false)
	require.NoError(t, ws.Reload(context.Background()))
	assert.NoError(t, ws.LoadError())
	assert.Len(t, ws.Products(view.Filter{}), 2)
}

func TestGesture_RefreshClearsLoadError(t *testing.T) {
	src := &fakeSource{}
	src.failProducts.Store(true)
	r := newTestRegistry(newFakeAuth(testSession("s1")), src)
	defer r.Close()

	ws, err := r.Open(context.Background(), testSession("s1"))
	require.NoError(t, err)
	require.Error(t, ws.LoadError())

	src.failProducts.Store(false)
	ws.Gesture().Start(0, true)
	ws.Gesture().Move(250, true)
	refreshed, err := ws.Gesture().End(context.Background())
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.NoError(t, ws.LoadError())
}

func TestWorkspace_ProductViews(t *testing.T) {
	r := newTestRegistry(newFakeAuth(testSession("s1")), &fakeSource{})
	defer r.Close()

	ws, err := r.Open(context.Background(), testSession("s1"))
	require.NoError(t, err)

	rows := ws.Products(view.Filter{Query: "A", CategoryID: view.AllCategories})
	require.Len(t, rows, 2)
	assert.Equal(t, "Banana", rows[0].Name)
	assert.Equal(t, "Fruit", rows[0].CategoryName)

	settings := ws.SettingsProducts()
	require.Len(t, settings, 2)
	assert.Equal(t, "Apple", settings[0].Name)

	options := ws.CategoryOptions()
	require.Len(t, options, 2)
	assert.Equal(t, view.AllCategories, options[0].ID)
}

func TestSignOut_RemovesWorkspace(t *testing.T) {
	a := newFakeAuth(testSession("s1"))
	r := newTestRegistry(a, &fakeSource{})

	ws, err := r.Open(context.Background(), testSession("s1"))
	require.NoError(t, err)
	require.NotEmpty(t, ws.Products(view.Filter{}))

	a.emit(models.AuthSignedOut, testSession("s1"))

	_, ok := r.Get("s1")
	assert.False(t, ok)
	assert.Empty(t, ws.Products(view.Filter{}))
	assert.False(t, ws.Session().SignedIn())
	assert.Equal(t, 0, a.subscribers())
}

func TestSignOut_OtherSessionUntouched(t *testing.T) {
	a := newFakeAuth(testSession("s1"), testSession("s2"))
	r := newTestRegistry(a, &fakeSource{})
	defer r.Close()

	_, err := r.Open(context.Background(), testSession("s1"))
	require.NoError(t, err)
	_, err = r.Open(context.Background(), testSession("s2"))
	require.NoError(t, err)

	a.emit(models.AuthSignedOut, testSession("s1"))

	_, ok := r.Get("s2")
	assert.True(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestApplyChange_SkipsOrigin(t *testing.T) {
	a := newFakeAuth(testSession("s1"), testSession("s2"))
	src := &fakeSource{}
	r := newTestRegistry(a, src)
	defer r.Close()

	_, err := r.Open(context.Background(), testSession("s1"))
	require.NoError(t, err)
	_, err = r.Open(context.Background(), testSession("s2"))
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&src.productLoads))

	err = r.ApplyChange(context.Background(), &models.ChangeEvent{
		BaseEvent:     models.BaseEvent{EventType: models.EventTypeInventoryUpdated},
		Entity:        models.EntityProduct,
		EntityID:      "p1",
		OriginSession: "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&src.productLoads))
}

func TestApplyChange_ReportsFailure(t *testing.T) {
	src := &fakeSource{}
	r := newTestRegistry(newFakeAuth(testSession("s1")), src)
	defer r.Close()

	_, err := r.Open(context.Background(), testSession("s1"))
	require.NoError(t, err)

	src.failProducts.Store(true)
	err = r.ApplyChange(context.Background(), &models.ChangeEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeProductUpdated},
		Entity:    models.EntityProduct,
	})
	assert.ErrorContains(t, err, "workspace s1")
}

func TestSweep_ClosesRevokedSession(t *testing.T) {
	a := newFakeAuth(testSession("s1"), testSession("s2"))
	src := &fakeSource{}
	r := newTestRegistry(a, src)
	defer r.Close()

	ws, err := r.Open(context.Background(), testSession("s1"))
	require.NoError(t, err)
	_, err = r.Open(context.Background(), testSession("s2"))
	require.NoError(t, err)

	a.expire("token-s1")
	assert.Equal(t, 1, r.Sweep(context.Background()))

	_, ok := r.Get("s1")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
	assert.Empty(t, ws.Products(view.Filter{}))

	loads := atomic.LoadInt32(&src.productLoads)
	err = r.ApplyChange(context.Background(), &models.ChangeEvent{
		BaseEvent:     models.BaseEvent{EventType: models.EventTypeProductUpdated},
		Entity:        models.EntityProduct,
		OriginSession: "s2",
	})
	require.NoError(t, err)
	assert.Equal(t, loads, atomic.LoadInt32(&src.productLoads))
}

func TestSweep_ClosesExpiredSession(t *testing.T) {
	a := newFakeAuth(testSession("s1"))
	r := newTestRegistry(a, &fakeSource{})
	defer r.Close()

	_, err := r.Open(context.Background(), testSession("s1"))
	require.NoError(t, err)

	assert.Equal(t, 0, r.Sweep(context.Background()))
	assert.Equal(t, 1, r.Len())

	r.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, 1, r.Sweep(context.Background()))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, a.subscribers())
}

func TestSweep_KeepsWorkspaceOnLookupFailure(t *testing.T) {
	a := newFakeAuth(testSession("s1"))
	r := newTestRegistry(a, &fakeSource{})
	defer r.Close()

	_, err := r.Open(context.Background(), testSession("s1"))
	require.NoError(t, err)

	a.mu.Lock()
	a.err = errors.New("redis: connection refused")
	a.mu.Unlock()

	assert.Equal(t, 0, r.Sweep(context.Background()))
	assert.Equal(t, 1, r.Len())
}
