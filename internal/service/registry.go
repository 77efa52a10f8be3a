package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"inventory-tracker/internal/auth"
	"inventory-tracker/internal/cache"
	"inventory-tracker/internal/editor"
	"inventory-tracker/internal/gesture"
	"inventory-tracker/internal/models"
	"inventory-tracker/internal/session"
	"inventory-tracker/internal/util"
	"inventory-tracker/internal/view"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrNotSignedIn = errors.New("not signed in")

// Registry holds one workspace per signed-in session
type Registry struct {
	auth               session.AuthClient
	source             cache.Source
	remote             editor.Remote
	publisher          editor.Publisher
	sorter             *view.Sorter
	defaultDescription string
	logger             *zap.Logger
	now                func() time.Time

	mu         sync.RWMutex
	workspaces map[string]*Workspace
}

// NewRegistry creates an empty registry. publisher may be nil.
func NewRegistry(
	auth session.AuthClient,
	source cache.Source,
	remote editor.Remote,
	publisher editor.Publisher,
	sorter *view.Sorter,
	defaultDescription string,
) *Registry {
	return &Registry{
		auth:               auth,
		source:             source,
		remote:             remote,
		publisher:          publisher,
		sorter:             sorter,
		defaultDescription: defaultDescription,
		logger:             util.GetLogger(),
		now:                time.Now,
		workspaces:         make(map[string]*Workspace),
	}
}

// Open returns the workspace of the session, creating and loading it on
// first use. A failed initial load keeps the workspace open with an empty
// cache and is reported through Workspace.LoadError.
func (r *Registry) Open(ctx context.Context, s *models.Session) (*Workspace, error) {
	if s == nil {
		return nil, ErrNotSignedIn
	}

	r.mu.RLock()
	ws, ok := r.workspaces[s.ID]
	r.mu.RUnlock()
	if ok {
		return ws, nil
	}

	ctx, span := util.StartSpan(ctx, "Registry.Open", attribute.String("session_id", s.ID))
	defer span.End()

	ws, err := r.build(ctx, s)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.workspaces[s.ID]; ok {
		r.mu.Unlock()
		ws.close()
		return existing, nil
	}
	r.workspaces[s.ID] = ws
	util.ActiveWorkspaces.Set(float64(len(r.workspaces)))
	r.mu.Unlock()

	r.logger.Info("Workspace opened", zap.String("session_id", s.ID))
	return ws, nil
}

func (r *Registry) build(ctx context.Context, s *models.Session) (*Workspace, error) {
	id := s.ID
	c := cache.New(r.source, r.defaultDescription, cache.WithNameOrder(r.sorter.Compare))
	manager := session.NewManager(r.auth, s.AccessToken, func() { r.Remove(id) })

	if manager.InitialSession(ctx) == nil {
		manager.Close()
		return nil, ErrNotSignedIn
	}

	opts := []editor.Option{}
	if r.publisher != nil {
		opts = append(opts, editor.WithPublisher(r.publisher, id))
	}

	ws := &Workspace{
		id:      id,
		session: manager,
		cache:   c,
		editor:  editor.New(r.remote, c, manager.Actor, opts...),
		sorter:  r.sorter,
	}
	ws.gesture = gesture.NewHandler(ws.pullRefresh)

	if err := ws.Reload(ctx); err != nil {
		r.logger.Warn("Initial workspace load incomplete",
			zap.String("session_id", id),
			zap.Error(err))
	}
	return ws, nil
}

// Get returns an open workspace without creating one
func (r *Registry) Get(sessionID string) (*Workspace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ws, ok := r.workspaces[sessionID]
	return ws, ok
}

// Remove closes the workspace of a session and drops its cached state
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	ws, ok := r.workspaces[sessionID]
	if ok {
		delete(r.workspaces, sessionID)
	}
	util.ActiveWorkspaces.Set(float64(len(r.workspaces)))
	r.mu.Unlock()

	if ok {
		ws.close()
		r.logger.Info("Workspace closed", zap.String("session_id", sessionID))
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces)
}

func (r *Registry) snapshot() []*Workspace {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Workspace, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		out = append(out, ws)
	}
	return out
}

// ApplyChange refreshes the slice a change event touched in every open
// workspace except the one that made the change. Refreshes run
// concurrently; one failing workspace does not stop the others.
func (r *Registry) ApplyChange(ctx context.Context, event *models.ChangeEvent) error {
	ctx, span := util.StartSpan(ctx, "Registry.ApplyChange",
		attribute.String("event_type", event.EventType),
		attribute.String("entity", event.Entity))

	var g errgroup.Group
	for _, ws := range r.snapshot() {
		if ws.id == event.OriginSession {
			continue
		}
		ws := ws
		g.Go(func() error {
			if err := ws.refreshFor(ctx, event.Entity); err != nil {
				return fmt.Errorf("workspace %s: %w", ws.id, err)
			}
			return nil
		})
	}

	err := g.Wait()
	util.EndSpan(span, err)
	return err
}

// Sweep closes the workspaces whose session has expired or is no longer
// live in the session store, such as one signed out on another instance.
// Lookups that fail for other reasons keep the workspace. It returns the
// number of workspaces closed.
func (r *Registry) Sweep(ctx context.Context) int {
	ctx, span := util.StartSpan(ctx, "Registry.Sweep")
	defer span.End()

	closed := 0
	for _, ws := range r.snapshot() {
		s := ws.session.Session()
		if s != nil && (s.ExpiresAt.IsZero() || r.now().Before(s.ExpiresAt)) {
			_, err := ws.session.Validate(ctx)
			if err == nil {
				continue
			}
			if !isDeadSession(err) {
				r.logger.Warn("Session check failed, keeping workspace",
					zap.String("session_id", ws.id),
					zap.Error(err))
				continue
			}
		}

		r.Remove(ws.id)
		closed++
	}

	if closed > 0 {
		r.logger.Info("Expired workspaces closed", zap.Int("count", closed))
	}
	return closed
}

// StartSweeper runs Sweep every interval until ctx is done
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func isDeadSession(err error) bool {
	return errors.Is(err, auth.ErrSessionRevoked) ||
		errors.Is(err, auth.ErrExpiredToken) ||
		errors.Is(err, auth.ErrInvalidToken)
}

// Close closes every workspace
func (r *Registry) Close() {
	r.mu.Lock()
	workspaces := r.workspaces
	r.workspaces = make(map[string]*Workspace)
	util.ActiveWorkspaces.Set(0)
	r.mu.Unlock()

	for _, ws := range workspaces {
		ws.close()
	}
}
