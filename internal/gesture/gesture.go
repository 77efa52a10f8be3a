// Package gesture tracks a pull-to-refresh drag and fires a refresh once
// the damped pull passes the threshold.
package gesture

import (
	"context"
	"sync"

	"inventory-tracker/internal/util"

	"go.uber.org/zap"
)

const (
	Damping   = 0.4
	Threshold = 80.0
	MaxPull   = 120.0
)

// RefreshFunc reloads whatever the gesture refreshes
type RefreshFunc func(ctx context.Context) error

// State is a snapshot of the gesture. StartY is nil while no drag is tracked.
type State struct {
	StartY     *float64 `json:"start_y"`
	Pull       float64  `json:"pull"`
	Refreshing bool     `json:"refreshing"`
}

type Handler struct {
	refresh RefreshFunc
	logger  *zap.Logger

	mu         sync.Mutex
	startY     *float64
	pull       float64
	refreshing bool
}

func NewHandler(refresh RefreshFunc) *Handler {
	return &Handler{
		refresh: refresh,
		logger:  util.GetLogger(),
	}
}

// Start begins tracking a drag. Drags that do not begin at the top edge,
// or that begin while a refresh runs, are ignored.
func (h *Handler) Start(y float64, atTop bool) State {
	h.mu.Lock()
	defer h.mu.Unlock()

	if atTop && !h.refreshing {
		h.startY = &y
	}
	return h.snapshot()
}

// Move updates the damped pull distance
func (h *Handler) Move(y float64, atTop bool) State {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.startY == nil || h.refreshing || !atTop {
		return h.snapshot()
	}
	if delta := y - *h.startY; delta > 0 {
		h.pull = delta * Damping
		if h.pull > MaxPull {
			h.pull = MaxPull
		}
	}
	return h.snapshot()
}

// End releases the drag. Past the threshold the refresh runs with the pull
// pinned at the threshold; the state is reset whatever the refresh returns.
// It reports whether a refresh was triggered.
func (h *Handler) End(ctx context.Context) (bool, error) {
	h.mu.Lock()
	if h.refreshing {
		h.mu.Unlock()
		return false, nil
	}

	h.startY = nil
	if h.pull <= Threshold {
		h.pull = 0
		h.mu.Unlock()
		util.PullRefreshTotal.WithLabelValues("below_threshold").Inc()
		return false, nil
	}

	h.refreshing = true
	h.pull = Threshold
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.refreshing = false
		h.pull = 0
		h.mu.Unlock()
	}()

	if err := h.refresh(ctx); err != nil {
		util.PullRefreshTotal.WithLabelValues("failed").Inc()
		h.logger.Warn("Pull-to-refresh failed", zap.Error(err))
		return true, err
	}
	util.PullRefreshTotal.WithLabelValues("refreshed").Inc()
	return true, nil
}

func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot()
}

func (h *Handler) snapshot() State {
	s := State{Pull: h.pull, Refreshing: h.refreshing}
	if h.startY != nil {
		y := *h.startY
		s.StartY = &y
	}
	return s
}
