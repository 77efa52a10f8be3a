package session

import (
	"context"
	"sync"

	"inventory-tracker/internal/auth"
	"inventory-tracker/internal/models"
	"inventory-tracker/internal/util"

	"go.uber.org/zap"
)

// AuthClient is the part of the auth service the manager depends on
type AuthClient interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
	OnAuthChange(listener auth.Listener) func()
}

// Manager tracks the authentication state of one client session
type Manager struct {
	client      AuthClient
	token       string
	onSignedOut func()
	logger      *zap.Logger

	mu            sync.RWMutex
	current       *models.Session
	needsNickname bool
	unsubscribe   func()
}

// NewManager subscribes to auth changes for the session behind token.
// onSignedOut is invoked once the session is signed out. Close must be
// called to unregister the subscription.
func NewManager(client AuthClient, token string, onSignedOut func()) *Manager {
	m := &Manager{
		client:      client,
		token:       token,
		onSignedOut: onSignedOut,
		logger:      util.GetLogger(),
	}
	m.unsubscribe = client.OnAuthChange(m.HandleAuthEvent)
	return m
}

// InitialSession asks the auth client for the current session once. A
// failure leaves the manager signed out and returns nil.
func (m *Manager) InitialSession(ctx context.Context) *models.Session {
	s, err := m.client.GetSession(ctx, m.token)
	if err != nil {
		m.logger.Warn("Initial session lookup failed, still not logged in", zap.Error(err))
		return nil
	}

	m.adopt(s)
	return m.Session()
}

// Validate looks the session up again with the latest token
func (m *Manager) Validate(ctx context.Context) (*models.Session, error) {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()
	return m.client.GetSession(ctx, token)
}

// HandleAuthEvent reacts to an auth lifecycle event. Events for other
// sessions are ignored, except user updates for the same user.
func (m *Manager) HandleAuthEvent(event models.AuthEvent, s *models.Session) {
	if s == nil || !m.concerns(event, s) {
		return
	}

	switch event {
	case models.AuthSignedIn:
		m.adopt(s)
		m.logger.Info("Session signed in",
			zap.String("session_id", s.ID),
			zap.Bool("needs_nickname", m.NeedsNickname()))

	case models.AuthSignedOut:
		m.mu.Lock()
		m.current = nil
		m.needsNickname = false
		m.mu.Unlock()
		m.logger.Info("Session signed out", zap.String("session_id", s.ID))
		if m.onSignedOut != nil {
			m.onSignedOut()
		}

	case models.AuthTokenRefreshed:
		m.mu.Lock()
		m.token = s.AccessToken
		if m.current != nil {
			m.current.AccessToken = s.AccessToken
			m.current.ExpiresAt = s.ExpiresAt
		}
		m.mu.Unlock()
		m.logger.Info("Session token refreshed", zap.String("session_id", s.ID))

	case models.AuthUserUpdated:
		m.mu.Lock()
		if m.current != nil {
			m.current.User = s.User
			m.needsNickname = s.User.Nickname == ""
		}
		m.mu.Unlock()
		m.logger.Info("Session user updated", zap.String("user_id", s.User.ID))

	default:
		m.logger.Debug("Ignoring auth event", zap.String("event", string(event)))
	}
}

func (m *Manager) concerns(event models.AuthEvent, s *models.Session) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return event == models.AuthSignedIn && s.AccessToken == m.token
	}
	if event == models.AuthUserUpdated {
		return s.User.ID == m.current.User.ID
	}
	return s.ID == m.current.ID
}

func (m *Manager) adopt(s *models.Session) {
	copied := *s
	m.mu.Lock()
	m.current = &copied
	m.token = s.AccessToken
	m.needsNickname = s.User.Nickname == ""
	m.mu.Unlock()
}

// Session returns a copy of the current session, or nil when signed out
func (m *Manager) Session() *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	copied := *m.current
	return &copied
}

// SignedIn reports whether a session is held
func (m *Manager) SignedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// NeedsNickname reports whether the signed-in user has no nickname yet
func (m *Manager) NeedsNickname() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.needsNickname
}

// Actor resolves the audit identifier for writes made in this session
func (m *Manager) Actor() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.ResolveActor(m.current)
}

// Close unregisters the auth subscription
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}
