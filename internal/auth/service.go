package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"inventory-tracker/internal/models"
	"inventory-tracker/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	NicknameMinLength = 2
	NicknameMaxLength = 20
)

var (
	ErrInvalidEmail    = errors.New("a verified email is required")
	ErrInvalidNickname = fmt.Errorf("nickname must be %d-%d characters", NicknameMinLength, NicknameMaxLength)
	ErrSessionRevoked  = errors.New("session revoked")
)

// UserStore persists accounts
type UserStore interface {
	UpsertUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateNickname(ctx context.Context, id, nickname string) (*models.User, error)
}

// SessionStore tracks live sessions so that sign-out revokes tokens
type SessionStore interface {
	SaveSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	SessionUser(ctx context.Context, sessionID string) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Listener receives auth lifecycle events
type Listener func(event models.AuthEvent, session *models.Session)

// Service signs users in and out and fans auth changes out to listeners
type Service struct {
	users    UserStore
	sessions SessionStore
	tokens   *JWTManager
	validate *validator.Validate
	logger   *zap.Logger

	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

// NewService creates a new auth service
func NewService(users UserStore, sessions SessionStore, tokens *JWTManager) *Service {
	return &Service{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		validate:  validator.New(),
		logger:    util.GetLogger(),
		listeners: make(map[int]Listener),
	}
}

// OnAuthChange registers a listener. The returned func unregisters it.
func (s *Service) OnAuthChange(listener Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// emit calls listeners outside the lock so they may unsubscribe
func (s *Service) emit(event models.AuthEvent, session *models.Session) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	util.AuthEventsTotal.WithLabelValues(string(event)).Inc()
	for _, l := range listeners {
		copied := *session
		l(event, &copied)
	}
}

// SignIn opens a session for an email already verified by the identity provider
func (s *Service) SignIn(ctx context.Context, email string) (*models.Session, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.SignIn")
	defer span.End()

	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}

	user, err := s.users.UpsertUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	session, err := s.issue(ctx, uuid.New().String(), user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User signed in",
		zap.String("user_id", user.ID),
		zap.String("session_id", session.ID))
	s.emit(models.AuthSignedIn, session)
	return session, nil
}

// GetSession resolves a bearer token to a live session
func (s *Service) GetSession(ctx context.Context, token string) (*models.Session, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	userID, err := s.sessions.SessionUser(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionRevoked, err)
	}
	if userID != claims.Subject {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	return &models.Session{
		ID:          claims.ID,
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        *user,
	}, nil
}

// SessionID returns the session a signed token names, expired or not
func (s *Service) SessionID(token string) (string, bool) {
	return s.tokens.SessionID(token)
}

// Refresh issues a new token for the same session
func (s *Service) Refresh(ctx context.Context, token string) (*models.Session, error) {
	current, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}

	session, err := s.issue(ctx, current.ID, &current.User)
	if err != nil {
		return nil, err
	}

	s.emit(models.AuthTokenRefreshed, session)
	return session, nil
}

// SignOut revokes the session behind token
func (s *Service) SignOut(ctx context.Context, token string) error {
	session, err := s.GetSession(ctx, token)
	if err != nil {
		return err
	}

	if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.logger.Info("User signed out",
		zap.String("user_id", session.User.ID),
		zap.String("session_id", session.ID))
	s.emit(models.AuthSignedOut, session)
	return nil
}

// UpdateNickname sets the display nickname used for audit stamps
func (s *Service) UpdateNickname(ctx context.Context, token, nickname string) (*models.Session, error) {
	nickname = strings.TrimSpace(nickname)
	if n := utf8.RuneCountInString(nickname); n < NicknameMinLength || n > NicknameMaxLength {
		return nil, ErrInvalidNickname
	}

	session, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.UpdateNickname(ctx, session.User.ID, nickname)
	if err != nil {
		return nil, fmt.Errorf("failed to update nickname: %w", err)
	}
	session.User = *user

	s.emit(models.AuthUserUpdated, session)
	return session, nil
}

func (s *Service) issue(ctx context.Context, sessionID string, user *models.User) (*models.Session, error) {
	token, expiresAt, err := s.tokens.Generate(sessionID, user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	if err := s.sessions.SaveSession(ctx, sessionID, user.ID, s.tokens.TTL()); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return &models.Session{
		ID:          sessionID,
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        *user,
	}, nil
}
