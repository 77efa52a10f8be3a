package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"inventory-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	byEmail map[string]string
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]*models.User{}, byEmail: map[string]string{}}
}

func (m *memoryUsers) UpsertUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byEmail[email]; ok {
		u := *m.byID[id]
		return &u, nil
	}
	u := &models.User{ID: "user-" + email, Email: email}
	m.byID[u.ID] = u
	m.byEmail[email] = u.ID
	copied := *u
	return &copied, nil
}

func (m *memoryUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *u
	return &copied, nil
}

func (m *memoryUsers) UpdateNickname(ctx context.Context, id, nickname string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	u.Nickname = nickname
	copied := *u
	return &copied, nil
}

type memorySessions struct {
	mu   sync.Mutex
	live map[string]string
}

func (m *memorySessions) SaveSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[sessionID] = userID
	return nil
}

func (m *memorySessions) SessionUser(ctx context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.live[sessionID]
	if !ok {
		return "", errors.New("missing")
	}
	return userID, nil
}

func (m *memorySessions) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, sessionID)
	return nil
}

type recorded struct {
	event   models.AuthEvent
	session *models.Session
}

func newTestService() (*Service, *[]recorded) {
	tokens := NewJWTManager("test-secret", time.Hour, zap.NewNop())
	svc := NewService(newMemoryUsers(), &memorySessions{live: map[string]string{}}, tokens)

	var events []recorded
	svc.OnAuthChange(func(e models.AuthEvent, s *models.Session) {
		events = append(events, recorded{e, s})
	})
	return svc, &events
}

func TestSignIn_EmitsSignedIn(t *testing.T) {
	svc, events := newTestService()

	session, err := svc.SignIn(context.Background(), "Stock@Example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, session.AccessToken)
	assert.Equal(t, "stock@example.com", session.User.Email)
	require.Len(t, *events, 1)
	assert.Equal(t, models.AuthSignedIn, (*events)[0].event)
	assert.Equal(t, session.ID, (*events)[0].session.ID)
}

func TestSignIn_RejectsMissingEmail(t *testing.T) {
	svc, events := newTestService()

	_, err := svc.SignIn(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	assert.Empty(t, *events)
}

func TestSignIn_RejectsMalformedEmail(t *testing.T) {
	svc, events := newTestService()

	for _, email := range []string{"not-an-email", "a@", "@b.com"} {
		_, err := svc.SignIn(context.Background(), email)
		assert.ErrorIs(t, err, ErrInvalidEmail, email)
	}
	assert.Empty(t, *events)
}

func TestGetSession_AfterSignOut(t *testing.T) {
	svc, events := newTestService()
	ctx := context.Background()

	session, err := svc.SignIn(ctx, "a@b.com")
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	require.NoError(t, svc.SignOut(ctx, session.AccessToken))
	assert.Equal(t, models.AuthSignedOut, (*events)[len(*events)-1].event)

	_, err = svc.GetSession(ctx, session.AccessToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestRefresh_KeepsSessionID(t *testing.T) {
	svc, events := newTestService()
	ctx := context.Background()

	session, err := svc.SignIn(ctx, "a@b.com")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.ID, refreshed.ID)
	assert.Equal(t, models.AuthTokenRefreshed, (*events)[len(*events)-1].event)
}

func TestUpdateNickname(t *testing.T) {
	svc, events := newTestService()
	ctx := context.Background()

	session, err := svc.SignIn(ctx, "a@b.com")
	require.NoError(t, err)

	_, err = svc.UpdateNickname(ctx, session.AccessToken, " x ")
	assert.ErrorIs(t, err, ErrInvalidNickname)

	_, err = svc.UpdateNickname(ctx, session.AccessToken, "abcdefghijklmnopqrstu")
	assert.ErrorIs(t, err, ErrInvalidNickname)

	updated, err := svc.UpdateNickname(ctx, session.AccessToken, "  倉管小明 ")
	require.NoError(t, err)
	assert.Equal(t, "倉管小明", updated.User.Nickname)
	assert.Equal(t, "倉管小明", models.ResolveActor(updated))
	assert.Equal(t, models.AuthUserUpdated, (*events)[len(*events)-1].event)
}

func TestOnAuthChange_Unsubscribe(t *testing.T) {
	svc, _ := newTestService()

	calls := 0
	unsubscribe := svc.OnAuthChange(func(models.AuthEvent, *models.Session) { calls++ })

	_, err := svc.SignIn(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	unsubscribe()
	unsubscribe()

	_, err = svc.SignIn(context.Background(), "c@d.com")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestValidate_Expired(t *testing.T) {
	tokens := NewJWTManager("test-secret", time.Minute, zap.NewNop())
	tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := tokens.Generate("s1", "u1", "a@b.com")
	require.NoError(t, err)

	_, err = tokens.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidate_WrongSecret(t *testing.T) {
	signer := NewJWTManager("one", time.Minute, zap.NewNop())
	verifier := NewJWTManager("two", time.Minute, zap.NewNop())

	token, _, err := signer.Generate("s1", "u1", "a@b.com")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionID_ReadsExpiredToken(t *testing.T) {
	tokens := NewJWTManager("test-secret", time.Minute, zap.NewNop())
	tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := tokens.Generate("s1", "u1", "a@b.com")
	require.NoError(t, err)

	id, ok := tokens.SessionID(token)
	assert.True(t, ok)
	assert.Equal(t, "s1", id)

	other := NewJWTManager("other-secret", time.Minute, zap.NewNop())
	_, ok = other.SessionID(token)
	assert.False(t, ok)

	_, ok = tokens.SessionID("not-a-jwt")
	assert.False(t, ok)
}
