package session

import (
	"context"
	"errors"
	"testing"

	"inventory-tracker/internal/auth"
	"inventory-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	session      *models.Session
	err          error
	listener     auth.Listener
	unsubscribed bool
	lastToken    string
}

func (f *fakeAuth) GetSession(ctx context.Context, token string) (*models.Session, error) {
	f.lastToken = token
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeAuth) OnAuthChange(listener auth.Listener) func() {
	f.listener = listener
	return func() { f.unsubscribed = true }
}

func testSession(nickname string) *models.Session {
	return &models.Session{
		ID:          "s1",
		AccessToken: "token-1",
		User:        models.User{ID: "u1", Email: "a@b.com", Nickname: nickname},
	}
}

func TestInitialSession_Failure(t *testing.T) {
	client := &fakeAuth{err: errors.New("network down")}
	m := NewManager(client, "token-1", nil)
	defer m.Close()

	assert.Nil(t, m.InitialSession(context.Background()))
	assert.False(t, m.SignedIn())
	assert.Equal(t, "Unknown", m.Actor())
}

func TestInitialSession_NeedsNickname(t *testing.T) {
	client := &fakeAuth{session: testSession("")}
	m := NewManager(client, "token-1", nil)
	defer m.Close()

	s := m.InitialSession(context.Background())
	require.NotNil(t, s)
	assert.True(t, m.NeedsNickname())
	assert.Equal(t, "a@b.com", m.Actor())
}

func TestSignedInEvent(t *testing.T) {
	client := &fakeAuth{}
	m := NewManager(client, "token-1", nil)
	defer m.Close()

	require.NotNil(t, client.listener)
	client.listener(models.AuthSignedIn, testSession("Ming"))

	assert.True(t, m.SignedIn())
	assert.False(t, m.NeedsNickname())
	assert.Equal(t, "Ming", m.Actor())
}

func TestSignedInEvent_OtherToken(t *testing.T) {
	client := &fakeAuth{}
	m := NewManager(client, "token-1", nil)
	defer m.Close()

	other := testSession("Ming")
	other.AccessToken = "token-2"
	client.listener(models.AuthSignedIn, other)

	assert.False(t, m.SignedIn())
}

func TestSignedOutEvent_ClearsState(t *testing.T) {
	cleared := 0
	client := &fakeAuth{session: testSession("Ming")}
	m := NewManager(client, "token-1", func() { cleared++ })
	defer m.Close()

	m.InitialSession(context.Background())

	other := testSession("Ming")
	other.ID = "s2"
	m.HandleAuthEvent(models.AuthSignedOut, other)
	assert.True(t, m.SignedIn())
	assert.Equal(t, 0, cleared)

	m.HandleAuthEvent(models.AuthSignedOut, testSession("Ming"))
	assert.False(t, m.SignedIn())
	assert.Nil(t, m.Session())
	assert.Equal(t, 1, cleared)
}

func TestUserUpdatedEvent_RecomputesNickname(t *testing.T) {
	client := &fakeAuth{session: testSession("")}
	m := NewManager(client, "token-1", nil)
	defer m.Close()

	m.InitialSession(context.Background())
	require.True(t, m.NeedsNickname())

	updated := testSession("Ming")
	updated.ID = "another-device"
	m.HandleAuthEvent(models.AuthUserUpdated, updated)

	assert.False(t, m.NeedsNickname())
	assert.Equal(t, "Ming", m.Actor())
}

func TestTokenRefreshedEvent(t *testing.T) {
	client := &fakeAuth{session: testSession("Ming")}
	m := NewManager(client, "token-1", nil)
	defer m.Close()

	m.InitialSession(context.Background())

	refreshed := testSession("Ming")
	refreshed.AccessToken = "token-9"
	m.HandleAuthEvent(models.AuthTokenRefreshed, refreshed)

	assert.Equal(t, "token-9", m.Session().AccessToken)
}

func TestClose_Unsubscribes(t *testing.T) {
	client := &fakeAuth{}
	m := NewManager(client, "token-1", nil)
	m.Close()
	assert.True(t, client.unsubscribed)
}

func TestValidate_UsesRefreshedToken(t *testing.T) {
	client := &fakeAuth{session: testSession("Ming")}
	m := NewManager(client, "token-1", nil)
	defer m.Close()

	m.InitialSession(context.Background())

	refreshed := testSession("Ming")
	refreshed.AccessToken = "token-9"
	m.HandleAuthEvent(models.AuthTokenRefreshed, refreshed)

	_, err := m.Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-9", client.lastToken)

	client.err = auth.ErrSessionRevoked
	_, err = m.Validate(context.Background())
	assert.ErrorIs(t, err, auth.ErrSessionRevoked)
}
