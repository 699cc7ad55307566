package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/authflow/internal/config"
	"github.com/atinyakov/authflow/internal/models"
	"github.com/atinyakov/authflow/internal/session"
	"github.com/atinyakov/authflow/internal/storage"
)

// scriptedAPI is a minimal session.AuthAPI double for binding tests.
type scriptedAPI struct {
	loginErr error
	profile  models.Profile
}

func (s *scriptedAPI) Login(ctx context.Context, creds models.Credentials) (*models.TokenPair, error) {
	return nil, s.loginErr
}
func (s *scriptedAPI) Signup(ctx context.Context, creds models.Credentials) (*models.TokenPair, error) {
	return nil, s.loginErr
}
func (s *scriptedAPI) Logout(ctx context.Context) error { return nil }
func (s *scriptedAPI) CheckSession(ctx context.Context) (bool, error) {
	return false, nil
}
func (s *scriptedAPI) FetchProfile(ctx context.Context) (models.Profile, error) {
	return s.profile, nil
}
func (s *scriptedAPI) UpdateProfile(ctx context.Context, updates models.Profile) (models.Profile, error) {
	return updates, nil
}
func (s *scriptedAPI) UpdatePassword(ctx context.Context, current, updated string) error {
	return nil
}
func (s *scriptedAPI) Refresh(ctx context.Context) bool { return true }
func (s *scriptedAPI) OAuthRedirectURL(provider, redirectURI string) (string, error) {
	return "https://api.test/login/" + provider, nil
}

func newTestStore(t *testing.T, api *scriptedAPI) *Store {
	t.Helper()
	engine, err := session.New(
		config.Config{APIBaseURL: "http://api.test"},
		api,
		storage.New(nil, config.CookieFirst),
		nil, nil,
	)
	require.NoError(t, err)
	return New(engine)
}

func TestSubscribe_ReceivesSnapshotAndTransitions(t *testing.T) {
	s := newTestStore(t, &scriptedAPI{profile: models.Profile{"login": "alice"}})

	var states []session.Session
	unsub := s.Subscribe(func(sess session.Session) {
		states = append(states, sess)
	})
	defer unsub()

	require.Len(t, states, 1, "subscriber gets the current snapshot immediately")
	assert.False(t, states[0].Authenticated)

	res := s.Login(context.Background(), "alice", "pw")
	require.True(t, res.Success)

	last := states[len(states)-1]
	assert.True(t, last.Authenticated)
	assert.Equal(t, "alice", last.Profile["login"])
	assert.Equal(t, last, s.Snapshot())
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := newTestStore(t, &scriptedAPI{})

	calls := 0
	unsub := s.Subscribe(func(session.Session) { calls++ })
	unsub()

	s.Login(context.Background(), "a", "b")
	assert.Equal(t, 1, calls, "only the initial snapshot delivery")
}

func TestSnapshot_NeverStaleAuthenticatedWithoutProfile(t *testing.T) {
	api := &scriptedAPI{profile: models.Profile{"login": "alice"}}
	s := newTestStore(t, api)

	require.True(t, s.Login(context.Background(), "alice", "pw").Success)
	require.True(t, s.Snapshot().Authenticated)

	s.Logout(context.Background())

	snap := s.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.Profile)
}

func TestActionsDelegate(t *testing.T) {
	s := newTestStore(t, &scriptedAPI{profile: models.Profile{"login": "bob"}})

	assert.True(t, s.Refresh(context.Background()))

	res := s.UpdatePassword(context.Background(), "old", "new")
	assert.True(t, res.Success)

	u, err := s.OAuthURL("google")
	require.NoError(t, err)
	assert.Contains(t, u, "google")
}
