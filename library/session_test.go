package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-client/internal/logging"
)

func TestLoginRequiresBothFields(t *testing.T) {
	b := newBackend(t)
	mgr := testManager(t, b.URL, &recordingUI{})
	ctx := context.Background()

	for _, creds := range [][2]string{{"", "pw"}, {"mia", ""}, {"", ""}} {
		res := mgr.Session.Login(ctx, creds[0], creds[1])
		assert.False(t, res.Success)
		assert.Equal(t, "Enter username and password", res.Error)
	}
	assert.Zero(t, b.requests.Load())
	_, ok := mgr.Session.CurrentUser()
	assert.False(t, ok)
}

func TestLoginInvalidCredentials(t *testing.T) {
	b := newBackend(t)
	mgr := testManager(t, b.URL, &recordingUI{})

	res := mgr.Session.Login(context.Background(), "mia", "wrong")
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid credentials", res.Error)

	_, ok := mgr.Session.CurrentUser()
	assert.False(t, ok)
	assert.Empty(t, mgr.Session.AccessToken())
	assert.Empty(t, mgr.Session.RefreshToken())
}

func TestLoginPersistsSession(t *testing.T) {
	b := newBackend(t)
	db := tempDB(t)
	raw := NewClient(b.URL, 0, logging.Discard())

	store := NewSessionStore(db, raw, logging.Discard())
	require.NoError(t, store.Initialize())
	res := store.Login(context.Background(), "lena", "librarian-pass")
	require.True(t, res.Success, res.Error)

	u, ok := store.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "lena", u.Username)
	assert.Equal(t, RoleLibrarian, u.Role)
	assert.NotEmpty(t, store.AccessToken())
	assert.NotEmpty(t, store.RefreshToken())

	sess, ok := store.Get()
	require.True(t, ok)
	exp, ok := sess.AccessExpiresAt()
	require.True(t, ok)
	assert.False(t, exp.IsZero())

	// A second store over the same storage starts logged in.
	again := NewSessionStore(db, raw, logging.Discard())
	require.NoError(t, again.Initialize())
	u2, ok := again.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, u, u2)
}

func TestRegister(t *testing.T) {
	b := newBackend(t)
	mgr := testManager(t, b.URL, &recordingUI{})
	ctx := context.Background()

	res := mgr.Session.Register(ctx, RegisterInput{Username: "", Password: "pw"})
	assert.Equal(t, Result{Error: "Enter username and password"}, res)
	assert.Zero(t, b.requests.Load())

	res = mgr.Session.Register(ctx, RegisterInput{Username: "noor", Email: "noor@example.com", Password: "s3cret"})
	require.True(t, res.Success, res.Error)
	u, ok := mgr.Session.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "noor", u.Username)
	assert.Equal(t, RoleMember, u.Role)

	res = mgr.Session.Register(ctx, RegisterInput{Username: "mia", Password: "x"})
	assert.False(t, res.Success)
	assert.Equal(t, "A user with that username already exists.", res.Error)
}

func TestLogout(t *testing.T) {
	b := newBackend(t)
	mgr := testManager(t, b.URL, &recordingUI{})
	loginAs(t, mgr, "mia", "member-pass")

	redirects := 0
	mgr.Session.OnLoginRedirect(func() { redirects++ })
	before := b.requests.Load()

	mgr.Session.Logout()

	assert.Equal(t, before, b.requests.Load())
	assert.Equal(t, 1, redirects)
	_, ok := mgr.Session.CurrentUser()
	assert.False(t, ok)
	_, ok, err := mgr.db.LoadSession()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, mgr.Session.RefreshToken())
}

func TestExpiredAccessIsRefreshedOnce(t *testing.T) {
	b := newBackend(t)
	mgr := testManager(t, b.URL, &recordingUI{})
	loginAs(t, mgr, "mia", "member-pass")
	old := mgr.Session.AccessToken()

	b.ExpireAccessTokens()
	require.NoError(t, mgr.Catalog.FetchBooks(context.Background()))

	assert.EqualValues(t, 1, b.RefreshCalls())
	assert.NotEqual(t, old, mgr.Session.AccessToken())
	assert.Len(t, mgr.Catalog.AllBooks(), 2)

	// The refreshed token sticks.
	require.NoError(t, mgr.Catalog.FetchGenres(context.Background()))
	assert.EqualValues(t, 1, b.RefreshCalls())
}

func TestFailedRefreshLogsOut(t *testing.T) {
	b := newBackend(t)
	mgr := testManager(t, b.URL, &recordingUI{})
	loginAs(t, mgr, "mia", "member-pass")

	redirects := 0
	mgr.Session.OnLoginRedirect(func() { redirects++ })

	b.ExpireAccessTokens()
	b.FailRefresh(true)
	err := mgr.Catalog.FetchBooks(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, redirects)
	_, ok := mgr.Session.CurrentUser()
	assert.False(t, ok)
	assert.Empty(t, mgr.Session.AccessToken())
	assert.Empty(t, mgr.Catalog.AllBooks())
}
