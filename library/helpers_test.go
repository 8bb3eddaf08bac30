package library

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"library-client/internal/fakeapi"
	"library-client/internal/logging"
)

// recordingUI answers every confirmation with confirm and keeps what it was shown.
type recordingUI struct {
	mu       sync.Mutex
	confirm  bool
	prompts  []string
	messages []string
}

func (u *recordingUI) Confirm(prompt string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.prompts = append(u.prompts, prompt)
	return u.confirm
}

func (u *recordingUI) Alert(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.messages = append(u.messages, msg)
}

func (u *recordingUI) last() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.messages) == 0 {
		return ""
	}
	return u.messages[len(u.messages)-1]
}

// backend is a fake API served over HTTP with a few seeded records.
type backend struct {
	*fakeapi.Server
	URL      string
	requests atomic.Int64

	fiction, science uint
	dune, sapiens    uint
	memberID         uint
	librarianID      uint
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	api, err := fakeapi.New(fakeapi.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { api.Close() })

	b := &backend{Server: api}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.requests.Add(1)
		api.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	b.URL = srv.URL + fakeapi.Prefix

	b.memberID, err = api.CreateUser("mia", "member-pass", "member")
	require.NoError(t, err)
	b.librarianID, err = api.CreateUser("lena", "librarian-pass", "librarian")
	require.NoError(t, err)
	_, err = api.CreateUser("ada", "admin-pass", "admin")
	require.NoError(t, err)

	b.fiction, err = api.CreateGenre("Fiction")
	require.NoError(t, err)
	b.science, err = api.CreateGenre("Science")
	require.NoError(t, err)
	b.dune, err = api.CreateBook("Dune", "Frank Herbert", b.fiction, "9780441013593", true)
	require.NoError(t, err)
	b.sapiens, err = api.CreateBook("Sapiens", "Yuval Noah Harari", b.science, "9780062316097", false)
	require.NoError(t, err)
	return b
}

func testManager(t *testing.T, baseURL string, ui UI) *LibraryManager {
	t.Helper()
	mgr, err := newManager(tempDB(t), NewClient(baseURL, 0, logging.Discard()), logging.Discard(), ui)
	require.NoError(t, err)
	return mgr
}

func loginAs(t *testing.T, mgr *LibraryManager, username, password string) {
	t.Helper()
	res := mgr.Session.Login(context.Background(), username, password)
	require.True(t, res.Success, res.Error)
}
