package library

import (
	"context"
	"log/slog"
	"sync"
)

const (
	loginPath    = "/accounts/login/"
	registerPath = "/accounts/register/"

	missingCredentialsMessage = "Enter username and password"
)

// SessionContext is the explicit authentication context handed to the client and the
// views. Reads of tokens go to persisted state, so every request sees the latest refresh.
type SessionContext interface {
	Get() (Session, bool)
	AccessToken() string
	RefreshToken() string
	SetFromLogin(Session) error
	SetAccess(token string) error
	Clear() error
}

// SessionStorage persists the session triple. *Database implements it.
type SessionStorage interface {
	LoadSession() (Session, bool, error)
	SaveSession(Session) error
	SetAccessToken(token string) error
	AccessToken() (string, error)
	RefreshToken() (string, error)
	ClearSession() error
}

// Result is what Login and Register report. They never return a Go error.
type Result struct {
	Success bool
	Error   string
}

// SessionStore owns the single authenticated identity of the running client and its
// persistence. It is the only writer of the stored triple.
type SessionStore struct {
	storage SessionStorage
	api     *Client
	log     *slog.Logger

	mu       sync.RWMutex
	current  *User
	redirect func()
}

// NewSessionStore builds a store that authenticates through api, which should be the
// credential-less client.
func NewSessionStore(storage SessionStorage, api *Client, log *slog.Logger) *SessionStore {
	return &SessionStore{
		storage: storage,
		api:     api,
		log:     log.With("component", "session"),
	}
}

// OnLoginRedirect registers what "go to the login entry point" means for the caller.
func (s *SessionStore) OnLoginRedirect(fn func()) {
	s.mu.Lock()
	s.redirect = fn
	s.mu.Unlock()
}

// RedirectToLogin fires the registered login redirect, if any.
func (s *SessionStore) RedirectToLogin() {
	s.mu.RLock()
	fn := s.redirect
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Initialize rehydrates the current user from persisted state. It must run before any
// view so an authenticated session is never observed as logged out.
func (s *SessionStore) Initialize() error {
	sess, ok, err := s.storage.LoadSession()
	if err != nil {
		s.log.Error("load_session_failed", "error", err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		u := sess.User
		s.current = &u
	} else {
		s.current = nil
	}
	return nil
}

// CurrentUser is the in-memory identity, if logged in.
func (s *SessionStore) CurrentUser() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return User{}, false
	}
	return *s.current, true
}

// ------------------ SessionContext ------------------

func (s *SessionStore) Get() (Session, bool) {
	u, ok := s.CurrentUser()
	if !ok {
		return Session{}, false
	}
	return Session{Access: s.AccessToken(), Refresh: s.RefreshToken(), User: u}, true
}

func (s *SessionStore) AccessToken() string {
	t, err := s.storage.AccessToken()
	if err != nil {
		s.log.Error("read_access_token_failed", "error", err)
		return ""
	}
	return t
}

func (s *SessionStore) RefreshToken() string {
	t, err := s.storage.RefreshToken()
	if err != nil {
		s.log.Error("read_refresh_token_failed", "error", err)
		return ""
	}
	return t
}

// SetFromLogin persists the whole triple and then publishes the user.
func (s *SessionStore) SetFromLogin(sess Session) error {
	if err := s.storage.SaveSession(sess); err != nil {
		return err
	}
	u := sess.User
	s.mu.Lock()
	s.current = &u
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) SetAccess(token string) error {
	return s.storage.SetAccessToken(token)
}

// Clear drops persisted and in-memory state without redirecting.
func (s *SessionStore) Clear() error {
	err := s.storage.ClearSession()
	if err != nil {
		s.log.Error("clear_session_failed", "error", err)
	}
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return err
}

// ------------------ Transitions ------------------

// Login authenticates with username and password. Empty fields fail without a call.
func (s *SessionStore) Login(ctx context.Context, username, password string) Result {
	if username == "" || password == "" {
		return Result{Error: missingCredentialsMessage}
	}
	return s.authenticate(ctx, loginPath, credentials{Username: username, Password: password})
}

// Register creates an account and logs into it.
func (s *SessionStore) Register(ctx context.Context, in RegisterInput) Result {
	if in.Username == "" || in.Password == "" {
		return Result{Error: missingCredentialsMessage}
	}
	return s.authenticate(ctx, registerPath, in)
}

// Logout clears the session and redirects to login. It makes no network call.
func (s *SessionStore) Logout() {
	_ = s.Clear()
	s.RedirectToLogin()
}

func (s *SessionStore) authenticate(ctx context.Context, path string, body any) Result {
	l := s.log.With("path", path)

	resp, err := s.api.Post(ctx, path, body)
	if err != nil {
		l.Warn("authenticate_failed", "error", err)
		return Result{Error: ErrorMessage(err, genericErrorMessage)}
	}

	var out authResponse
	if err := resp.Decode(&out); err != nil {
		l.Error("authenticate_failed", "reason", "bad response body", "error", err)
		return Result{Error: genericErrorMessage}
	}
	if out.Access == "" || out.Refresh == "" {
		l.Error("authenticate_failed", "reason", "response is missing tokens")
		return Result{Error: genericErrorMessage}
	}

	if err := s.SetFromLogin(Session{Access: out.Access, Refresh: out.Refresh, User: out.User}); err != nil {
		l.Error("save_session_failed", "error", err)
		return Result{Error: genericErrorMessage}
	}
	l.Info("authenticated", "username", out.User.Username, "role", out.User.Role)
	return Result{Success: true}
}
