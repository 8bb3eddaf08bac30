package library

import (
	"fmt"
	"log/slog"

	"library-client/internal/config"
)

// LibraryManager wires storage, the API client, the session store and the views
// together, keeping CLI code simple.
type LibraryManager struct {
	db  *Database
	api *Client

	Session   *SessionStore
	Catalog   *CatalogView
	Issuances *IssuanceView
	Admin     *AdminView
}

// NewLibraryManager opens the session database under cfg.StateDir and rehydrates any
// persisted session before the views are built.
func NewLibraryManager(cfg config.Config, log *slog.Logger, ui UI) (*LibraryManager, error) {
	db, err := NewDatabase(cfg.SessionDBPath())
	if err != nil {
		return nil, err
	}
	return newManager(db, NewClient(cfg.APIURL, cfg.HTTPTimeout, log), log, ui)
}

func newManager(db *Database, raw *Client, log *slog.Logger, ui UI) (*LibraryManager, error) {
	store := NewSessionStore(db, raw, log)
	if err := store.Initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}

	api := raw.WithSession(store, store.RedirectToLogin)
	return &LibraryManager{
		db:        db,
		api:       api,
		Session:   store,
		Catalog:   NewCatalogView(api, store, ui, log),
		Issuances: NewIssuanceView(api, store, ui, log),
		Admin:     NewAdminView(api, store, ui, log),
	}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// API is the authorized client shared by the views.
func (lm *LibraryManager) API() *Client { return lm.api }

// Role is the current user's role, "" when logged out.
func (lm *LibraryManager) Role() Role {
	u, ok := lm.Session.CurrentUser()
	if !ok {
		return ""
	}
	return u.Role
}

// ------------------ Utilities ------------------

// PrettyBook formats a book for lists.
func PrettyBook(b Book, genre string) string {
	status := "Available"
	if !b.Available {
		status = "Issued"
	}
	return fmt.Sprintf("%-5d %-30s %-25s %-15s %-10s", b.ID, truncate(b.Title, 30), truncate(b.Author, 25), truncate(genre, 15), status)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
