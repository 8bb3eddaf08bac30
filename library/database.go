package library

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Keys of the persisted session triple.
const (
	keyAccess  = "token"
	keyRefresh = "refresh"
	keyUser    = "user"
)

// Database is the client's durable key/value storage, backed by SQLite.
// The session triple is only ever written or cleared as a whole.
type Database struct {
	db *sql.DB

	getStmt *sql.Stmt
	putStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.getStmt != nil {
		d.getStmt.Close()
	}
	if d.putStmt != nil {
		d.putStmt.Close()
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.getStmt, err = d.db.Prepare(`SELECT value FROM session WHERE key=?`); err != nil {
		return err
	}
	if d.putStmt, err = d.db.Prepare(`INSERT INTO session(key,value,updated_at) VALUES(?,?,CURRENT_TIMESTAMP)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Session triple
// ---------------------------------------------------------------------------

// Get returns the stored value for key, or "" when absent.
func (d *Database) Get(key string) (string, error) {
	var v string
	err := d.getStmt.QueryRow(key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

// AccessToken is the persisted access credential, "" when logged out.
func (d *Database) AccessToken() (string, error) { return d.Get(keyAccess) }

// RefreshToken is the persisted refresh credential, "" when logged out.
func (d *Database) RefreshToken() (string, error) { return d.Get(keyRefresh) }

// SaveSession writes access, refresh and user in one transaction.
func (d *Database) SaveSession(s Session) error {
	userJSON, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	put := tx.Stmt(d.putStmt)
	for _, kv := range [][2]string{
		{keyAccess, s.Access},
		{keyRefresh, s.Refresh},
		{keyUser, string(userJSON)},
	} {
		if _, err := put.Exec(kv[0], kv[1]); err != nil {
			return fmt.Errorf("write %s: %w", kv[0], err)
		}
	}
	return tx.Commit()
}

// SetAccessToken replaces the access credential after a refresh. It refuses to
// resurrect a cleared session so the triple never ends up half-present.
func (d *Database) SetAccessToken(token string) error {
	res, err := d.db.Exec(`UPDATE session SET value=?, updated_at=CURRENT_TIMESTAMP WHERE key=?`, token, keyAccess)
	if err != nil {
		return fmt.Errorf("write %s: %w", keyAccess, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no session to update")
	}
	return nil
}

// LoadSession returns the persisted session. ok is false unless both the access
// token and the user record are present.
func (d *Database) LoadSession() (s Session, ok bool, err error) {
	rows, err := d.db.Query(`SELECT key, value FROM session WHERE key IN (?,?,?)`, keyAccess, keyRefresh, keyUser)
	if err != nil {
		return Session{}, false, err
	}
	defer rows.Close()

	var userJSON string
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Session{}, false, err
		}
		switch k {
		case keyAccess:
			s.Access = v
		case keyRefresh:
			s.Refresh = v
		case keyUser:
			userJSON = v
		}
	}
	if err := rows.Err(); err != nil {
		return Session{}, false, err
	}

	if s.Access == "" || userJSON == "" {
		return Session{}, false, nil
	}
	if err := json.Unmarshal([]byte(userJSON), &s.User); err != nil {
		return Session{}, false, fmt.Errorf("decode user: %w", err)
	}
	return s, true, nil
}

// ClearSession removes all three keys in one transaction.
func (d *Database) ClearSession() error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM session WHERE key IN (?,?,?)`, keyAccess, keyRefresh, keyUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return tx.Commit()
}
