package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Database wraps a *sql.DB holding session-scoped key/value rows. It is safe
// for concurrent use because the underlying *sql.DB is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements
	getValueStmt   *sql.Stmt
	setValueStmt   *sql.Stmt
	touchStmt      *sql.Stmt
	endSessionStmt *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures all required tables and indices exist. Caller should Close() it
// when finished.
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	// foreign_keys must hold on every pooled connection, so it goes in the DSN
	conn, err := sql.Open("sqlite3", dbPath+"?mode=rwc&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works better with few connections
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Debug("Session database initialized")
	return db, nil
}

// createTables is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	sessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_activity DATETIME NOT NULL
	);`

	valuesTable := `
	CREATE TABLE IF NOT EXISTS session_values (
		session_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
		PRIMARY KEY (session_id, key)
	);`

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_sessions_activity ON sessions(last_activity);",
	}

	for _, stmt := range append([]string{sessionsTable, valuesTable}, indices...) {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) prepareStatements() error {
	var err error

	db.getValueStmt, err = db.conn.Prepare(`
		SELECT value FROM session_values WHERE session_id = ? AND key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get value statement: %w", err)
	}

	db.setValueStmt, err = db.conn.Prepare(`
		INSERT INTO session_values (session_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("failed to prepare set value statement: %w", err)
	}

	db.touchStmt, err = db.conn.Prepare(`
		INSERT INTO sessions (id, last_activity) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET last_activity = excluded.last_activity`)
	if err != nil {
		return fmt.Errorf("failed to prepare touch statement: %w", err)
	}

	db.endSessionStmt, err = db.conn.Prepare(`DELETE FROM sessions WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare end session statement: %w", err)
	}

	return nil
}

// Close releases prepared statements and the connection pool
func (db *Database) Close() error {
	for _, stmt := range []*sql.Stmt{db.getValueStmt, db.setValueStmt, db.touchStmt, db.endSessionStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return db.conn.Close()
}

// Scope returns a Storage bound to one session
func (db *Database) Scope(sessionID string) *SessionStorage {
	return &SessionStorage{db: db, sessionID: sessionID}
}

// EndSession removes a session and all of its values
func (db *Database) EndSession(sessionID string) error {
	if _, err := db.endSessionStmt.Exec(sessionID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	db.logger.WithField("session_id", sessionID).Info("Session ended")
	return nil
}

// PruneIdle deletes sessions whose last activity is older than maxIdle and
// returns how many were removed
func (db *Database) PruneIdle(maxIdle time.Duration) (int64, error) {
	if maxIdle <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-maxIdle).UTC()
	res, err := db.conn.Exec("DELETE FROM sessions WHERE last_activity < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune idle sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		db.logger.WithField("count", n).Info("Pruned idle sessions")
	}
	return n, nil
}

// SessionCount returns the number of stored sessions
func (db *Database) SessionCount() (int, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (db *Database) get(sessionID, key string) (string, bool, error) {
	var value string
	err := db.getValueStmt.QueryRow(sessionID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (db *Database) set(sessionID, key, value string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Stmt(db.touchStmt).Exec(sessionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if _, err := tx.Stmt(db.setValueStmt).Exec(sessionID, key, value); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return tx.Commit()
}
