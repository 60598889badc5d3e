package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes access through Go's pool, so a daemon racing a user
	// command waits instead of hitting "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// RecordNotification appends a notification event to the history.
func (s *SQLiteStore) RecordNotification(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = newULID()
	}
	if n.FiredAt.IsZero() {
		n.FiredAt = time.Now().UTC()
	}

	var sessionID sql.NullInt64
	if n.SessionID != nil {
		sessionID = sql.NullInt64{Int64: int64(*n.SessionID), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO notifications
		(id, fired_at, kind, project, session_id, title, message, delivered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.FiredAt.Format(time.RFC3339), string(n.Kind), n.Project,
		sessionID, n.Title, n.Message, boolToInt(n.Delivered))
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

// ListNotifications returns the most recent notification events,
// newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, fired_at, kind, project, session_id, title, message, delivered
		FROM notifications ORDER BY fired_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var (
			n         Notification
			firedAt   string
			sessionID sql.NullInt64
			delivered int
		)
		if err := rows.Scan(&n.ID, &firedAt, &n.Kind, &n.Project, &sessionID, &n.Title, &n.Message, &delivered); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, firedAt); err == nil {
			n.FiredAt = t
		}
		if sessionID.Valid {
			v := int(sessionID.Int64)
			n.SessionID = &v
		}
		n.Delivered = delivered != 0
		out = append(out, &n)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
