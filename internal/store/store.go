// Package store implements the durable notification store: a single SQLite
// table keyed by id with read/unread lifecycle operations.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/bryonbaker/gh-notifier/internal/models"
)

// Store is the C4 contract. The Notification Store is shared between the
// Sync Engine, the Control API, and the TUI; every caller goes through the
// same handle, which itself serializes on the database/sql connection pool
// (capped at one open connection) rather than a separate mutex.
type Store interface {
	UpsertIfNew(n *models.StoredNotification) (bool, error)
	ListAll() ([]*models.StoredNotification, error)
	ListUnread() ([]*models.StoredNotification, error)
	MarkAsRead(id string) error
	MarkAllAsRead() error
	Delete(id string) error
	Count() (int, error)
	Exists(id string) (bool, error)
	IsRead(id string) (bool, error)
	DatabaseSizeBytes() (int64, error)
	DeleteReceivedBefore(cutoffRFC3339 string) (int64, error)
	IncrementalVacuum() error
	Close() error
}

// SQLiteStore implements Store using SQLite with the go-sqlite3 driver.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (or creates) a SQLite database at dbPath, applies the PRAGMAs
// required for correct single-writer operation, and creates the
// notifications table if it does not already exist.
func Open(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// A single connection makes WAL mode correct for an embedded database
	// and serializes every caller (engine, control API, CLI) through Go's
	// own sql.DB connection queue instead of a bespoke mutex.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.applyPragmas(); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying pragmas: %w", err)
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("sqlite notification store initialised", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLiteStore) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA auto_vacuum=INCREMENTAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *SQLiteStore) createSchema() error {
	const createTable = `
CREATE TABLE IF NOT EXISTS notifications (
    id             TEXT PRIMARY KEY,
    title          TEXT NOT NULL,
    body           TEXT NOT NULL,
    url            TEXT NOT NULL,
    repository     TEXT NOT NULL,
    reason         TEXT NOT NULL,
    subject_type   TEXT NOT NULL,
    is_read        BOOL NOT NULL DEFAULT 0,
    received_at    TEXT NOT NULL,
    marked_read_at TEXT
);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_notifications_received_at ON notifications (received_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_is_read ON notifications (is_read, received_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_repository ON notifications (repository);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_reason ON notifications (reason);`,
	}

	if _, err := s.db.Exec(createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertIfNew inserts n and reports true iff the row did not previously
// exist. The exists-check and insert are a single atomic statement
// (INSERT ... ON CONFLICT DO NOTHING, read back via RowsAffected) so that
// concurrent recovery and fresh-poll dispatch can never duplicate a
// notification -- a stronger guarantee than an exists-then-insert pair,
// which spec §5's linearizability requirement rules out here.
func (s *SQLiteStore) UpsertIfNew(n *models.StoredNotification) (bool, error) {
	const query = `
INSERT INTO notifications (id, title, body, url, repository, reason, subject_type, is_read, received_at, marked_read_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING`

	result, err := s.db.Exec(query,
		n.ID, n.Title, n.Body, n.URL, n.Repository, n.Reason, n.SubjectType,
		boolToInt(n.IsRead), n.ReceivedAt, nullableString(n.MarkedReadAt),
	)
	if err != nil {
		return false, fmt.Errorf("upsert notification %s: %w", n.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected for %s: %w", n.ID, err)
	}
	return affected > 0, nil
}

// ListAll returns every stored notification, ordered by received_at DESC.
func (s *SQLiteStore) ListAll() ([]*models.StoredNotification, error) {
	return s.query(`SELECT id, title, body, url, repository, reason, subject_type, is_read, received_at, marked_read_at
FROM notifications ORDER BY received_at DESC`)
}

// ListUnread returns unread stored notifications, ordered by received_at DESC.
func (s *SQLiteStore) ListUnread() ([]*models.StoredNotification, error) {
	return s.query(`SELECT id, title, body, url, repository, reason, subject_type, is_read, received_at, marked_read_at
FROM notifications WHERE is_read = 0 ORDER BY received_at DESC`)
}

// MarkAsRead sets is_read=true, marked_read_at=now for the given id.
func (s *SQLiteStore) MarkAsRead(id string) error {
	const query = `UPDATE notifications SET is_read = 1, marked_read_at = ? WHERE id = ?`
	_, err := s.db.Exec(query, nowRFC3339(), id)
	if err != nil {
		return fmt.Errorf("mark notification %s as read: %w", id, err)
	}
	return nil
}

// MarkAllAsRead sets is_read=true, marked_read_at=now for every unread row.
func (s *SQLiteStore) MarkAllAsRead() error {
	const query = `UPDATE notifications SET is_read = 1, marked_read_at = ? WHERE is_read = 0`
	_, err := s.db.Exec(query, nowRFC3339())
	if err != nil {
		return fmt.Errorf("mark all notifications as read: %w", err)
	}
	return nil
}

// Delete removes the notification with the given id.
func (s *SQLiteStore) Delete(id string) error {
	const query = `DELETE FROM notifications WHERE id = ?`
	_, err := s.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("delete notification %s: %w", id, err)
	}
	return nil
}

// Count returns the total number of stored notifications.
func (s *SQLiteStore) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notifications`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

// Exists reports whether a notification with the given id is present.
func (s *SQLiteStore) Exists(id string) (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("checking existence of notification %s: %w", id, err)
	}
	return count > 0, nil
}

// IsRead reports whether the notification with the given id is marked read.
func (s *SQLiteStore) IsRead(id string) (bool, error) {
	var isRead int
	err := s.db.QueryRow(`SELECT is_read FROM notifications WHERE id = ?`, id).Scan(&isRead)
	if err != nil {
		return false, fmt.Errorf("checking read status of notification %s: %w", id, err)
	}
	return isRead != 0, nil
}

// DatabaseSizeBytes returns the current size of the database file in bytes,
// computed as page_count * page_size.
func (s *SQLiteStore) DatabaseSizeBytes() (int64, error) {
	var pageCount int64
	if err := s.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("page_count: %w", err)
	}
	var pageSize int64
	if err := s.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("page_size: %w", err)
	}
	return pageCount * pageSize, nil
}

// DeleteReceivedBefore removes every notification received strictly before
// cutoff and reports how many rows were removed. Used by the retention loop
// to bound the store's growth.
func (s *SQLiteStore) DeleteReceivedBefore(cutoffRFC3339 string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM notifications WHERE received_at < ?`, cutoffRFC3339)
	if err != nil {
		return 0, fmt.Errorf("delete notifications received before %s: %w", cutoffRFC3339, err)
	}
	return result.RowsAffected()
}

// IncrementalVacuum reclaims pages freed by deletes under auto_vacuum=INCREMENTAL.
func (s *SQLiteStore) IncrementalVacuum() error {
	if _, err := s.db.Exec("PRAGMA incremental_vacuum"); err != nil {
		return fmt.Errorf("incremental vacuum: %w", err)
	}
	return nil
}

// query runs a SELECT returning the full notification column set and scans
// every row.
func (s *SQLiteStore) query(sqlQuery string, args ...interface{}) ([]*models.StoredNotification, error) {
	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var results []*models.StoredNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return results, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row scanner) (*models.StoredNotification, error) {
	var n models.StoredNotification
	var isRead int
	var markedReadAt sql.NullString

	if err := row.Scan(
		&n.ID, &n.Title, &n.Body, &n.URL, &n.Repository, &n.Reason, &n.SubjectType,
		&isRead, &n.ReceivedAt, &markedReadAt,
	); err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}

	n.IsRead = isRead != 0
	if markedReadAt.Valid {
		v := markedReadAt.String
		n.MarkedReadAt = &v
	}
	return &n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
