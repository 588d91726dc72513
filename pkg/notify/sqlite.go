package notify

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const createNotificationsTable = `CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at INTEGER NOT NULL
)`

// SQLite appends every notification as a row of the notifications table.
// Rows are never read back by the scheduler.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite notifier: db path required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode = wal;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(createNotificationsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Name() string {
	return "sqlite"
}

func (s *SQLite) Notify(subject, message string) error {
	_, err := s.db.Exec(
		`INSERT INTO notifications(subject, message, created_at) VALUES(?, ?, ?)`,
		subject, message, s.now().Unix())
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
