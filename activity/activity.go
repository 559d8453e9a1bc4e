// Package activity keeps an append-only audit trail of applied store
// mutations in SQLite. The log is history only; project state is never
// rebuilt from it.
package activity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/GoCodeAlone/sitetrack/events"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS activity (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id   TEXT NOT NULL UNIQUE,
	type       TEXT NOT NULL,
	project_id TEXT NOT NULL,
	task_id    TEXT NOT NULL DEFAULT '',
	parent_id  TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS activity_project ON activity (project_id, seq);
`

// Entry is one recorded mutation.
type Entry struct {
	Seq       int64       `json:"seq"`
	EventID   string      `json:"event_id"`
	Type      events.Type `json:"type"`
	ProjectID string      `json:"project_id"`
	TaskID    string      `json:"task_id,omitempty"`
	ParentID  string      `json:"parent_id,omitempty"`
	Title     string      `json:"title,omitempty"`
	Status    string      `json:"status,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	ProjectID string
	TaskID    string
	Type      events.Type
	Limit     int
}

// Log records and lists activity entries.
type Log interface {
	Record(ctx context.Context, ev *events.Event) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// SQLiteLog persists activity in a SQLite database.
type SQLiteLog struct {
	db *sql.DB
}

var _ Log = (*SQLiteLog)(nil)

// NewSQLiteLog opens (or creates) the database at dbPath and ensures the
// activity table exists. The caller is responsible for calling Close.
func NewSQLiteLog(dbPath string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteLog{db: db}, nil
}

// EntryFromEvent converts a bus event into an unpersisted entry (Seq 0).
func EntryFromEvent(ev *events.Event) Entry {
	return Entry{
		EventID:   ev.ID,
		Type:      ev.Type,
		ProjectID: ev.ProjectID,
		TaskID:    ev.TaskID,
		ParentID:  ev.ParentID,
		Title:     ev.Title,
		Status:    ev.Status,
		CreatedAt: ev.Timestamp,
	}
}

// Close releases the underlying database connection.
func (l *SQLiteLog) Close() error { return l.db.Close() }

// Record appends ev. Recording the same event twice is a no-op.
func (l *SQLiteLog) Record(ctx context.Context, ev *events.Event) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO activity
			(event_id, type, project_id, task_id, parent_id, title, status, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		ev.ID, string(ev.Type), ev.ProjectID, ev.TaskID, ev.ParentID,
		ev.Title, ev.Status, ev.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", ev.Type, err)
	}
	return nil
}

// List returns entries matching filter, newest first.
func (l *SQLiteLog) List(ctx context.Context, filter Filter) ([]Entry, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT seq, event_id, type, project_id, task_id, parent_id, title, status, created_at
		FROM activity WHERE 1=1`)
	args := []any{}

	if filter.ProjectID != "" {
		q.WriteString(" AND project_id=?")
		args = append(args, filter.ProjectID)
	}
	if filter.TaskID != "" {
		q.WriteString(" AND task_id=?")
		args = append(args, filter.TaskID)
	}
	if filter.Type != "" {
		q.WriteString(" AND type=?")
		args = append(args, string(filter.Type))
	}
	q.WriteString(" ORDER BY seq DESC")
	if filter.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
	}

	rows, err := l.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var typ string
		if err := rows.Scan(&e.Seq, &e.EventID, &typ, &e.ProjectID, &e.TaskID,
			&e.ParentID, &e.Title, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = events.Type(typ)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Attach subscribes log to every project on bus and returns the
// unsubscribe function.
func Attach(bus events.Bus, log Log) (unsubscribe func()) {
	return bus.Subscribe(events.AllProjects, log.Record)
}
