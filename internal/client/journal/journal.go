// Package journal keeps a sqlite record of every sync round.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openmined/treesync/internal/client/session"
	"github.com/openmined/treesync/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_rounds (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL, -- UTC, fixed width so text order is time order
    duration_ms INTEGER NOT NULL,
    mode TEXT NOT NULL,
    kind TEXT NOT NULL,
    fallback INTEGER NOT NULL,
    base_digest TEXT NOT NULL,
    result_digest TEXT NOT NULL,
    file_count INTEGER NOT NULL,
    added INTEGER NOT NULL,
    modified INTEGER NOT NULL,
    deleted INTEGER NOT NULL,
    error TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rounds_started_at ON sync_rounds(started_at);
`

// fractional seconds are zero padded, RFC3339Nano trims them
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var ErrNotOpen = errors.New("sync journal not open")

// Entry is one stored round.
type Entry struct {
	ID           string        `db:"id"`
	StartedAt    time.Time     `db:"-"`
	Duration     time.Duration `db:"-"`
	Mode         string        `db:"mode"`
	Kind         string        `db:"kind"`
	Fallback     bool          `db:"fallback"`
	BaseDigest   string        `db:"base_digest"`
	ResultDigest string        `db:"result_digest"`
	FileCount    int           `db:"file_count"`
	Added        int           `db:"added"`
	Modified     int           `db:"modified"`
	Deleted      int           `db:"deleted"`
	Error        string        `db:"error"`
}

func (e *Entry) Failed() bool {
	return e.Error != ""
}

func (e *Entry) TotalChanges() int {
	return e.Added + e.Modified + e.Deleted
}

type dbEntry struct {
	Entry
	StartedAt  string `db:"started_at"`
	DurationMs int64  `db:"duration_ms"`
}

// Journal implements session.Recorder.
type Journal struct {
	db   *sqlx.DB
	path string
}

var _ session.Recorder = (*Journal)(nil)

func New(path string) *Journal {
	return &Journal{path: path}
}

func (j *Journal) Open() error {
	if j.db != nil {
		return fmt.Errorf("sync journal already open")
	}

	conn, err := db.NewSqliteDB(db.WithPath(j.path), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open sync journal: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return fmt.Errorf("initialize journal schema: %w", err)
	}

	j.db = conn
	return nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return ErrNotOpen
	}
	err := j.db.Close()
	j.db = nil
	if err != nil {
		slog.Error("sync journal close", "error", err)
		return err
	}
	return nil
}

func (j *Journal) Record(ctx context.Context, round *session.Round) error {
	if j.db == nil {
		return ErrNotOpen
	}

	errText := ""
	if round.Err != nil {
		errText = round.Err.Error()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sync_rounds (id, started_at, duration_ms, mode, kind, fallback, base_digest,
			result_digest, file_count, added, modified, deleted, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		round.ID,
		round.StartedAt.UTC().Format(timeLayout),
		round.Duration.Milliseconds(),
		string(round.Mode),
		round.Kind,
		round.Fallback,
		round.BaseDigest,
		round.ResultDigest,
		round.FileCount,
		len(round.ChangeSet.Added),
		len(round.ChangeSet.Modified),
		len(round.ChangeSet.Deleted),
		errText,
	)
	if err != nil {
		return fmt.Errorf("record sync round %s: %w", round.ID, err)
	}
	return nil
}

// Recent returns up to limit rounds, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if j.db == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = 20
	}

	var rows []dbEntry
	err := j.db.SelectContext(ctx, &rows, `
		SELECT id, started_at, duration_ms, mode, kind, fallback, base_digest, result_digest,
			file_count, added, modified, deleted, error
		FROM sync_rounds
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync rounds: %w", err)
	}

	entries := make([]*Entry, 0, len(rows))
	for _, row := range rows {
		startedAt, err := time.Parse(timeLayout, row.StartedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at of round %s: %w", row.ID, err)
		}
		entry := row.Entry
		entry.StartedAt = startedAt
		entry.Duration = time.Duration(row.DurationMs) * time.Millisecond
		entries = append(entries, &entry)
	}
	return entries, nil
}

// Count returns the number of stored rounds.
func (j *Journal) Count(ctx context.Context) (int, error) {
	if j.db == nil {
		return 0, ErrNotOpen
	}
	var n int
	if err := j.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM sync_rounds"); err != nil {
		return 0, fmt.Errorf("count sync rounds: %w", err)
	}
	return n, nil
}
