package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome classifies how an ingestion attempt ended.
type Outcome string

const (
	OutcomeIngested Outcome = "ingested"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// Record is one ingestion attempt.
type Record struct {
	ID         int64
	PullNumber int
	Outcome    Outcome
	Game       string
	Song       string
	Revision   int
	// EntryIndex is the catalog position of the appended entry, or -1.
	EntryIndex int
	RequestID  string
	Message    string
	Warnings   int
	CreatedAt  time.Time
}

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts rec and returns it with ID and CreatedAt populated.
func (s *Store) Record(ctx context.Context, rec Record) (Record, error) {
	ctx = ensureContext(ctx)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Outcome == "" {
		rec.Outcome = OutcomeIngested
	}
	var entryIndex any
	if rec.EntryIndex >= 0 && rec.Outcome == OutcomeIngested {
		entryIndex = rec.EntryIndex
	} else {
		rec.EntryIndex = -1
	}

	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx,
			`INSERT INTO ingestions (
                pr_number, outcome, game, song, revision, entry_index,
                request_id, message, warnings, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.PullNumber,
			string(rec.Outcome),
			nullableString(rec.Game),
			nullableString(rec.Song),
			rec.Revision,
			entryIndex,
			nullableString(rec.RequestID),
			nullableString(rec.Message),
			rec.Warnings,
			rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		return execErr
	})
	if err != nil {
		return Record{}, fmt.Errorf("insert ingestion: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Record{}, fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	return rec, nil
}

const recordColumns = "id, pr_number, outcome, game, song, revision, entry_index, request_id, message, warnings, created_at"

// List returns the most recent records first. A limit <= 0 returns all rows.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := "SELECT " + recordColumns + " FROM ingestions ORDER BY id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.query(ensureContext(ctx), query, args...)
}

// ForPullRequest returns every attempt for the pull request, oldest first.
func (s *Store) ForPullRequest(ctx context.Context, pr int) ([]Record, error) {
	return s.query(ensureContext(ctx),
		"SELECT "+recordColumns+" FROM ingestions WHERE pr_number = ? ORDER BY id ASC", pr)
}

// LastIngested returns the latest successful ingestion of pr, or false when
// the pull request was never ingested.
func (s *Store) LastIngested(ctx context.Context, pr int) (Record, bool, error) {
	rows, err := s.query(ensureContext(ctx),
		"SELECT "+recordColumns+" FROM ingestions WHERE pr_number = ? AND outcome = ? ORDER BY id DESC LIMIT 1",
		pr, string(OutcomeIngested))
	if err != nil {
		return Record{}, false, err
	}
	if len(rows) == 0 {
		return Record{}, false, nil
	}
	return rows[0], true, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ingestions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ingestion: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec        Record
		outcome    string
		game       sql.NullString
		song       sql.NullString
		entryIndex sql.NullInt64
		requestID  sql.NullString
		message    sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.PullNumber,
		&outcome,
		&game,
		&song,
		&rec.Revision,
		&entryIndex,
		&requestID,
		&message,
		&rec.Warnings,
		&createdRaw,
	); err != nil {
		return Record{}, err
	}
	rec.Outcome = Outcome(outcome)
	rec.Game = game.String
	rec.Song = song.String
	rec.RequestID = requestID.String
	rec.Message = message.String
	rec.EntryIndex = -1
	if entryIndex.Valid {
		rec.EntryIndex = int(entryIndex.Int64)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		rec.CreatedAt = created
	}
	return rec, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
