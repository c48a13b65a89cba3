package notestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/medical-scribe-server/internal/domain"
)

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens dbPath, creating the file, its directory and the
// schema when missing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS clinical_notes (
		id TEXT PRIMARY KEY,
		transcript TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		note_json TEXT NOT NULL,
		usage_json TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clinical_notes_created_at ON clinical_notes(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Path returns the database file location
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Save inserts or updates rec, keeping the original creation time
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	noteJSON, usageJSON, err := prepareRecord(rec)
	if err != nil {
		return err
	}

	var existingCreated time.Time
	err = s.db.QueryRowContext(ctx,
		"SELECT created_at FROM clinical_notes WHERE id = ?", rec.ID,
	).Scan(&existingCreated)

	if err == nil {
		rec.CreatedAt = existingCreated
		_, err = s.db.ExecContext(ctx, `
			UPDATE clinical_notes SET
				transcript = ?,
				model = ?,
				note_json = ?,
				usage_json = ?,
				updated_at = ?
			WHERE id = ?
		`,
			rec.Transcript, rec.Model, string(noteJSON), nullableJSON(usageJSON),
			rec.UpdatedAt, rec.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update note: %w", err)
		}
		return nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO clinical_notes ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Transcript, rec.Model, string(noteJSON), nullableJSON(usageJSON),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// Get retrieves a note by ID
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM clinical_notes WHERE id = ?", id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

// List returns notes newest first with pagination
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM clinical_notes
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Count returns the total number of stored notes
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clinical_notes").Scan(&count)
	return count, err
}

// Delete removes a note by ID
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM clinical_notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) ExportJSON(ctx context.Context, w io.Writer) error {
	return exportJSON(ctx, s, w)
}

func (s *SQLiteStore) ImportJSON(ctx context.Context, r io.Reader) (int, int, error) {
	return importJSON(ctx, s, r)
}

func (s *SQLiteStore) ExportCSV(ctx context.Context, w io.Writer) error {
	return exportCSV(ctx, s, w)
}

// Health pings the database
func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableJSON(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}
