package notestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/medical-scribe-server/internal/domain"
)

// PostgresStore implements Store on PostgreSQL. The schema is created by
// the migrations in /migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open connection and verifies it
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens databaseURL with the pool limits from config
func NewPostgresStoreFromURL(databaseURL string, config domain.StorageConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(orDefault(config.MaxOpenConns, 25))
	db.SetMaxIdleConns(orDefault(config.MaxIdleConns, 5))
	lifetime := config.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetConnMaxLifetime(lifetime)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Save upserts rec, keeping the original creation time
func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	noteJSON, usageJSON, err := prepareRecord(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO clinical_notes (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			transcript = EXCLUDED.transcript,
			model = EXCLUDED.model,
			note_json = EXCLUDED.note_json,
			usage_json = EXCLUDED.usage_json,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	err = s.db.QueryRowContext(ctx, query,
		rec.ID, rec.Transcript, rec.Model, string(noteJSON), nullableJSON(usageJSON),
		rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}
	return nil
}

// Get retrieves a note by ID
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM clinical_notes WHERE id = $1", id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return rec, nil
}

// List returns notes newest first with pagination
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM clinical_notes
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
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
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clinical_notes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}

// Delete removes a note by ID
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM clinical_notes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) ExportJSON(ctx context.Context, w io.Writer) error {
	return exportJSON(ctx, s, w)
}

func (s *PostgresStore) ImportJSON(ctx context.Context, r io.Reader) (int, int, error) {
	return importJSON(ctx, s, r)
}

func (s *PostgresStore) ExportCSV(ctx context.Context, w io.Writer) error {
	return exportCSV(ctx, s, w)
}

// Health pings the database
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
