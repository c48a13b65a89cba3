// Package notestore keeps the history of generated clinical notes.
// Notes can be exported and re-imported as JSON, and exported as CSV for
// other systems.
package notestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medical-scribe-server/internal/domain"
)

// ExportVersion is written into every JSON export
const ExportVersion = "1.0"

// maxExportLimit is the maximum number of notes exported at once
const maxExportLimit = 1000000

// ErrMalformedImport marks import documents that cannot be decoded
var ErrMalformedImport = errors.New("malformed import")

// Record is one stored clinical note with the transcript it came from
type Record struct {
	ID         string               `json:"id"`
	Transcript string               `json:"transcript,omitempty"`
	Model      string               `json:"model,omitempty"`
	Note       *domain.ClinicalNote `json:"note"`
	Usage      *domain.TokenUsage   `json:"usage,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// Store defines the interface for note history storage.
type Store interface {
	// Save inserts a record or updates the one with the same ID.
	// An empty ID is assigned a new UUID.
	Save(ctx context.Context, rec *Record) error

	// Get returns domain.ErrNoteNotFound for unknown IDs.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records newest first.
	List(ctx context.Context, limit, offset int) ([]*Record, error)

	Count(ctx context.Context) (int64, error)

	// Delete returns domain.ErrNoteNotFound for unknown IDs.
	Delete(ctx context.Context, id string) error

	ExportJSON(ctx context.Context, w io.Writer) error

	// ImportJSON accepts an export document or a single bare note.
	// Records whose ID already exists are skipped.
	ImportJSON(ctx context.Context, r io.Reader) (imported int, skipped int, err error)

	ExportCSV(ctx context.Context, w io.Writer) error

	Health(ctx context.Context) error
	Close() error
}

// Export is the JSON export document
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Notes      []*Record `json:"notes"`
}

// Open returns the store selected by config.Driver. The "none" driver
// yields a nil store.
func Open(config domain.StorageConfig, logger *logrus.Logger) (Store, error) {
	switch config.Driver {
	case "sqlite":
		path := filepath.Join(config.DataDir, "notes.db")
		logger.WithField("path", path).Info("Opening SQLite note store")
		store, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		logger.Info("Opening PostgreSQL note store")
		store, err := NewPostgresStoreFromURL(config.DatabaseURL, config)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", config.Driver)
	}
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const recordColumns = "id, transcript, model, note_json, usage_json, created_at, updated_at"

func scanRecord(s scanner) (*Record, error) {
	rec := &Record{}
	var noteJSON, usageJSON []byte

	if err := s.Scan(&rec.ID, &rec.Transcript, &rec.Model, &noteJSON, &usageJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(noteJSON, &rec.Note); err != nil {
		return nil, fmt.Errorf("decode note %s: %w", rec.ID, err)
	}
	if len(usageJSON) > 0 && !bytes.Equal(usageJSON, []byte("null")) {
		rec.Usage = &domain.TokenUsage{}
		if err := json.Unmarshal(usageJSON, rec.Usage); err != nil {
			return nil, fmt.Errorf("decode usage %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// prepareRecord assigns an ID and timestamps and encodes the JSON columns
func prepareRecord(rec *Record) (noteJSON, usageJSON []byte, err error) {
	if rec.Note == nil {
		return nil, nil, fmt.Errorf("%w: record has no note", domain.ErrInvalidNote)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	noteJSON, err = json.Marshal(rec.Note)
	if err != nil {
		return nil, nil, fmt.Errorf("encode note: %w", err)
	}
	if rec.Usage != nil {
		usageJSON, err = json.Marshal(rec.Usage)
		if err != nil {
			return nil, nil, fmt.Errorf("encode usage: %w", err)
		}
	}
	return noteJSON, usageJSON, nil
}

func exportJSON(ctx context.Context, s Store, w io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list notes: %w", err)
	}
	if all == nil {
		all = []*Record{}
	}

	export := &Export{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Notes:      all,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, s Store, r io.Reader) (imported int, skipped int, err error) {
	records, err := DecodeImport(r)
	if err != nil {
		return 0, 0, err
	}

	for _, rec := range records {
		if rec == nil || rec.Note == nil || rec.Note.SOAP == nil {
			skipped++
			continue
		}

		if rec.ID != "" {
			_, err := s.Get(ctx, rec.ID)
			if err == nil {
				skipped++
				continue
			}
			if !errors.Is(err, domain.ErrNoteNotFound) {
				return imported, skipped, fmt.Errorf("%w: failed to check existing: %w", domain.ErrStorage, err)
			}
		}

		if err := s.Save(ctx, rec); err != nil {
			return imported, skipped, fmt.Errorf("%w: failed to save: %w", domain.ErrStorage, err)
		}
		imported++
	}

	return imported, skipped, nil
}

// DecodeImport reads either an Export document or a single clinical note
// as downloaded from the scribe UI. A bare note must carry patientInfo and
// all four SOAP sections.
func DecodeImport(r io.Reader) ([]*Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read import: %w", ErrMalformedImport, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: failed to decode JSON: %w", ErrMalformedImport, err)
	}

	if _, ok := fields["soap"]; ok {
		var note domain.ClinicalNote
		if err := json.Unmarshal(data, &note); err != nil {
			return nil, fmt.Errorf("%w: failed to decode note: %w", ErrMalformedImport, err)
		}
		if err := ValidateImportedNote(&note); err != nil {
			return nil, err
		}
		return []*Record{{Note: &note}}, nil
	}

	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("%w: failed to decode export: %w", ErrMalformedImport, err)
	}
	return export.Notes, nil
}

// ValidateImportedNote checks the sections a hand-edited note must keep
func ValidateImportedNote(note *domain.ClinicalNote) error {
	if note == nil || note.PatientInfo == nil || note.SOAP == nil {
		return fmt.Errorf("%w: patientInfo and soap are required", domain.ErrInvalidNote)
	}
	s := note.SOAP
	if s.Subjective == nil || s.Objective == nil || s.Assessment == nil || s.Plan == nil {
		return fmt.Errorf("%w: soap must have subjective, objective, assessment and plan", domain.ErrInvalidNote)
	}
	return nil
}

func exportCSV(ctx context.Context, s Store, w io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list notes: %w", err)
	}
	return WriteHistoryCSV(w, all)
}
