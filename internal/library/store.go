package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"quill/internal/config"
)

// ErrNotFound indicates the requested recording does not exist.
var ErrNotFound = errors.New("recording not found")

// Store manages recording persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the library database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.RecordingsDir, "library.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add records a newly captured clip and returns the stored row.
func (s *Store) Add(ctx context.Context, filename, path string, sizeBytes, durationSeconds int64) (*Recording, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO recordings (filename, path, size_bytes, duration_seconds, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		filename,
		path,
		sizeBytes,
		durationSeconds,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a recording by its identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recording %d: %w", id, err)
	}
	return rec, nil
}

// GetByFilename fetches a recording by its unique filename.
func (s *Store) GetByFilename(ctx context.Context, filename string) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE filename = ?", filename)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recording %q: %w", filename, err)
	}
	return rec, nil
}

// Latest returns the most recently captured recording.
func (s *Store) Latest(ctx context.Context) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" ORDER BY created_at DESC, id DESC LIMIT 1")
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest recording: %w", err)
	}
	return rec, nil
}

// List returns all recordings, newest first.
func (s *Store) List(ctx context.Context) ([]*Recording, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recordings []*Recording
	for rows.Next() {
		rec, scanErr := scanRecording(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan recording: %w", scanErr)
		}
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return recordings, nil
}

// MarkUploaded stamps the recording with the time its upload completed.
func (s *Store) MarkUploaded(ctx context.Context, id int64) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, "UPDATE recordings SET uploaded_at = ? WHERE id = ?", timestamp, id)
	if err != nil {
		return fmt.Errorf("mark uploaded: %w", err)
	}
	return requireRow(res, id)
}

// SetContractID associates a generated contract with the recording.
func (s *Store) SetContractID(ctx context.Context, id int64, contractID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE recordings SET contract_id = ? WHERE id = ?", contractID, id)
	if err != nil {
		return fmt.Errorf("set contract id: %w", err)
	}
	return requireRow(res, id)
}

// Remove deletes the recording row. The caller owns the file on disk.
func (s *Store) Remove(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM recordings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("remove recording: %w", err)
	}
	return requireRow(res, id)
}

const selectColumns = `SELECT id, filename, path, size_bytes, duration_seconds, created_at, uploaded_at, contract_id FROM recordings`

func scanRecording(scanner interface{ Scan(dest ...any) error }) (*Recording, error) {
	var (
		rec         Recording
		createdRaw  string
		uploadedRaw sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Filename,
		&rec.Path,
		&rec.SizeBytes,
		&rec.DurationSeconds,
		&createdRaw,
		&uploadedRaw,
		&rec.ContractID,
	); err != nil {
		return nil, err
	}

	created, err := time.Parse(time.RFC3339Nano, createdRaw)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = created

	if uploadedRaw.Valid && uploadedRaw.String != "" {
		uploaded, parseErr := time.Parse(time.RFC3339Nano, uploadedRaw.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse uploaded_at: %w", parseErr)
		}
		rec.UploadedAt = &uploaded
	}

	return &rec, nil
}

func requireRow(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recording %d: %w", id, ErrNotFound)
	}
	return nil
}
