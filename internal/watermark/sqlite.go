package watermark

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps watermarks in a single-file SQLite database so
// state survives restarts without needing a server-side table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open watermark store %s: %w", path, err)
	}
	// Concurrent actions for different tables share one file.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureStorageExists creates the watermarks table if it is missing.
// Safe to call on every run.
func (s *SQLiteStore) EnsureStorageExists() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS watermarks (
			table_name TEXT PRIMARY KEY,
			last_synced_at TEXT,
			last_row_at TEXT,
			last_batch_synced_at TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure watermark storage: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(tableName string) (Record, error) {
	rec := Record{TableName: tableName}
	var synced, row, batch sql.NullString
	err := s.db.QueryRow(`
		SELECT last_synced_at, last_row_at, last_batch_synced_at
		FROM watermarks WHERE table_name = ?
	`, tableName).Scan(&synced, &row, &batch)
	if err == sql.ErrNoRows {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("failed to read watermark for %s: %w", tableName, err)
	}
	if rec.LastSyncedAt, err = parseInstant(synced); err != nil {
		return rec, err
	}
	if rec.LastRowAt, err = parseInstant(row); err != nil {
		return rec, err
	}
	if rec.LastBatchSyncedAt, err = parseInstant(batch); err != nil {
		return rec, err
	}
	return rec, nil
}

func (s *SQLiteStore) Set(rec Record) error {
	_, err := s.db.Exec(`
		INSERT INTO watermarks (table_name, last_synced_at, last_row_at, last_batch_synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET
			last_synced_at = excluded.last_synced_at,
			last_row_at = excluded.last_row_at,
			last_batch_synced_at = excluded.last_batch_synced_at
	`, rec.TableName, formatInstant(rec.LastSyncedAt), formatInstant(rec.LastRowAt), formatInstant(rec.LastBatchSyncedAt))
	if err != nil {
		return fmt.Errorf("failed to write watermark for %s: %w", rec.TableName, err)
	}
	return nil
}

// All returns every stored record, ordered by table name.
func (s *SQLiteStore) All() ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT table_name, last_synced_at, last_row_at, last_batch_synced_at
		FROM watermarks ORDER BY table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list watermarks: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var synced, row, batch sql.NullString
		if err := rows.Scan(&rec.TableName, &synced, &row, &batch); err != nil {
			return nil, err
		}
		if rec.LastSyncedAt, err = parseInstant(synced); err != nil {
			return nil, err
		}
		if rec.LastRowAt, err = parseInstant(row); err != nil {
			return nil, err
		}
		if rec.LastBatchSyncedAt, err = parseInstant(batch); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func formatInstant(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseInstant(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt watermark value %q: %w", s.String, err)
	}
	return t, nil
}
