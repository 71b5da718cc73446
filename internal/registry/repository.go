package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SnapshotRepository persists the registry's boot snapshot.
//
// The in-memory registry is authoritative at runtime; this repository
// only mirrors mutations so the next startup rehydrates the latest set.
type SnapshotRepository interface {
	// List retrieves all persisted records.
	List(ctx context.Context) ([]Record, error)

	// Upsert inserts or replaces a record by device identity.
	Upsert(ctx context.Context, rec Record) error

	// Delete removes a record by device identity.
	// Deleting an unknown identity is not an error.
	Delete(ctx context.Context, deviceID string) error
}

// SQLiteRepository implements SnapshotRepository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed snapshot repository.
// The db parameter should be an open SQLite connection with the devices
// table already migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List retrieves all persisted records ordered by device identity.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT device_id, name, grp, metadata, created_at
		FROM devices
		ORDER BY device_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return records, nil
}

// Get retrieves a single record by device identity.
// Returns ErrRecordNotFound if no record exists.
func (r *SQLiteRepository) Get(ctx context.Context, deviceID string) (Record, error) {
	query := `
		SELECT device_id, name, grp, metadata, created_at
		FROM devices
		WHERE device_id = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// Upsert inserts or replaces a record by device identity.
func (r *SQLiteRepository) Upsert(ctx context.Context, rec Record) error {
	if rec.DeviceID == "" {
		return ErrInvalidRecord
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO devices (device_id, name, grp, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			name = excluded.name,
			grp = excluded.grp,
			metadata = excluded.metadata`

	if _, err := r.db.ExecContext(ctx, query, rec.DeviceID, rec.Name, rec.Group, string(metadata), createdAt); err != nil {
		return fmt.Errorf("upserting device %s: %w", rec.DeviceID, err)
	}
	return nil
}

// Delete removes a record by device identity.
func (r *SQLiteRepository) Delete(ctx context.Context, deviceID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE device_id = ?", deviceID); err != nil {
		return fmt.Errorf("deleting device %s: %w", deviceID, err)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a single devices row into a Record.
func scanRecord(s scanner) (Record, error) {
	var (
		rec      Record
		metadata string
	)

	if err := s.Scan(&rec.DeviceID, &rec.Name, &rec.Group, &metadata, &rec.CreatedAt); err != nil {
		return Record{}, err
	}

	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
			return Record{}, fmt.Errorf("unmarshaling metadata for %s: %w", rec.DeviceID, err)
		}
	}
	return rec, nil
}
