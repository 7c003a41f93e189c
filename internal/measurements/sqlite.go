package measurements

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps measurements in a local SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers and keeps PRAGMAs applied.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ensureContext(ctx), pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path, now: time.Now}
	if err := store.applyMigrations(ensureContext(ctx)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert stores a measurement and returns its id.
func (s *SQLiteStore) Insert(ctx context.Context, m Measurement) (int64, error) {
	if m.Timestamp == "" {
		m.Timestamp = FormatTimestamp(s.now())
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO weights (weight, timestamp, image, machine) VALUES (?, ?, ?, ?)`,
		m.Weight,
		m.Timestamp,
		nullableString(m.Image),
		nullableString(m.Machine),
	)
	if err != nil {
		return 0, fmt.Errorf("insert measurement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// List returns a page of measurements, newest first.
func (s *SQLiteStore) List(ctx context.Context, offset, limit int) ([]Measurement, error) {
	offset, limit = clampPage(offset, limit)
	if limit == 0 {
		return []Measurement{}, nil
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+measurementColumns+` FROM weights ORDER BY id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	defer rows.Close()

	items := []Measurement{}
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurements: %w", err)
	}
	return items, nil
}

// Count returns the number of stored measurements.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM weights`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count measurements: %w", err)
	}
	return count, nil
}

// Get fetches one measurement by id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Measurement, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+measurementColumns+` FROM weights WHERE id = ?`, id)
	m, err := scanMeasurement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get measurement: %w", err)
	}
	return m, nil
}

// Delete removes a measurement by id.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM weights WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete measurement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Machines lists the known machine labels.
func (s *SQLiteStore) Machines(ctx context.Context) ([]Machine, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id, name FROM machines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	var machines []Machine
	for rows.Next() {
		var (
			m    Machine
			name sql.NullString
		)
		if err := rows.Scan(&m.ID, &name); err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		m.Name = name.String
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

// ResolveMachine maps label to a known machine name, ignoring case and spacing.
func (s *SQLiteStore) ResolveMachine(ctx context.Context, label string) (string, bool, error) {
	return resolveMachine(ensureContext(ctx), s.Machines, label)
}
