package measurements

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

//go:embed schema_postgres.sql
var postgresSchema string

// PostgresStore keeps measurements in a shared Postgres database.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenPostgres connects with dsn, verifies the connection, and creates the
// schema when missing.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres store: DSN is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ensureContext(ctx), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if _, err := db.ExecContext(ensureContext(ctx), postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: create schema: %w", err)
	}
	return &PostgresStore{db: db, now: time.Now}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert stores a measurement and returns its id.
func (s *PostgresStore) Insert(ctx context.Context, m Measurement) (int64, error) {
	if m.Timestamp == "" {
		m.Timestamp = FormatTimestamp(s.now())
	}
	var id int64
	err := s.db.QueryRowContext(ensureContext(ctx),
		`INSERT INTO weights (weight, "timestamp", image, machine) VALUES ($1, $2, $3, $4) RETURNING id`,
		m.Weight,
		m.Timestamp,
		nullableString(m.Image),
		nullableString(m.Machine),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres store: insert measurement: %w", err)
	}
	return id, nil
}

// List returns a page of measurements, newest first.
func (s *PostgresStore) List(ctx context.Context, offset, limit int) ([]Measurement, error) {
	offset, limit = clampPage(offset, limit)
	if limit == 0 {
		return []Measurement{}, nil
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+measurementColumns+` FROM weights ORDER BY id DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list measurements: %w", err)
	}
	defer rows.Close()

	items := []Measurement{}
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres store: scan measurement: %w", err)
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: iterate measurements: %w", err)
	}
	return items, nil
}

// Count returns the number of stored measurements.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM weights`).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres store: count measurements: %w", err)
	}
	return count, nil
}

// Get fetches one measurement by id.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*Measurement, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+measurementColumns+` FROM weights WHERE id = $1`, id)
	m, err := scanMeasurement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get measurement: %w", err)
	}
	return m, nil
}

// Delete removes a measurement by id.
func (s *PostgresStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ensureContext(ctx), `DELETE FROM weights WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("postgres store: delete measurement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres store: rows affected: %w", err)
	}
	return affected > 0, nil
}

// Machines lists the known machine labels.
func (s *PostgresStore) Machines(ctx context.Context) ([]Machine, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id, name FROM machines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list machines: %w", err)
	}
	defer rows.Close()

	var machines []Machine
	for rows.Next() {
		var m Machine
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("postgres store: scan machine: %w", err)
		}
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

// ResolveMachine maps label to a known machine name, ignoring case and spacing.
func (s *PostgresStore) ResolveMachine(ctx context.Context, label string) (string, bool, error) {
	return resolveMachine(ensureContext(ctx), s.Machines, label)
}
