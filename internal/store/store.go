package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS          = 5000
	defaultMaxOpenConns    = 1
	defaultMaxIdleConns    = 1
	defaultConnMaxLifetime = 5 * time.Minute

	maxOpenConnsEnvKey    = "CARLOT_DB_MAX_OPEN_CONNS"
	connMaxLifetimeEnvKey = "CARLOT_DB_CONN_MAX_LIFETIME"
)

// Store wraps the SQLite database holding vehicles and asset groups.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database and applies pending migrations.
func Open(path string) (*Store, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// MigrationStatus reports applied and pending schema migrations.
func (s *Store) MigrationStatus() (*MigrationStatus, error) {
	return MigrationPlan(s.db)
}

func (s *Store) recordExists(ctx context.Context, table, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// poolOptions bounds the connection pool. SQLite allows one writer, so the
// default is a single connection.
type poolOptions struct {
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

func poolOptionsFromEnv() poolOptions {
	opts := poolOptions{MaxOpenConns: defaultMaxOpenConns, ConnMaxLifetime: defaultConnMaxLifetime}
	if n, ok := positiveInt(os.Getenv(maxOpenConnsEnvKey)); ok {
		opts.MaxOpenConns = n
	}
	if d, ok := positiveDuration(os.Getenv(connMaxLifetimeEnvKey)); ok {
		opts.ConnMaxLifetime = d
	}
	return opts
}

func configureDB(db *sql.DB) error {
	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%s: %w", strings.TrimSuffix(stmt, ";"), err)
		}
	}

	opts := poolOptionsFromEnv()
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(min(defaultMaxIdleConns, opts.MaxOpenConns))
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	return nil
}

func sqliteDSN(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("db path is required")
	}
	return (&url.URL{Scheme: "file", Path: path}).String(), nil
}

func positiveInt(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	return n, err == nil && n > 0
}

// positiveDuration accepts Go durations or a bare number of seconds.
func positiveDuration(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if n, ok := positiveInt(raw); ok {
		return time.Duration(n) * time.Second, true
	}
	d, err := time.ParseDuration(raw)
	return d, err == nil && d > 0
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
