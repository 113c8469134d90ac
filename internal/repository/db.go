package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable is returned when no healthy connection could be obtained.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrAlreadyExists = errors.New("already exists")
)

// HealthCheck validates a connection before it is handed to an operation.
type HealthCheck func(ctx context.Context, conn *sql.Conn) error

type Config struct {
	Driver string
	DSN    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration

	// ProbeAttempts bounds how many connections are tried before giving up.
	ProbeAttempts int
	HealthCheck   HealthCheck
}

// ParseURL maps a DATABASE_URL to a driver name and DSN. Supported forms are
// postgres://... (or postgresql://...) and sqlite://path.
func ParseURL(url string) (driverName, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite url %q has no path", url)
		}
		return DriverSQLite, path, nil
	default:
		return "", "", fmt.Errorf("unsupported database url %q", url)
	}
}

// DB is the ledger connection pool. Every logical operation runs on a connection
// that passed the health check first.
type DB struct {
	sql           *sql.DB
	driver        string
	probeAttempts int
	healthCheck   HealthCheck
}

// Open connects to the configured database. SQLite is restricted to a single
// connection and takes the write lock when a transaction begins.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dsn := cfg.DSN
	switch cfg.Driver {
	case DriverPostgres:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		sqlDB.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		sql:           sqlDB,
		driver:        cfg.Driver,
		probeAttempts: cfg.ProbeAttempts,
		healthCheck:   cfg.HealthCheck,
	}
	if db.probeAttempts <= 0 {
		db.probeAttempts = 3
	}
	if db.healthCheck == nil {
		db.healthCheck = SelectOne
	}
	return db, nil
}

func sqliteDSN(path string) string {
	params := "_foreign_keys=on&_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL"
	if strings.Contains(path, "?") {
		return "file:" + path + "&" + params
	}
	return "file:" + path + "?" + params
}

// SelectOne is the default health check.
func SelectOne(ctx context.Context, conn *sql.Conn) error {
	var one int
	return conn.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

func (db *DB) Close() error {
	if db == nil || db.sql == nil {
		return nil
	}
	return db.sql.Close()
}

func (db *DB) Driver() string {
	return db.driver
}

// Migrate applies the embedded schema. Safe to call on every start.
func (db *DB) Migrate(ctx context.Context) error {
	return db.withConn(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		return nil
	})
}

// acquire returns a connection that passed the health check. Broken connections
// are discarded from the pool and a fresh one is tried, up to probeAttempts.
func (db *DB) acquire(ctx context.Context) (*sql.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= db.probeAttempts; attempt++ {
		conn, err := db.sql.Conn(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if err := db.healthCheck(ctx, conn); err != nil {
			lastErr = err
			discard(conn)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.WarnContext(ctx, "discarding unhealthy database connection",
				"attempt", attempt, "max_attempts", db.probeAttempts, "error", err)
			continue
		}
		return conn, nil
	}
	return nil, fmt.Errorf("%w: no healthy connection after %d attempts: %v", ErrStorageUnavailable, db.probeAttempts, lastErr)
}

// discard closes conn and tells the pool not to reuse the underlying driver connection.
func discard(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()
}

func (db *DB) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := db.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

// WithTx executes fn within a single database transaction on a probed connection.
// If fn returns an error, the transaction is rolled back. Otherwise it is committed.
func (db *DB) WithTx(ctx context.Context, fn func(tx *LedgerTx) error) error {
	return db.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		if err := fn(&LedgerTx{tx: tx, driver: db.driver}); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	})
}

// rebind rewrites $n placeholders to ?n for SQLite.
func rebind(driverName, query string) string {
	if driverName != DriverSQLite {
		return query
	}
	return strings.ReplaceAll(query, "$", "?")
}

// forUpdate is the row-lock suffix. SQLite already holds the database write lock
// for the whole transaction.
func forUpdate(driverName string) string {
	if driverName == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}
