/*
Package sqldb provides the data fetcher over database/sql.

PURPOSE:
  Runs report queries against the stage 5 source table and hands rows back
  as plain column -> value maps, so no driver types leak past this package.

DRIVERS:
  postgres://, postgresql://, key=value DSNs  ->  pgx (jackc/pgx/v5/stdlib)
  sqlite://path, file:..., :memory:, *.db     ->  go-sqlite3

  Templates are written with '?' placeholders; they are rebound to $1..$n
  for Postgres.

SESSIONS:
  One run uses one connection: Connect pins a *sql.Conn and every query of
  the run goes through it. Failing to obtain it is a connection error.

USAGE:
  store, err := sqldb.Open(cfg.DatabaseURL)
  if err != nil {
      return err
  }
  defer store.Close()

  session, err := store.Connect(ctx)
  ...
  table, err := session.Fetch(ctx, query, args...)

SEE ALSO:
  - queries.go: default report queries
  - schema.go: development schema for SQLite
*/
package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/warp/stage5-reports/report"
)

// Dialect identifies the SQL flavour behind a Store.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Store is a pooled handle on the source database.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open opens (but does not connect to) the database behind dsn.
func Open(dsn string) (*Store, error) {
	dialect, driverName, source, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch dialect {
	case DialectSQLite:
		// Single writer, and :memory: databases are per connection.
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(60 * time.Minute)
	}

	return &Store{db: db, dialect: dialect}, nil
}

// New wraps an existing *sql.DB. Used with sqlmock in tests.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Table returns the name table has on this store. See TableFor.
func (s *Store) Table(table string) string { return TableFor(s.dialect, table) }

// Dialect returns the SQL flavour of the store.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", report.ErrConnection, err)
	}
	return nil
}

// Connect pins one connection for the duration of a run.
func (s *Store) Connect(ctx context.Context) (*Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", report.ErrConnection, err)
	}
	return &Session{conn: conn, dialect: s.dialect}, nil
}

// =============================================================================
// SESSION
// =============================================================================

// Session runs queries on a single pinned connection.
type Session struct {
	conn    *sql.Conn
	dialect Dialect
}

// Fetch runs query with positional args and returns every row.
func (s *Session) Fetch(ctx context.Context, query string, args ...any) (report.Table, error) {
	logger := zerolog.Ctx(ctx)
	started := time.Now()

	rows, err := s.conn.QueryContext(ctx, Rebind(s.dialect, query), args...)
	if err != nil {
		return report.Table{}, classify(err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close report query rows")
		}
	}(rows)

	columns, err := rows.Columns()
	if err != nil {
		return report.Table{}, &report.QueryError{Err: err}
	}

	table := report.Table{Columns: columns, Rows: []report.Row{}}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return report.Table{}, &report.QueryError{Err: fmt.Errorf("scan row: %w", err)}
		}

		row := make(report.Row, len(columns))
		for i, col := range columns {
			row[col] = normalize(values[i])
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return report.Table{}, classify(err)
	}

	logger.Debug().
		Int("rows", len(table.Rows)).
		Dur("elapsed", time.Since(started)).
		Msg("report query complete")

	return table, nil
}

// Close releases the pinned connection back to the pool.
func (s *Session) Close() error {
	return s.conn.Close()
}

// =============================================================================
// HELPERS
// =============================================================================

// Rebind rewrites '?' placeholders into the dialect's positional form.
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	last, n := 0, 0
	report.ScanPlaceholders(query, func(offset int) {
		n++
		b.WriteString(query[last:offset])
		b.WriteString("$" + strconv.Itoa(n))
		last = offset + 1
	})
	b.WriteString(query[last:])
	return b.String()
}

// normalize converts driver-specific values into plain Go values.
func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return val
	}
}

// classify sorts a driver error into connection or query failures.
func classify(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", report.ErrConnection, err)
	default:
		return &report.QueryError{Err: err}
	}
}

func parseDSN(dsn string) (Dialect, string, string, error) {
	dsn = strings.TrimSpace(dsn)
	lower := strings.ToLower(dsn)

	switch {
	case dsn == "":
		return "", "", "", report.MissingSetting("DB_CONNECTION_STRING")
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, "pgx", dsn, nil
	case strings.HasPrefix(lower, "sqlite://"):
		return DialectSQLite, "sqlite3", dsn[len("sqlite://"):], nil
	case strings.HasPrefix(lower, "file:"), dsn == ":memory:",
		strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return DialectSQLite, "sqlite3", dsn, nil
	case strings.Contains(lower, "host=") || strings.Contains(lower, "dbname="):
		return DialectPostgres, "pgx", dsn, nil
	}
	return "", "", "", &report.ConfigError{Key: "DB_CONNECTION_STRING", Reason: "has an unrecognized scheme"}
}
