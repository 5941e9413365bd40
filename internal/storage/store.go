package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/deidaraiorek/siteindex/internal/metrics"
)

// Store is the relational store behind the site, page, lemma and
// search_index tables.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to the database and applies pending migrations. SQLite
// databases get foreign keys and a single shared connection.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := NewMigrationRunner(db, driver).Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, dialect: dialectFor(driver)}, nil
}

func sqliteDSN(dsn string) string {
	params := []string{"_foreign_keys=on", "_busy_timeout=5000"}
	if !strings.Contains(dsn, ":memory:") {
		params = append(params, "_journal_mode=WAL")
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var missing []string
	for _, p := range params {
		key := p[:strings.IndexByte(p, '=')+1]
		if !strings.Contains(dsn, key) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return dsn
	}
	return dsn + sep + strings.Join(missing, "&")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithTransaction runs fn inside a transaction, committing when fn returns
// nil and rolling back otherwise.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	return fn(tx)
}

func (s *Store) observe(name string, start time.Time) {
	metrics.DBQueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func (s *Store) count(ctx context.Context, q queryer, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, s.dialect.rebind(query), args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
