package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type migration struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, tx *sql.Tx, d dialect) error
}

// MigrationRunner applies pending schema migrations and records them in
// schema_migrations.
type MigrationRunner struct {
	db         *sql.DB
	dialect    dialect
	migrations []migration
}

func NewMigrationRunner(db *sql.DB, driver string) *MigrationRunner {
	return &MigrationRunner{
		db:      db,
		dialect: dialectFor(driver),
		migrations: []migration{
			{Version: 1, Name: "initial_schema", Apply: migrateV001},
		},
	}
}

func (r *MigrationRunner) Run(ctx context.Context) error {
	if r.dialect.sqlite {
		if _, err := r.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if _, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range r.migrations {
		applied, err := r.isApplied(ctx, m.Version)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (r *MigrationRunner) isApplied(ctx context.Context, version int) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		r.dialect.rebind("SELECT COUNT(*) FROM schema_migrations WHERE version = ?"), version,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MigrationRunner) apply(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(ctx, tx, r.dialect); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		r.dialect.rebind("INSERT INTO schema_migrations (version, name) VALUES (?, ?)"),
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// schemaV001 uses {{ID}} and {{REAL}} for the column types that differ
// between SQLite and Postgres.
const schemaV001 = `
CREATE TABLE site (
	id          {{ID}},
	url         TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL CHECK (status IN ('INDEXING', 'INDEXED', 'FAILED')),
	status_time TIMESTAMP NOT NULL,
	last_error  TEXT
);

CREATE TABLE page (
	id      {{ID}},
	site_id BIGINT NOT NULL REFERENCES site(id) ON DELETE CASCADE,
	path    TEXT NOT NULL,
	code    INTEGER NOT NULL,
	content TEXT NOT NULL,
	UNIQUE (site_id, path)
);

CREATE TABLE lemma (
	id        {{ID}},
	site_id   BIGINT NOT NULL REFERENCES site(id) ON DELETE CASCADE,
	lemma     TEXT NOT NULL,
	frequency INTEGER NOT NULL CHECK (frequency >= 0),
	UNIQUE (site_id, lemma)
);

CREATE TABLE search_index (
	id       {{ID}},
	page_id  BIGINT NOT NULL REFERENCES page(id) ON DELETE CASCADE,
	lemma_id BIGINT NOT NULL REFERENCES lemma(id) ON DELETE CASCADE,
	rank     {{REAL}} NOT NULL CHECK (rank >= 0),
	UNIQUE (page_id, lemma_id)
);

CREATE INDEX idx_lemma_lemma ON lemma(lemma);
CREATE INDEX idx_search_index_lemma ON search_index(lemma_id)
`

func migrateV001(ctx context.Context, tx *sql.Tx, d dialect) error {
	schema := strings.NewReplacer("{{ID}}", d.idColumn, "{{REAL}}", d.realType).Replace(schemaV001)
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
