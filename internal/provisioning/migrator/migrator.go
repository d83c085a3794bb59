// Package migrator applies versioned schema migrations to per-tenant
// schemas: ordered by filename, at most once per (schema, filename), each
// file in its own transaction together with its ledger row.
package migrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/errors"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
)

// SchemaToken is the placeholder in migration bodies that is replaced with
// the target schema name before execution.
const SchemaToken = "{{SCHEMA_NAME}}"

// File is one versioned migration: a sortable filename and a SQL body
// containing the schema-name token.
type File struct {
	Filename string `db:"filename"`
	SQL      string `db:"sql_body"`
}

// Source provides the full ordered set of migration files.
type Source interface {
	List(ctx context.Context) ([]File, error)
}

// SchemaExposer makes a schema's tables visible through the data-API layer.
// Invoked once after each committed migration; a failure aborts the run,
// since downstream seeding and application traffic depend on exposure.
type SchemaExposer interface {
	Expose(ctx context.Context, schema string) error
}

const createLedgerTable = `
	CREATE TABLE IF NOT EXISTS public.tenant_migrations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		schema_name VARCHAR(63) NOT NULL,
		filename TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (schema_name, filename)
	)`

const insertLedgerRow = `
	INSERT INTO public.tenant_migrations (schema_name, filename)
	VALUES ($1, $2)`

const selectApplied = `
	SELECT filename FROM public.tenant_migrations
	WHERE schema_name = $1`

// errAppliedConcurrently marks a ledger insert that lost the race against
// another run applying the same file. The loser's transaction rolls back,
// so the migration SQL is not committed twice.
var errAppliedConcurrently = stderrors.New("migration applied by concurrent run")

// Migrator is the idempotent, ordered migration runner.
type Migrator struct {
	db      *database.DB
	source  Source
	exposer SchemaExposer
	logger  *logger.Logger
}

// New creates a new migrator
func New(db *database.DB, source Source, exposer SchemaExposer, log *logger.Logger) *Migrator {
	return &Migrator{
		db:      db,
		source:  source,
		exposer: exposer,
		logger:  log.WithComponent("migrator"),
	}
}

// Run brings the target schema up to date. It creates the schema if
// absent, applies every not-yet-applied file in filename order, and
// returns the number of files applied in this run. Re-running against a
// fully migrated schema performs zero writes and returns (0, nil), which
// is what makes webhook redelivery safe.
//
// A failing migration aborts the run: schema evolution is strictly
// ordered and a gap is unsafe to skip. The ledger is left consistent, so
// a retry after the file is fixed resumes from the first unapplied file.
func (m *Migrator) Run(ctx context.Context, schema string) (int, error) {
	if !database.ValidIdentifier(schema) {
		return 0, errors.BadRequest(fmt.Sprintf("invalid schema name %q", schema))
	}
	log := m.logger.WithSchema(schema)

	if _, err := m.db.ExecContext(ctx, createLedgerTable); err != nil {
		return 0, fmt.Errorf("failed to ensure migration ledger: %w", err)
	}

	applied, err := m.loadApplied(ctx, schema)
	if err != nil {
		return 0, err
	}

	// Schema may exist from a prior partial run; that is not a failure.
	if _, err := m.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return 0, fmt.Errorf("failed to create schema %s: %w", schema, err)
	}

	files, err := m.source.List(ctx)
	if err != nil {
		return 0, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })

	count := 0
	for _, f := range files {
		if applied[f.Filename] {
			continue
		}

		err := m.applyOne(ctx, schema, f)
		if stderrors.Is(err, errAppliedConcurrently) {
			log.Info().Str("filename", f.Filename).Msg("migration applied by concurrent run, skipping")
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("filename", f.Filename).Msg("migration failed, aborting run")
			return count, errors.MigrationFailed(f.Filename, err)
		}

		count++
		log.Info().Str("filename", f.Filename).Msg("migration applied")

		if err := m.exposer.Expose(ctx, schema); err != nil {
			log.Error().Err(err).Str("filename", f.Filename).Msg("schema exposure failed, aborting run")
			return count, errors.MigrationFailed(f.Filename, fmt.Errorf("schema exposure failed: %w", err))
		}
	}

	return count, nil
}

func (m *Migrator) loadApplied(ctx context.Context, schema string) (map[string]bool, error) {
	var filenames []string
	if err := m.db.SelectContext(ctx, &filenames, selectApplied, schema); err != nil {
		return nil, fmt.Errorf("failed to load applied migrations: %w", err)
	}

	applied := make(map[string]bool, len(filenames))
	for _, f := range filenames {
		applied[f] = true
	}
	return applied, nil
}

// applyOne executes one migration and its ledger row in a single
// transaction: the file is either fully applied or not applied at all.
func (m *Migrator) applyOne(ctx context.Context, schema string, f File) error {
	body := strings.ReplaceAll(f.SQL, SchemaToken, schema)

	return m.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, body); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, insertLedgerRow, schema, f.Filename); err != nil {
			if database.IsUniqueViolation(err) {
				return errAppliedConcurrently
			}
			return err
		}

		return nil
	})
}
