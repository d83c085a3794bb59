package repository

import (
	"context"
	"fmt"

	"github.com/timottowitz/obelisk-backend/internal/provisioning/migrator"
	"github.com/timottowitz/obelisk-backend/migrations"
	"github.com/timottowitz/obelisk-backend/pkg/database"
)

// MigrationFileRepository reads the central store of versioned per-tenant
// migration files. It implements migrator.Source.
type MigrationFileRepository struct {
	db *database.DB
}

// NewMigrationFileRepository creates a new migration file repository
func NewMigrationFileRepository(db *database.DB) *MigrationFileRepository {
	return &MigrationFileRepository{db: db}
}

// List returns all migration files in filename-lexical order. Filename
// order is apply order.
func (r *MigrationFileRepository) List(ctx context.Context) ([]migrator.File, error) {
	var files []migrator.File
	query := `
		SELECT filename, sql_body
		FROM public.migration_files
		ORDER BY filename
	`
	if err := r.db.SelectContext(ctx, &files, query); err != nil {
		return nil, fmt.Errorf("failed to list migration files: %w", err)
	}
	return files, nil
}

// SyncEmbedded loads the migration files shipped with the binary into the
// central store. Stored files are immutable, so existing filenames are left
// untouched: only new files are inserted. Runs on every service start.
func (r *MigrationFileRepository) SyncEmbedded(ctx context.Context) error {
	files, err := migrations.Tenant()
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	for _, f := range files {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO public.migration_files (filename, sql_body)
			VALUES ($1, $2)
			ON CONFLICT (filename) DO NOTHING
		`, f.Filename, f.SQL)
		if err != nil {
			return fmt.Errorf("failed to sync migration file %s: %w", f.Filename, err)
		}
	}

	return nil
}
