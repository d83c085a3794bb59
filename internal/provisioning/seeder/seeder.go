// Package seeder populates freshly migrated tenant schemas with default
// reference data: the case-type taxonomy with its folder templates, and
// task categories. Seeding is best-effort: a failed item is logged and
// skipped so a later corrective run can fill the gap, unlike a migration
// failure which aborts.
package seeder

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
)

// CaseTypeConfig is one case type with its folder templates. The case type
// is the aggregate root: templates belong to it.
type CaseTypeConfig struct {
	Name        string
	DisplayName string
	Description string
	Color       string
	Icon        string
	Folders     []FolderTemplate
}

// FolderTemplate describes one default folder under a case type.
type FolderTemplate struct {
	Name       string
	Path       string
	ParentPath string
	SortOrder  int
	Required   bool
}

// TaskCategory is one default task category.
type TaskCategory struct {
	Name        string
	Description string
}

// Seeder inserts default reference data into a tenant schema. The data is
// passed in explicitly; see Defaults.
type Seeder struct {
	db     *database.DB
	logger *logger.Logger
}

// New creates a new seeder
func New(db *database.DB, log *logger.Logger) *Seeder {
	return &Seeder{
		db:     db,
		logger: log.WithComponent("seeder"),
	}
}

// Seed populates the schema with the given case types and task categories.
// Every item is check-then-insert keyed by its natural key, so retries and
// partially seeded schemas converge; unique constraints in the schema are
// the backstop for the rare concurrent double-insert. Seed never returns a
// per-item error: failures are logged and the remaining items proceed.
func (s *Seeder) Seed(ctx context.Context, schema string, caseTypes []CaseTypeConfig, categories []TaskCategory) error {
	if !database.ValidIdentifier(schema) {
		return fmt.Errorf("invalid schema name %q", schema)
	}
	log := s.logger.WithSchema(schema)

	for _, ct := range caseTypes {
		s.seedCaseType(ctx, log, schema, ct)
	}
	for _, tc := range categories {
		s.seedTaskCategory(ctx, log, schema, tc)
	}

	return nil
}

func (s *Seeder) seedCaseType(ctx context.Context, log *logger.Logger, schema string, ct CaseTypeConfig) {
	var id string
	query := fmt.Sprintf("SELECT id FROM %s.case_types WHERE name = $1", schema)
	err := s.db.GetContext(ctx, &id, query, ct.Name)

	switch {
	case err == nil:
		log.Debug().Str("case_type", ct.Name).Msg("case type already seeded, skipping insert")
	case err == sql.ErrNoRows:
		insert := fmt.Sprintf(`
			INSERT INTO %s.case_types (name, display_name, description, color, icon)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, schema)
		err = s.db.QueryRowxContext(ctx, insert, ct.Name, ct.DisplayName, ct.Description, ct.Color, ct.Icon).Scan(&id)
		if err != nil {
			log.Warn().Err(err).Str("case_type", ct.Name).Msg("failed to seed case type, skipping")
			return
		}
		log.Info().Str("case_type", ct.Name).Msg("case type seeded")
	default:
		log.Warn().Err(err).Str("case_type", ct.Name).Msg("failed to look up case type, skipping")
		return
	}

	for _, folder := range ct.Folders {
		s.seedFolderTemplate(ctx, log, schema, id, ct.Name, folder)
	}
}

func (s *Seeder) seedFolderTemplate(ctx context.Context, log *logger.Logger, schema, caseTypeID, caseTypeName string, f FolderTemplate) {
	var existing string
	query := fmt.Sprintf("SELECT id FROM %s.folder_templates WHERE case_type_id = $1 AND path = $2", schema)
	err := s.db.GetContext(ctx, &existing, query, caseTypeID, f.Path)

	if err == nil {
		return
	}
	if err != sql.ErrNoRows {
		log.Warn().Err(err).Str("case_type", caseTypeName).Str("path", f.Path).
			Msg("failed to look up folder template, skipping")
		return
	}

	var parent interface{}
	if f.ParentPath != "" {
		parent = f.ParentPath
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s.folder_templates (case_type_id, name, path, parent_path, sort_order, is_required)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, schema)
	if _, err := s.db.ExecContext(ctx, insert, caseTypeID, f.Name, f.Path, parent, f.SortOrder, f.Required); err != nil {
		log.Warn().Err(err).Str("case_type", caseTypeName).Str("path", f.Path).
			Msg("failed to seed folder template, skipping")
	}
}

func (s *Seeder) seedTaskCategory(ctx context.Context, log *logger.Logger, schema string, tc TaskCategory) {
	var existing string
	query := fmt.Sprintf("SELECT id FROM %s.task_categories WHERE name = $1", schema)
	err := s.db.GetContext(ctx, &existing, query, tc.Name)

	if err == nil {
		return
	}
	if err != sql.ErrNoRows {
		log.Warn().Err(err).Str("category", tc.Name).Msg("failed to look up task category, skipping")
		return
	}

	insert := fmt.Sprintf("INSERT INTO %s.task_categories (name, description) VALUES ($1, $2)", schema)
	if _, err := s.db.ExecContext(ctx, insert, tc.Name, tc.Description); err != nil {
		log.Warn().Err(err).Str("category", tc.Name).Msg("failed to seed task category, skipping")
		return
	}
	log.Info().Str("category", tc.Name).Msg("task category seeded")
}
