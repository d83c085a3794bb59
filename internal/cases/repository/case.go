// Package repository implements tenant-scoped persistence for cases and
// tasks. Every query runs inside WithTenantSchema so the tenant's schema is
// first on the search_path; queries never name a schema explicitly.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/timottowitz/obelisk-backend/internal/cases/domain"
	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/errors"
	"github.com/timottowitz/obelisk-backend/pkg/tenant"
)

// CaseRepository handles case persistence
type CaseRepository struct {
	db *database.DB
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *database.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// CaseFilter narrows List results
type CaseFilter struct {
	Status     string
	CaseTypeID string
	AssignedTo string
	Search     string
	Page       int
	PerPage    int
}

// Create inserts a new case
func (r *CaseRepository) Create(ctx context.Context, c *domain.Case) error {
	schema, err := tenant.TenantSchema(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cases (case_number, title, description, case_type_id, status, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	return r.db.WithTenantSchema(ctx, schema, func(ctx context.Context) error {
		err := r.db.QueryRowxContext(ctx, query,
			c.CaseNumber, c.Title, c.Description, c.CaseTypeID, c.Status, c.AssignedTo,
		).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return errors.Conflict(fmt.Sprintf("case number %s already exists", c.CaseNumber))
			}
			return fmt.Errorf("failed to create case: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a case by ID
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	schema, err := tenant.TenantSchema(ctx)
	if err != nil {
		return nil, err
	}

	var c domain.Case
	err = r.db.WithTenantSchema(ctx, schema, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &c, "SELECT * FROM cases WHERE id = $1", id)
	})
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("case")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return &c, nil
}

// List retrieves cases matching the filter, newest first
func (r *CaseRepository) List(ctx context.Context, filter CaseFilter) ([]domain.Case, int64, error) {
	schema, err := tenant.TenantSchema(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	argN := 1

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, filter.Status)
		argN++
	}
	if filter.CaseTypeID != "" {
		where += fmt.Sprintf(" AND case_type_id = $%d", argN)
		args = append(args, filter.CaseTypeID)
		argN++
	}
	if filter.AssignedTo != "" {
		where += fmt.Sprintf(" AND assigned_to = $%d", argN)
		args = append(args, filter.AssignedTo)
		argN++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (title ILIKE $%d OR case_number ILIKE $%d)", argN, argN)
		args = append(args, "%"+filter.Search+"%")
		argN++
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 || filter.PerPage > 100 {
		filter.PerPage = 20
	}
	offset := (filter.Page - 1) * filter.PerPage

	var cases []domain.Case
	var total int64
	err = r.db.WithTenantSchema(ctx, schema, func(ctx context.Context) error {
		countQuery := "SELECT COUNT(*) FROM cases " + where
		if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
			return fmt.Errorf("failed to count cases: %w", err)
		}

		listQuery := fmt.Sprintf(
			"SELECT * FROM cases %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
			where, argN, argN+1,
		)
		listArgs := append(args, filter.PerPage, offset)
		if err := r.db.SelectContext(ctx, &cases, listQuery, listArgs...); err != nil {
			return fmt.Errorf("failed to list cases: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return cases, total, nil
}

// Update modifies a case's mutable fields
func (r *CaseRepository) Update(ctx context.Context, c *domain.Case) error {
	schema, err := tenant.TenantSchema(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE cases
		SET title = $1, description = $2, case_type_id = $3, status = $4,
		    assigned_to = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`
	return r.db.WithTenantSchema(ctx, schema, func(ctx context.Context) error {
		err := r.db.QueryRowxContext(ctx, query,
			c.Title, c.Description, c.CaseTypeID, c.Status, c.AssignedTo, c.ID,
		).Scan(&c.UpdatedAt)
		if err == sql.ErrNoRows {
			return errors.NotFound("case")
		}
		if err != nil {
			return fmt.Errorf("failed to update case: %w", err)
		}
		return nil
	})
}

// NextCaseNumber allocates the next case number for the given year, e.g.
// "2026-00042". The sequence is per tenant because it lives in the tenant
// schema.
func (r *CaseRepository) NextCaseNumber(ctx context.Context, now time.Time) (string, error) {
	schema, err := tenant.TenantSchema(ctx)
	if err != nil {
		return "", err
	}

	var count int64
	err = r.db.WithTenantSchema(ctx, schema, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &count,
			"SELECT COUNT(*) FROM cases WHERE case_number LIKE $1",
			fmt.Sprintf("%d-%%", now.Year()))
	})
	if err != nil {
		return "", fmt.Errorf("failed to derive case number: %w", err)
	}
	return fmt.Sprintf("%d-%05d", now.Year(), count+1), nil
}

// ListCaseTypes retrieves the tenant's case-type taxonomy
func (r *CaseRepository) ListCaseTypes(ctx context.Context) ([]domain.CaseType, error) {
	schema, err := tenant.TenantSchema(ctx)
	if err != nil {
		return nil, err
	}

	var types []domain.CaseType
	err = r.db.WithTenantSchema(ctx, schema, func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &types, "SELECT * FROM case_types ORDER BY name")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list case types: %w", err)
	}
	return types, nil
}

// ListFolderTemplates retrieves the folder templates for a case type
func (r *CaseRepository) ListFolderTemplates(ctx context.Context, caseTypeID string) ([]domain.FolderTemplate, error) {
	schema, err := tenant.TenantSchema(ctx)
	if err != nil {
		return nil, err
	}

	var templates []domain.FolderTemplate
	err = r.db.WithTenantSchema(ctx, schema, func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &templates,
			"SELECT * FROM folder_templates WHERE case_type_id = $1 ORDER BY sort_order",
			caseTypeID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list folder templates: %w", err)
	}
	return templates, nil
}
