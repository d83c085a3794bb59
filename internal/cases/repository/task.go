package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/timottowitz/obelisk-backend/internal/cases/domain"
	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/errors"
	"github.com/timottowitz/obelisk-backend/pkg/tenant"
)

// TaskRepository handles task persistence
type TaskRepository struct {
	db *database.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// TaskFilter narrows ListByCase results
type TaskFilter struct {
	Status     string
	AssignedTo string
	Page       int
	PerPage    int
}

// Create inserts a new task. The referenced case must exist; the foreign
// key surfaces a missing one.
func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	schema, err := tenant.TenantSchema(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (case_id, category_id, title, description, status, assigned_to, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	return r.db.WithTenantSchema(ctx, schema, func(ctx context.Context) error {
		err := r.db.QueryRowxContext(ctx, query,
			t.CaseID, t.CategoryID, t.Title, t.Description, t.Status, t.AssignedTo, t.DueDate,
		).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return errors.NotFound("case")
			}
			return fmt.Errorf("failed to create task: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	schema, err := tenant.TenantSchema(ctx)
	if err != nil {
		return nil, err
	}

	var t domain.Task
	err = r.db.WithTenantSchema(ctx, schema, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &t, "SELECT * FROM tasks WHERE id = $1", id)
	})
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("task")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &t, nil
}

// ListByCase retrieves tasks for a case matching the filter
func (r *TaskRepository) ListByCase(ctx context.Context, caseID string, filter TaskFilter) ([]domain.Task, int64, error) {
	schema, err := tenant.TenantSchema(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := "WHERE case_id = $1"
	args := []interface{}{caseID}
	argN := 2

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, filter.Status)
		argN++
	}
	if filter.AssignedTo != "" {
		where += fmt.Sprintf(" AND assigned_to = $%d", argN)
		args = append(args, filter.AssignedTo)
		argN++
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 || filter.PerPage > 100 {
		filter.PerPage = 20
	}
	offset := (filter.Page - 1) * filter.PerPage

	var tasks []domain.Task
	var total int64
	err = r.db.WithTenantSchema(ctx, schema, func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM tasks "+where, args...); err != nil {
			return fmt.Errorf("failed to count tasks: %w", err)
		}

		listQuery := fmt.Sprintf(
			"SELECT * FROM tasks %s ORDER BY due_date NULLS LAST, created_at LIMIT $%d OFFSET $%d",
			where, argN, argN+1,
		)
		listArgs := append(args, filter.PerPage, offset)
		if err := r.db.SelectContext(ctx, &tasks, listQuery, listArgs...); err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// Update modifies a task's mutable fields
func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	schema, err := tenant.TenantSchema(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE tasks
		SET category_id = $1, title = $2, description = $3, status = $4,
		    assigned_to = $5, due_date = $6, completed_at = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at
	`
	return r.db.WithTenantSchema(ctx, schema, func(ctx context.Context) error {
		err := r.db.QueryRowxContext(ctx, query,
			t.CategoryID, t.Title, t.Description, t.Status,
			t.AssignedTo, t.DueDate, t.CompletedAt, t.ID,
		).Scan(&t.UpdatedAt)
		if err == sql.ErrNoRows {
			return errors.NotFound("task")
		}
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		return nil
	})
}

// ListCategories retrieves the tenant's task categories
func (r *TaskRepository) ListCategories(ctx context.Context) ([]domain.TaskCategory, error) {
	schema, err := tenant.TenantSchema(ctx)
	if err != nil {
		return nil, err
	}

	var cats []domain.TaskCategory
	err = r.db.WithTenantSchema(ctx, schema, func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &cats, "SELECT * FROM task_categories ORDER BY name")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list task categories: %w", err)
	}
	return cats, nil
}
