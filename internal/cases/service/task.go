package service

import (
	"context"
	"time"

	"github.com/timottowitz/obelisk-backend/internal/cases/domain"
	"github.com/timottowitz/obelisk-backend/internal/cases/repository"
	"github.com/timottowitz/obelisk-backend/pkg/errors"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
	"github.com/timottowitz/obelisk-backend/pkg/messaging"
)

// CreateTaskRequest is the payload for creating a task
type CreateTaskRequest struct {
	CategoryID  *string    `json:"category_id" validate:"omitempty,uuid"`
	Title       string     `json:"title" validate:"required,min=1,max=500"`
	Description string     `json:"description" validate:"max=10000"`
	AssignedTo  *string    `json:"assigned_to" validate:"omitempty,uuid"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateTaskRequest is the payload for updating a task. Nil fields are left
// unchanged.
type UpdateTaskRequest struct {
	CategoryID  *string    `json:"category_id" validate:"omitempty,uuid"`
	Title       *string    `json:"title" validate:"omitempty,min=1,max=500"`
	Description *string    `json:"description" validate:"omitempty,max=10000"`
	Status      *string    `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	AssignedTo  *string    `json:"assigned_to" validate:"omitempty,uuid"`
	DueDate     *time.Time `json:"due_date"`
}

// TaskService handles task business logic
type TaskService struct {
	tasks  *repository.TaskRepository
	cases  *repository.CaseRepository
	events CaseEventPublisher
	logger *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(
	tasks *repository.TaskRepository,
	cases *repository.CaseRepository,
	events CaseEventPublisher,
	log *logger.Logger,
) *TaskService {
	return &TaskService{
		tasks:  tasks,
		cases:  cases,
		events: events,
		logger: log.WithComponent("task_service"),
	}
}

// Create adds a task to a case. Tasks cannot be added to closed or archived
// cases.
func (s *TaskService) Create(ctx context.Context, caseID string, req *CreateTaskRequest) (*domain.Task, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CaseStatusOpen {
		return nil, errors.Conflict("tasks can only be added to open cases")
	}

	t := &domain.Task{
		CaseID:      c.ID,
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.TaskStatusPending,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}

	s.events.TaskChanged(ctx, messaging.EventTaskCreated, t)
	return t, nil
}

// Get retrieves a task by ID
func (s *TaskService) Get(ctx context.Context, id string) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// ListByCase retrieves tasks for a case
func (s *TaskService) ListByCase(ctx context.Context, caseID string, filter repository.TaskFilter) ([]domain.Task, int64, error) {
	if _, err := s.cases.GetByID(ctx, caseID); err != nil {
		return nil, 0, err
	}
	return s.tasks.ListByCase(ctx, caseID, filter)
}

// Update applies the non-nil fields of req to the task. A transition to
// completed stamps completed_at and publishes case.task.completed; leaving
// completed clears the stamp.
func (s *TaskService) Update(ctx context.Context, id string, req *UpdateTaskRequest) (*domain.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CategoryID != nil {
		t.CategoryID = req.CategoryID
	}
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.AssignedTo != nil {
		t.AssignedTo = req.AssignedTo
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}

	completed := false
	if req.Status != nil && *req.Status != t.Status {
		if !domain.ValidTaskStatus(*req.Status) {
			return nil, errors.BadRequest("invalid task status")
		}
		switch *req.Status {
		case domain.TaskStatusCompleted:
			now := time.Now().UTC()
			t.CompletedAt = &now
			completed = true
		default:
			t.CompletedAt = nil
		}
		t.Status = *req.Status
	}

	if err := s.tasks.Update(ctx, t); err != nil {
		return nil, err
	}

	if completed {
		s.events.TaskChanged(ctx, messaging.EventTaskCompleted, t)
	} else {
		s.events.TaskChanged(ctx, messaging.EventTaskUpdated, t)
	}
	return t, nil
}

// ListCategories retrieves the tenant's task categories
func (s *TaskService) ListCategories(ctx context.Context) ([]domain.TaskCategory, error) {
	return s.tasks.ListCategories(ctx)
}
