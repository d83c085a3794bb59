// Package service implements the case management business logic on top of
// the tenant-scoped repositories.
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

// CaseEventPublisher publishes case lifecycle events
type CaseEventPublisher interface {
	CaseChanged(ctx context.Context, eventType string, c *domain.Case)
	TaskChanged(ctx context.Context, eventType string, t *domain.Task)
}

// CreateCaseRequest is the payload for creating a case
type CreateCaseRequest struct {
	Title       string  `json:"title" validate:"required,min=1,max=500"`
	Description string  `json:"description" validate:"max=10000"`
	CaseTypeID  *string `json:"case_type_id" validate:"omitempty,uuid"`
	AssignedTo  *string `json:"assigned_to" validate:"omitempty,uuid"`
}

// UpdateCaseRequest is the payload for updating a case. Nil fields are left
// unchanged.
type UpdateCaseRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=500"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	CaseTypeID  *string `json:"case_type_id" validate:"omitempty,uuid"`
	Status      *string `json:"status" validate:"omitempty,oneof=open closed archived"`
	AssignedTo  *string `json:"assigned_to" validate:"omitempty,uuid"`
}

// CaseService handles case business logic
type CaseService struct {
	cases  *repository.CaseRepository
	events CaseEventPublisher
	logger *logger.Logger
}

// NewCaseService creates a new case service
func NewCaseService(cases *repository.CaseRepository, events CaseEventPublisher, log *logger.Logger) *CaseService {
	return &CaseService{
		cases:  cases,
		events: events,
		logger: log.WithComponent("case_service"),
	}
}

// caseNumberAttempts bounds the retry loop when concurrent creates race
// for the same case number.
const caseNumberAttempts = 3

// Create opens a new case with an allocated case number. Number allocation
// is count-based, so two concurrent creates can derive the same number; the
// loser re-derives and retries instead of surfacing the collision.
func (s *CaseService) Create(ctx context.Context, req *CreateCaseRequest) (*domain.Case, error) {
	var c *domain.Case
	for attempt := 1; ; attempt++ {
		number, err := s.cases.NextCaseNumber(ctx, time.Now())
		if err != nil {
			return nil, err
		}

		c = &domain.Case{
			CaseNumber:  number,
			Title:       req.Title,
			Description: req.Description,
			CaseTypeID:  req.CaseTypeID,
			Status:      domain.CaseStatusOpen,
			AssignedTo:  req.AssignedTo,
		}
		err = s.cases.Create(ctx, c)
		if err == nil {
			break
		}
		if errors.Is(err, errors.ErrConflict) && attempt < caseNumberAttempts {
			s.logger.Warn().Str("case_number", number).Msg("case number taken by concurrent create, re-deriving")
			continue
		}
		return nil, err
	}

	s.events.CaseChanged(ctx, messaging.EventCaseCreated, c)
	return c, nil
}

// Get retrieves a case by ID
func (s *CaseService) Get(ctx context.Context, id string) (*domain.Case, error) {
	return s.cases.GetByID(ctx, id)
}

// List retrieves cases matching the filter
func (s *CaseService) List(ctx context.Context, filter repository.CaseFilter) ([]domain.Case, int64, error) {
	return s.cases.List(ctx, filter)
}

// Update applies the non-nil fields of req to the case. Closing a case via
// status change publishes case.closed rather than case.updated.
func (s *CaseService) Update(ctx context.Context, id string, req *UpdateCaseRequest) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.Status == domain.CaseStatusArchived {
		return nil, errors.Conflict("archived cases cannot be modified")
	}

	closing := false
	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.CaseTypeID != nil {
		c.CaseTypeID = req.CaseTypeID
	}
	if req.AssignedTo != nil {
		c.AssignedTo = req.AssignedTo
	}
	if req.Status != nil && *req.Status != c.Status {
		if !domain.ValidCaseStatus(*req.Status) {
			return nil, errors.BadRequest("invalid case status")
		}
		closing = *req.Status == domain.CaseStatusClosed
		c.Status = *req.Status
	}

	if err := s.cases.Update(ctx, c); err != nil {
		return nil, err
	}

	if closing {
		s.events.CaseChanged(ctx, messaging.EventCaseClosed, c)
	} else {
		s.events.CaseChanged(ctx, messaging.EventCaseUpdated, c)
	}
	return c, nil
}

// ListCaseTypes retrieves the tenant's case-type taxonomy with folder templates
func (s *CaseService) ListCaseTypes(ctx context.Context) ([]domain.CaseType, error) {
	return s.cases.ListCaseTypes(ctx)
}

// ListFolderTemplates retrieves the folder templates for one case type
func (s *CaseService) ListFolderTemplates(ctx context.Context, caseTypeID string) ([]domain.FolderTemplate, error) {
	return s.cases.ListFolderTemplates(ctx, caseTypeID)
}
