// Package events publishes case lifecycle events to the message broker.
package events

import (
	"context"

	"github.com/timottowitz/obelisk-backend/internal/cases/domain"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
	"github.com/timottowitz/obelisk-backend/pkg/messaging"
	"github.com/timottowitz/obelisk-backend/pkg/tenant"
)

// Publisher emits case and task events. Publishing is fire-and-forget from
// the caller's perspective: a broker outage must not fail the request that
// already committed.
type Publisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPublisher creates a new case event publisher
func NewPublisher(p *messaging.Publisher, log *logger.Logger) *Publisher {
	return &Publisher{
		publisher: p,
		logger:    log.WithComponent("case_events"),
	}
}

// CaseChanged publishes a case lifecycle event
func (p *Publisher) CaseChanged(ctx context.Context, eventType string, c *domain.Case) {
	tenantID, _ := tenant.TenantID(ctx)
	err := p.publisher.Publish(ctx, eventType, messaging.CaseEvent{
		TenantID:   tenantID,
		CaseID:     c.ID,
		CaseNumber: c.CaseNumber,
		Title:      c.Title,
		Status:     c.Status,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("case_id", c.ID).Str("event", eventType).
			Msg("failed to publish case event")
	}
}

// TaskChanged publishes a task lifecycle event
func (p *Publisher) TaskChanged(ctx context.Context, eventType string, t *domain.Task) {
	tenantID, _ := tenant.TenantID(ctx)
	err := p.publisher.Publish(ctx, eventType, messaging.TaskEvent{
		TenantID: tenantID,
		TaskID:   t.ID,
		CaseID:   t.CaseID,
		Title:    t.Title,
		Status:   t.Status,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("task_id", t.ID).Str("event", eventType).
			Msg("failed to publish task event")
	}
}
