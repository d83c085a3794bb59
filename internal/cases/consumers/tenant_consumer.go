// Package consumers subscribes the case service to tenant lifecycle events.
package consumers

import (
	"context"
	"fmt"

	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
	"github.com/timottowitz/obelisk-backend/pkg/messaging"
)

// TenantEventConsumer reacts to tenant.provisioned by smoke-checking the
// new schema: the reference tables must be queryable before user traffic
// lands on them. A failed check is logged loudly but not retried forever;
// the schema is the provisioning service's responsibility.
type TenantEventConsumer struct {
	consumer *messaging.Consumer
	db       *database.DB
	logger   *logger.Logger
}

// NewTenantEventConsumer creates a consumer bound to the tenant events
// exchange.
func NewTenantEventConsumer(rmq *messaging.RabbitMQ, db *database.DB, log *logger.Logger) (*TenantEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "case-service.tenant-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeTenantEvents, "tenant.#"); err != nil {
		return nil, err
	}

	c := &TenantEventConsumer{
		consumer: consumer,
		db:       db,
		logger:   log.WithComponent("tenant_consumer"),
	}

	consumer.RegisterHandler(messaging.EventTenantProvisioned, c.handleTenantProvisioned)
	consumer.RegisterHandler(messaging.EventTenantUpdated, c.handleTenantUpdated)

	return c, nil
}

// Start starts consuming
func (c *TenantEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *TenantEventConsumer) handleTenantProvisioned(ctx context.Context, event *messaging.Event) error {
	var data messaging.TenantProvisionedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("failed to decode tenant.provisioned: %w", err)
	}

	log := c.logger.WithSchema(data.SchemaName)

	if !database.ValidIdentifier(data.SchemaName) {
		return fmt.Errorf("tenant.provisioned carries invalid schema name %q", data.SchemaName)
	}

	var caseTypes int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s.case_types", data.SchemaName)
	if err := c.db.GetContext(ctx, &caseTypes, query); err != nil {
		return fmt.Errorf("schema %s not queryable after provisioning: %w", data.SchemaName, err)
	}

	if caseTypes == 0 {
		// Seeding is best-effort upstream, so an empty taxonomy is possible
		// and worth surfacing before a user hits it.
		log.Warn().Str("tenant_id", data.TenantID).Msg("tenant provisioned with no case types")
	} else {
		log.Info().
			Str("tenant_id", data.TenantID).
			Int("case_types", caseTypes).
			Int("migrations", data.Migrations).
			Msg("tenant schema ready for case traffic")
	}

	return nil
}

func (c *TenantEventConsumer) handleTenantUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.TenantUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("failed to decode tenant.updated: %w", err)
	}
	c.logger.Info().Str("tenant_id", data.TenantID).Str("name", data.Name).Msg("tenant renamed")
	return nil
}
