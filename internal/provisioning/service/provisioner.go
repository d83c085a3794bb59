// Package service wires the provisioning pipeline: registrar → migrator →
// seeder, strictly in that order, within the handling of a single webhook
// delivery. Each stage is safe to re-run, so the pipeline as a whole
// tolerates at-least-once delivery.
package service

import (
	"context"

	"github.com/timottowitz/obelisk-backend/internal/provisioning/domain"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/migrator"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/registrar"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/seeder"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/webhook"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
	"github.com/timottowitz/obelisk-backend/pkg/messaging"
)

// EventPublisher publishes tenant lifecycle events. Satisfied by
// messaging.Publisher; tests substitute a recorder.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Provisioner runs the full tenant-provisioning pipeline
type Provisioner struct {
	registrar *registrar.Registrar
	migrator  *migrator.Migrator
	seeder    *seeder.Seeder
	publisher EventPublisher
	caseTypes []seeder.CaseTypeConfig
	taskCats  []seeder.TaskCategory
	logger    *logger.Logger
}

// New creates a new provisioner. The seed data is captured once here and
// treated as read-only.
func New(
	reg *registrar.Registrar,
	mig *migrator.Migrator,
	seed *seeder.Seeder,
	publisher EventPublisher,
	log *logger.Logger,
) *Provisioner {
	return &Provisioner{
		registrar: reg,
		migrator:  mig,
		seeder:    seed,
		publisher: publisher,
		caseTypes: seeder.DefaultCaseTypes(),
		taskCats:  seeder.DefaultTaskCategories(),
		logger:    log.WithComponent("provisioner"),
	}
}

// ProvisionOrganization handles organization.created end to end: register
// the tenant, bring its schema up to date, seed reference data, publish
// tenant.provisioned. The event is not acknowledged as handled until all
// stages complete; a migration failure surfaces to the caller so the
// provider retries, and the retry resumes from the first unapplied file.
func (p *Provisioner) ProvisionOrganization(ctx context.Context, data *webhook.OrganizationData) (*domain.Tenant, error) {
	t, created, err := p.registrar.RegisterOrganization(ctx, data)
	if err != nil {
		return nil, err
	}

	applied, err := p.migrator.Run(ctx, t.SchemaName)
	if err != nil {
		return nil, err
	}

	// Best-effort: individual seed failures are logged inside the seeder
	// and never fail the pipeline.
	if err := p.seeder.Seed(ctx, t.SchemaName, p.caseTypes, p.taskCats); err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("tenant_id", t.ID).
		Str("schema", t.SchemaName).
		Int("migrations_applied", applied).
		Bool("created", created).
		Msg("tenant provisioned")

	if err := p.publisher.Publish(ctx, messaging.EventTenantProvisioned, messaging.TenantProvisionedEvent{
		TenantID:   t.ID,
		OrgID:      t.OrgID,
		Name:       t.Name,
		Slug:       t.Slug,
		SchemaName: t.SchemaName,
		Migrations: applied,
	}); err != nil {
		// The tenant is fully usable at this point; a lost event is not
		// worth failing the delivery over.
		p.logger.Warn().Err(err).Str("tenant_id", t.ID).Msg("failed to publish tenant.provisioned")
	}

	return t, nil
}

// RenameOrganization handles organization.updated
func (p *Provisioner) RenameOrganization(ctx context.Context, data *webhook.OrganizationData) (*domain.Tenant, error) {
	t, err := p.registrar.RenameOrganization(ctx, data)
	if err != nil || t == nil {
		return t, err
	}

	if err := p.publisher.Publish(ctx, messaging.EventTenantUpdated, messaging.TenantUpdatedEvent{
		TenantID: t.ID,
		OrgID:    t.OrgID,
		Name:     t.Name,
	}); err != nil {
		p.logger.Warn().Err(err).Str("tenant_id", t.ID).Msg("failed to publish tenant.updated")
	}

	return t, nil
}

// UpsertMembership handles organizationMembership.created / .updated
func (p *Provisioner) UpsertMembership(ctx context.Context, data *webhook.MembershipData) (*domain.OrganizationMember, error) {
	m, err := p.registrar.UpsertMembership(ctx, data)
	if err != nil {
		return nil, err
	}

	if err := p.publisher.Publish(ctx, messaging.EventMemberAdded, messaging.MemberEvent{
		TenantID: m.TenantID,
		UserID:   m.UserID,
		Role:     m.Role,
	}); err != nil {
		p.logger.Warn().Err(err).Str("tenant_id", m.TenantID).Msg("failed to publish member event")
	}

	return m, nil
}

// UpsertUser handles user.created / user.updated
func (p *Provisioner) UpsertUser(ctx context.Context, data *webhook.UserData) (*domain.User, error) {
	return p.registrar.UpsertUser(ctx, data)
}
