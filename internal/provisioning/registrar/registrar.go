// Package registrar translates identity-provider lifecycle events into
// tenant-registry state: tenants, registry users, and memberships.
package registrar

import (
	"context"
	"fmt"

	"github.com/timottowitz/obelisk-backend/internal/provisioning/domain"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/repository"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/webhook"
	"github.com/timottowitz/obelisk-backend/pkg/errors"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
)

// Registrar handles the registry side of lifecycle events
type Registrar struct {
	tenants *repository.TenantRepository
	users   *repository.UserRepository
	members *repository.MemberRepository
	logger  *logger.Logger
}

// New creates a new registrar
func New(
	tenants *repository.TenantRepository,
	users *repository.UserRepository,
	members *repository.MemberRepository,
	log *logger.Logger,
) *Registrar {
	return &Registrar{
		tenants: tenants,
		users:   users,
		members: members,
		logger:  log.WithComponent("registrar"),
	}
}

// RegisterOrganization records a new tenant for organization.created.
// Redelivered events converge on the existing row; the returned bool
// reports whether this call created the tenant.
func (r *Registrar) RegisterOrganization(ctx context.Context, data *webhook.OrganizationData) (*domain.Tenant, bool, error) {
	slug := data.Slug
	if slug == "" {
		slug = Slugify(data.Name)
	}

	t := &domain.Tenant{
		OrgID:            data.ID,
		Name:             data.Name,
		Slug:             slug,
		SchemaName:       DeriveSchemaName(data.ID),
		SubscriptionTier: "starter",
		Status:           domain.TenantStatusActive,
	}

	created, err := r.tenants.CreateIfAbsent(ctx, t)
	if errors.Is(err, errors.ErrConflict) {
		// Another tenant holds this slug. The schema name is keyed on the
		// org ID and cannot collide, so a disambiguated slug converges the
		// delivery instead of failing every retry.
		t.Slug = DisambiguateSlug(slug, data.ID)
		r.logger.Warn().
			Str("org_id", data.ID).
			Str("slug", slug).
			Str("disambiguated", t.Slug).
			Msg("slug taken by another tenant, retrying with digest suffix")
		created, err = r.tenants.CreateIfAbsent(ctx, t)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to register tenant: %w", err)
	}

	if created {
		r.logger.Info().
			Str("org_id", t.OrgID).
			Str("tenant_id", t.ID).
			Str("schema", t.SchemaName).
			Msg("tenant registered")
	} else {
		r.logger.Info().
			Str("org_id", t.OrgID).
			Str("tenant_id", t.ID).
			Msg("tenant already registered, continuing with existing row")
	}

	return t, created, nil
}

// RenameOrganization updates the tenant display name for
// organization.updated. A missing tenant is a no-op: the created event may
// not have arrived yet.
func (r *Registrar) RenameOrganization(ctx context.Context, data *webhook.OrganizationData) (*domain.Tenant, error) {
	updated, err := r.tenants.UpdateName(ctx, data.ID, data.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to update tenant name: %w", err)
	}
	if !updated {
		r.logger.Warn().Str("org_id", data.ID).Msg("organization.updated for unknown tenant, ignoring")
		return nil, nil
	}

	return r.tenants.GetByOrgID(ctx, data.ID)
}

// UpsertMembership records a membership for organizationMembership events.
// Both the tenant and the user must already exist in the registry; a
// missing one propagates NotFound, since membership cannot be recorded
// before its endpoints are created by their own webhooks.
func (r *Registrar) UpsertMembership(ctx context.Context, data *webhook.MembershipData) (*domain.OrganizationMember, error) {
	t, err := r.tenants.GetByOrgID(ctx, data.Organization.ID)
	if err != nil {
		return nil, err
	}

	u, err := r.users.GetByClerkID(ctx, data.PublicUser.UserID)
	if err != nil {
		return nil, err
	}

	m := &domain.OrganizationMember{
		TenantID: t.ID,
		UserID:   u.ID,
		Role:     MapRole(data.Role),
		Status:   "active",
	}
	if err := r.members.Upsert(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to upsert membership: %w", err)
	}

	r.logger.Info().
		Str("tenant_id", t.ID).
		Str("user_id", u.ID).
		Str("role", m.Role).
		Msg("membership recorded")

	return m, nil
}

// UpsertUser records a registry user for user.created / user.updated.
func (r *Registrar) UpsertUser(ctx context.Context, data *webhook.UserData) (*domain.User, error) {
	u := &domain.User{
		ClerkUserID: data.ID,
		Email:       data.PrimaryEmail(),
		FirstName:   data.FirstName,
		LastName:    data.LastName,
	}
	if err := r.users.Upsert(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u, nil
}

// MapRole maps the identity provider's role vocabulary onto the internal
// two-role vocabulary: administrative roles become owner, everything else
// client.
func MapRole(providerRole string) string {
	switch providerRole {
	case "org:admin", "admin":
		return domain.RoleOwner
	default:
		return domain.RoleClient
	}
}
