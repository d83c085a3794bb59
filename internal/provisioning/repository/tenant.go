package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/timottowitz/obelisk-backend/internal/provisioning/domain"
	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/errors"
	"github.com/timottowitz/obelisk-backend/pkg/httputil"
)

// TenantRepository handles the public tenant registry
type TenantRepository struct {
	db *database.DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *database.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// CreateIfAbsent inserts a tenant row, or returns the existing row when the
// external org ID is already registered. Webhook redelivery is expected, so
// the conflict is handled explicitly with ON CONFLICT DO NOTHING rather
// than surfaced as an error. The returned bool reports whether this call
// created the row.
func (r *TenantRepository) CreateIfAbsent(ctx context.Context, t *domain.Tenant) (bool, error) {
	query := `
		INSERT INTO public.tenants (clerk_org_id, name, slug, schema_name, subscription_tier, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (clerk_org_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		t.OrgID, t.Name, t.Slug, t.SchemaName, t.SubscriptionTier, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)

	if err == nil {
		return true, nil
	}
	// ON CONFLICT only absorbs the org-ID key. A distinct org colliding on
	// the derived slug still raises a unique violation; surface it as a
	// Conflict so the caller can retry with a disambiguated slug.
	if database.UniqueViolationConstraint(err) == "tenants_slug_key" {
		return false, errors.Conflict(fmt.Sprintf("slug %s is already in use", t.Slug))
	}
	if err != sql.ErrNoRows {
		return false, err
	}

	// Conflict: a previous delivery already registered this org. Continue
	// with the existing row; its schema name is authoritative.
	existing, err := r.GetByOrgID(ctx, t.OrgID)
	if err != nil {
		return false, err
	}
	*t = *existing
	return false, nil
}

// GetByOrgID returns the tenant for an external org ID
func (r *TenantRepository) GetByOrgID(ctx context.Context, orgID string) (*domain.Tenant, error) {
	var t domain.Tenant
	query := `
		SELECT id, clerk_org_id, name, slug, schema_name, subscription_tier, status, created_at, updated_at
		FROM public.tenants
		WHERE clerk_org_id = $1
	`
	err := r.db.GetContext(ctx, &t, query, orgID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("tenant")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateName updates the display name of the tenant for an external org ID.
// A missing tenant is not an error: organization.updated can arrive before
// organization.created on out-of-order delivery. The bool reports whether a
// row was updated.
func (r *TenantRepository) UpdateName(ctx context.Context, orgID, name string) (bool, error) {
	query := `
		UPDATE public.tenants
		SET name = $2, updated_at = NOW()
		WHERE clerk_org_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, orgID, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ResolveByOrgID implements httputil.TenantResolver for the session
// middleware.
func (r *TenantRepository) ResolveByOrgID(ctx context.Context, orgID string) (*httputil.TenantInfo, error) {
	t, err := r.GetByOrgID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TenantStatusActive {
		return nil, errors.Forbidden("tenant is not active")
	}
	return &httputil.TenantInfo{
		ID:         t.ID,
		OrgID:      t.OrgID,
		Slug:       t.Slug,
		SchemaName: t.SchemaName,
	}, nil
}
