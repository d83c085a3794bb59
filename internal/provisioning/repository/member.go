package repository

import (
	"context"

	"github.com/timottowitz/obelisk-backend/internal/provisioning/domain"
	"github.com/timottowitz/obelisk-backend/pkg/database"
)

// MemberRepository handles organization membership rows
type MemberRepository struct {
	db *database.DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *database.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// Upsert inserts or refreshes a membership keyed by (tenant, user).
// membership created and updated events share this path.
func (r *MemberRepository) Upsert(ctx context.Context, m *domain.OrganizationMember) error {
	query := `
		INSERT INTO public.organization_members (tenant_id, user_id, role, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, user_id) DO UPDATE
		SET role = EXCLUDED.role,
		    status = EXCLUDED.status,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query,
		m.TenantID, m.UserID, m.Role, m.Status,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// ListByTenant returns all members of a tenant
func (r *MemberRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.OrganizationMember, error) {
	var members []domain.OrganizationMember
	query := `
		SELECT id, tenant_id, user_id, role, status, created_at, updated_at
		FROM public.organization_members
		WHERE tenant_id = $1
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &members, query, tenantID); err != nil {
		return nil, err
	}
	return members, nil
}
