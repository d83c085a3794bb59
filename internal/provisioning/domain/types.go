package domain

import "time"

// Tenant statuses
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
	TenantStatusDeleted   = "deleted"
)

// Member roles. The identity provider's role vocabulary is mapped onto
// these two.
const (
	RoleOwner  = "owner"
	RoleClient = "client"
)

// Tenant is one row in the public tenant registry. SchemaName is the only
// connector between the registry and the physical per-tenant schema: it is
// unique and never changes once assigned.
type Tenant struct {
	ID               string    `db:"id" json:"id"`
	OrgID            string    `db:"clerk_org_id" json:"org_id"`
	Name             string    `db:"name" json:"name"`
	Slug             string    `db:"slug" json:"slug"`
	SchemaName       string    `db:"schema_name" json:"schema_name"`
	SubscriptionTier string    `db:"subscription_tier" json:"subscription_tier"`
	Status           string    `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// User is a row in the public user registry, keyed by the identity
// provider's user ID.
type User struct {
	ID          string    `db:"id" json:"id"`
	ClerkUserID string    `db:"clerk_user_id" json:"clerk_user_id"`
	Email       string    `db:"email" json:"email"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// OrganizationMember links a registry user to a tenant with a role.
type OrganizationMember struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      string    `db:"role" json:"role"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
