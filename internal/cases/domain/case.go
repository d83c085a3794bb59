// Package domain defines the tenant-scoped case management entities.
// Every row here lives inside a tenant schema; none of these types carry a
// tenant ID column because the schema itself is the isolation boundary.
package domain

import "time"

// Case statuses
const (
	CaseStatusOpen     = "open"
	CaseStatusClosed   = "closed"
	CaseStatusArchived = "archived"
)

// Case is a legal matter
type Case struct {
	ID          string     `db:"id" json:"id"`
	CaseNumber  string     `db:"case_number" json:"case_number"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	CaseTypeID  *string    `db:"case_type_id" json:"case_type_id,omitempty"`
	Status      string     `db:"status" json:"status"`
	AssignedTo  *string    `db:"assigned_to" json:"assigned_to,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// CaseType is one entry of the tenant's case-type taxonomy
type CaseType struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Description string    `db:"description" json:"description"`
	Color       string    `db:"color" json:"color"`
	Icon        string    `db:"icon" json:"icon"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// FolderTemplate is a default folder attached to a case type
type FolderTemplate struct {
	ID         string    `db:"id" json:"id"`
	CaseTypeID string    `db:"case_type_id" json:"case_type_id"`
	Name       string    `db:"name" json:"name"`
	Path       string    `db:"path" json:"path"`
	ParentPath *string   `db:"parent_path" json:"parent_path,omitempty"`
	SortOrder  int       `db:"sort_order" json:"sort_order"`
	IsRequired bool      `db:"is_required" json:"is_required"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ValidCaseStatus reports whether s is a recognized case status
func ValidCaseStatus(s string) bool {
	switch s {
	case CaseStatusOpen, CaseStatusClosed, CaseStatusArchived:
		return true
	}
	return false
}
