package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Tenant lifecycle events (published by the provisioning service)
	EventTenantProvisioned = "tenant.provisioned"
	EventTenantUpdated     = "tenant.updated"
	EventMemberAdded       = "tenant.member.added"
	EventMemberUpdated     = "tenant.member.updated"

	// Case events
	EventCaseCreated = "case.created"
	EventCaseUpdated = "case.updated"
	EventCaseClosed  = "case.closed"

	// Task events
	EventTaskCreated   = "case.task.created"
	EventTaskUpdated   = "case.task.updated"
	EventTaskCompleted = "case.task.completed"
)

// Exchange names
const (
	ExchangeTenantEvents = "tenant.events"
	ExchangeCaseEvents   = "case.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// TenantProvisionedEvent is published after registrar, migrator and seeder
// have all completed for a new organization.
type TenantProvisionedEvent struct {
	TenantID   string `json:"tenant_id"`
	OrgID      string `json:"org_id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	SchemaName string `json:"schema_name"`
	Migrations int    `json:"migrations_applied"`
}

// TenantUpdatedEvent is published when an organization's display name changes.
type TenantUpdatedEvent struct {
	TenantID string `json:"tenant_id"`
	OrgID    string `json:"org_id"`
	Name     string `json:"name"`
}

// MemberEvent is published on membership changes.
type MemberEvent struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
}

// CaseEvent is published on case lifecycle changes.
type CaseEvent struct {
	CaseID     string `json:"case_id"`
	TenantID   string `json:"tenant_id"`
	CaseNumber string `json:"case_number"`
	Title      string `json:"title"`
	Status     string `json:"status"`
}

// TaskEvent is published on task lifecycle changes.
type TaskEvent struct {
	TaskID   string `json:"task_id"`
	CaseID   string `json:"case_id"`
	TenantID string `json:"tenant_id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
}
