package webhook

import (
	"encoding/json"

	"github.com/timottowitz/obelisk-backend/pkg/errors"
)

// Lifecycle event types delivered by the identity provider. Anything else
// is acknowledged without processing so the provider does not retry events
// this system intentionally ignores.
const (
	EventOrganizationCreated = "organization.created"
	EventOrganizationUpdated = "organization.updated"
	EventMembershipCreated   = "organizationMembership.created"
	EventMembershipUpdated   = "organizationMembership.updated"
	EventUserCreated         = "user.created"
	EventUserUpdated         = "user.updated"
)

// Envelope is the outer JSON shape of every delivery: a type discriminator
// and a type-dependent data payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEnvelope decodes the raw body into an envelope. Only call this after
// the signature has been verified.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.BadRequest("malformed webhook payload")
	}
	if env.Type == "" {
		return nil, errors.BadRequest("webhook payload has no type")
	}
	return &env, nil
}

// OrganizationData is the payload of organization.created / .updated.
type OrganizationData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// MembershipData is the payload of organizationMembership.created / .updated.
type MembershipData struct {
	ID           string           `json:"id"`
	Organization OrganizationData `json:"organization"`
	Role         string           `json:"role"`
	CreatedAt    int64            `json:"created_at"`
	PublicUser   PublicUserData   `json:"public_user_data"`
}

// PublicUserData identifies the member inside a membership payload.
type PublicUserData struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UserData is the payload of user.created / .updated.
type UserData struct {
	ID                    string         `json:"id"`
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
}

// EmailAddress is one entry of a user's email address list.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// PrimaryEmail returns the user's primary email address, falling back to
// the first listed address when the primary ID does not resolve.
func (u *UserData) PrimaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

// DecodeData unmarshals the envelope's data payload into v.
func (e *Envelope) DecodeData(v interface{}) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.BadRequest("malformed webhook data payload")
	}
	return nil
}
