package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// TestSigningSecret is a stable signing secret for webhook tests. The key
// material is "test-signing-key-material" base64-encoded with the standard
// secret prefix.
var TestSigningSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("test-signing-key-material"))

// WebhookDelivery builds a signed webhook request body and headers for the
// given event. sign is the verifier's Sign method (or a compatible forger
// for negative tests).
type WebhookDelivery struct {
	ID        string
	Timestamp string
	Body      []byte
	Signature string
}

// NewWebhookDelivery marshals the event envelope and signs it with sign.
func NewWebhookDelivery(eventType string, data interface{}, sign func(msgID, timestamp string, body []byte) string) WebhookDelivery {
	payload, _ := json.Marshal(map[string]interface{}{
		"type": eventType,
		"data": data,
	})

	id := "msg_" + uuid.New().String()
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	return WebhookDelivery{
		ID:        id,
		Timestamp: ts,
		Body:      payload,
		Signature: sign(id, ts, payload),
	}
}

// FixtureFactory creates test fixtures with unique values
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// OrgFixture is identity-provider organization payload data
type OrgFixture struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Organization creates an organization fixture with defaults
func (f *FixtureFactory) Organization(opts ...func(*OrgFixture)) OrgFixture {
	seq := f.nextSeq()
	org := OrgFixture{
		ID:   fmt.Sprintf("org_test%04d", seq),
		Name: fmt.Sprintf("Test Firm %d", seq),
		Slug: fmt.Sprintf("test-firm-%d", seq),
	}
	for _, opt := range opts {
		opt(&org)
	}
	return org
}

// UserFixture is identity-provider user payload data
type UserFixture struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// User creates a user fixture with defaults
func (f *FixtureFactory) User(opts ...func(*UserFixture)) UserFixture {
	seq := f.nextSeq()
	u := UserFixture{
		ID:        fmt.Sprintf("user_test%04d", seq),
		FirstName: fmt.Sprintf("Test%d", seq),
		LastName:  "User",
		Email:     fmt.Sprintf("user%d@test.obelisk.legal", seq),
	}
	for _, opt := range opts {
		opt(&u)
	}
	return u
}
