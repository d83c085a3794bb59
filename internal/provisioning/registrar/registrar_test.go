package registrar

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timottowitz/obelisk-backend/internal/provisioning/repository"
	"github.com/timottowitz/obelisk-backend/internal/provisioning/webhook"
	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
	"github.com/timottowitz/obelisk-backend/pkg/testutil"
)

func newRegistrar(t *testing.T) (*Registrar, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	db := database.NewWithDB(mockDB.DB, logger.New("test", "test"))
	log := logger.New("test", "test")
	return New(
		repository.NewTenantRepository(db),
		repository.NewUserRepository(db),
		repository.NewMemberRepository(db),
		log,
	), mockDB
}

func TestRegisterOrganization_SlugCollisionConverges(t *testing.T) {
	reg, mockDB := newRegistrar(t)
	now := time.Now()

	// Two distinct firms named "Smith Law": the second org derives the
	// same slug as the first. The registration must still converge by
	// retrying with a digest-suffixed slug, never hard-fail the delivery.
	org := &webhook.OrganizationData{ID: "org_smith_2", Name: "Smith Law"}
	schema := DeriveSchemaName(org.ID)
	retry := DisambiguateSlug("smith-law", org.ID)

	mockDB.ExpectQuery("INSERT INTO public.tenants").
		WithArgs(org.ID, org.Name, "smith-law", schema, "starter", "active").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "tenants_slug_key"})

	mockDB.ExpectQuery("INSERT INTO public.tenants").
		WithArgs(org.ID, org.Name, retry, schema, "starter", "active").
		WillReturnRows(testutil.MockRows("id", "created_at", "updated_at").
			AddRow("44444444-4444-4444-4444-444444444444", now, now))

	tn, created, err := reg.RegisterOrganization(context.Background(), org)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, retry, tn.Slug)
	assert.Equal(t, schema, tn.SchemaName)
	mockDB.ExpectationsWereMet(t)
}

func TestDisambiguateSlug(t *testing.T) {
	a := DisambiguateSlug("smith-law", "org_smith_1")
	b := DisambiguateSlug("smith-law", "org_smith_2")

	assert.NotEqual(t, a, b, "distinct orgs get distinct slugs")
	assert.Equal(t, a, DisambiguateSlug("smith-law", "org_smith_1"), "deterministic")
	assert.True(t, strings.HasPrefix(a, "smith-law-"))

	long := DisambiguateSlug(strings.Repeat("a", 120), "org_long")
	assert.LessOrEqual(t, len(long), 100, "fits the registry slug column")
}
