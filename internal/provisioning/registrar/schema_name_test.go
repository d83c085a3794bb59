package registrar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/timottowitz/obelisk-backend/pkg/database"
)

func TestDeriveSchemaName_Deterministic(t *testing.T) {
	a := DeriveSchemaName("org_2abc123XYZ")
	b := DeriveSchemaName("org_2abc123XYZ")
	assert.Equal(t, a, b)
}

func TestDeriveSchemaName_ValidIdentifier(t *testing.T) {
	inputs := []string{
		"org_2abc123XYZ",
		"org_UPPER",
		"org-with-dashes",
		"org.with.dots",
		"日本語org",
		"",
		strings.Repeat("x", 200),
	}
	for _, in := range inputs {
		name := DeriveSchemaName(in)
		assert.True(t, database.ValidIdentifier(name), "derived name %q from %q must be a valid identifier", name, in)
		assert.True(t, strings.HasPrefix(name, "org_"), "derived name %q must carry the org_ prefix", name)
	}
}

func TestDeriveSchemaName_DistinctForCaseVariants(t *testing.T) {
	// Sanitizing lowercases, so these collide without the digest suffix.
	a := DeriveSchemaName("org_ABC")
	b := DeriveSchemaName("org_abc")
	assert.NotEqual(t, a, b)

	// Punctuation collapses to underscore the same way.
	c := DeriveSchemaName("org-x.y")
	d := DeriveSchemaName("org.x-y")
	assert.NotEqual(t, c, d)
}

func TestDeriveSchemaName_LengthBounded(t *testing.T) {
	name := DeriveSchemaName(strings.Repeat("org_very_long_identifier", 10))
	assert.LessOrEqual(t, len(name), 63)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Acme Legal LLP":    "acme-legal-llp",
		"  Smith & Jones  ": "smith-jones",
		"UPPER":             "upper",
		"already-a-slug":    "already-a-slug",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "Slugify(%q)", in)
	}
}

func TestMapRole(t *testing.T) {
	assert.Equal(t, "owner", MapRole("org:admin"))
	assert.Equal(t, "owner", MapRole("admin"))
	assert.Equal(t, "client", MapRole("org:member"))
	assert.Equal(t, "client", MapRole("basic_member"))
	assert.Equal(t, "client", MapRole(""))
}
