package database

import (
	"strings"
	"testing"
)

func TestValidIdentifier(t *testing.T) {
	valid := []string{
		"org_2abc_deadbeef",
		"public",
		"_leading_underscore",
		"a",
	}
	for _, s := range valid {
		if !ValidIdentifier(s) {
			t.Errorf("ValidIdentifier(%q) = false, want true", s)
		}
	}

	invalid := []string{
		"",
		"Org_Upper",
		"1starts_with_digit",
		"has-dash",
		"has space",
		"semi;colon",
		"drop table tenants",
		strings.Repeat("a", 64),
	}
	for _, s := range invalid {
		if ValidIdentifier(s) {
			t.Errorf("ValidIdentifier(%q) = true, want false", s)
		}
	}
}
