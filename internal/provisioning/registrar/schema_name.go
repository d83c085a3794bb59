package registrar

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// DeriveSchemaName maps an external organization ID to the tenant's schema
// name. The mapping must be deterministic, injective, and yield a valid
// unquoted SQL identifier.
//
// Sanitizing alone is not injective (case-folding and punctuation collapse
// distinct IDs), so an 8-hex digest of the raw ID is appended. The
// sanitized part is truncated to keep the result inside PostgreSQL's
// 63-byte identifier limit.
func DeriveSchemaName(orgID string) string {
	sum := sha256.Sum256([]byte(orgID))

	var b strings.Builder
	for _, r := range strings.ToLower(orgID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	sanitized := b.String()
	if !strings.HasPrefix(sanitized, "org_") {
		sanitized = "org_" + sanitized
	}
	if len(sanitized) > 54 {
		sanitized = sanitized[:54]
	}

	return fmt.Sprintf("%s_%x", sanitized, sum[:4])
}

// DisambiguateSlug appends an 8-hex digest of the org ID to a slug that
// collided with another tenant's. Slugs derived from display names are not
// injective (two firms named "Smith Law" both slugify to "smith-law");
// the digest is, so the retry cannot collide with any other org. The base
// is truncated to keep the result inside the registry's 100-char column.
func DisambiguateSlug(slug, orgID string) string {
	sum := sha256.Sum256([]byte(orgID))
	if len(slug) > 91 {
		slug = slug[:91]
	}
	return fmt.Sprintf("%s-%x", slug, sum[:4])
}

// Slugify turns a display name into a URL-safe slug. Used as a fallback
// when the identity provider supplies no slug.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
