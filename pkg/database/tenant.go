package database

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// identifierPattern is the allow-list for schema names. Schema names cannot
// be bound as query parameters, so anything interpolated into SQL must
// match this first.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether s is a valid unquoted lowercase SQL
// identifier.
func ValidIdentifier(s string) bool {
	return len(s) <= 63 && identifierPattern.MatchString(s)
}

// WithTenantSchema executes a function with the tenant's schema on the
// search_path. This is the isolation mechanism for schema-per-tenant
// multi-tenancy.
//
// Usage in repositories:
//
//	schema, err := tenant.TenantSchema(ctx)
//	if err != nil { return err }
//	err = r.db.WithTenantSchema(ctx, schema, func(ctx context.Context) error {
//	    return r.db.GetContext(ctx, &c, "SELECT * FROM cases WHERE id = $1", id)
//	})
//
// How it works:
//  1. Starts a transaction
//  2. Sets "SET LOCAL search_path TO <schema>, public"
//  3. Stores the transaction in the context so DB query methods use it
//  4. Commits (SET LOCAL is transaction-scoped, so pooled connections come
//     back clean)
func (db *DB) WithTenantSchema(ctx context.Context, schema string, fn func(context.Context) error) error {
	if !ValidIdentifier(schema) {
		return fmt.Errorf("invalid schema name %q", schema)
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		// SET LOCAL doesn't support bind parameters; schema passed the
		// identifier allow-list above.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s, public", schema)); err != nil {
			return fmt.Errorf("failed to set search_path to %s: %w", schema, err)
		}

		txCtx := context.WithValue(ctx, txKey{}, tx)
		return fn(txCtx)
	})
}

// getTx extracts the transaction from the context if present
func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
