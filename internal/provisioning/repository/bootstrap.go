package repository

import (
	"context"
	"fmt"

	"github.com/timottowitz/obelisk-backend/migrations"
	"github.com/timottowitz/obelisk-backend/pkg/database"
)

// EnsurePublicSchema applies the public registry bootstrap (tenants, users,
// members, migration bookkeeping). Every statement is CREATE IF NOT EXISTS,
// so it is safe to run on every service start.
func EnsurePublicSchema(ctx context.Context, db *database.DB) error {
	files, err := migrations.Public()
	if err != nil {
		return fmt.Errorf("failed to read public bootstrap: %w", err)
	}

	for _, f := range files {
		if _, err := db.ExecContext(ctx, f.SQL); err != nil {
			return fmt.Errorf("failed to apply public bootstrap %s: %w", f.Filename, err)
		}
	}

	return nil
}
