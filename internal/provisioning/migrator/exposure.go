package migrator

import (
	"context"
	"fmt"

	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
)

// DataAPIReloader re-exposes schemas through the database-side data API by
// notifying its reload channel. The data API re-reads the catalog on
// notification, which is what makes freshly migrated tables reachable.
type DataAPIReloader struct {
	db      *database.DB
	channel string
	logger  *logger.Logger
}

// NewDataAPIReloader creates a reloader for the given NOTIFY channel.
// The channel name is interpolated into SQL, so it must be a valid
// identifier.
func NewDataAPIReloader(db *database.DB, channel string, log *logger.Logger) (*DataAPIReloader, error) {
	if !database.ValidIdentifier(channel) {
		return nil, fmt.Errorf("invalid data-API reload channel %q", channel)
	}
	return &DataAPIReloader{
		db:      db,
		channel: channel,
		logger:  log.WithComponent("data-api-reloader"),
	}, nil
}

// Expose implements SchemaExposer
func (r *DataAPIReloader) Expose(ctx context.Context, schema string) error {
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf("NOTIFY %s, 'reload schema'", r.channel)); err != nil {
		return fmt.Errorf("failed to notify data API: %w", err)
	}

	r.logger.Debug().Str("schema", schema).Msg("data API reload requested")
	return nil
}
