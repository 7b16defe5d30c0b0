package cmd

import (
	"context"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core/store"
)

// openStore opens the configured store and applies migrations.
func openStore(ctx context.Context) (*store.Store, error) {
	db, err := store.Open(ctx, appConfig.Store, appConfig.Archive)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
