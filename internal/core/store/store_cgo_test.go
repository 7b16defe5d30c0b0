//go:build cgo

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merdocx/easy-pass-bot-sub000/internal/config"
)

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	db, err := Open(ctx, cfg, config.ArchiveConfig{})
	require.NoError(t, err)
	require.NotNil(t, db)
	require.Equal(t, "libsql", db.Driver())
	require.NoError(t, db.Close())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "postgres"}, config.ArchiveConfig{})
	require.Error(t, err)
}

func TestOpenRequiresPathOrURL(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "libsql"}, config.ArchiveConfig{})
	require.Error(t, err)
}
