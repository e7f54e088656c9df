package postgresstorage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/OCAP2/globeview/internal/database"
	"github.com/OCAP2/globeview/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachable(t *testing.T) database.PostgresConfig {
	return database.PostgresConfig{
		Host:         "127.0.0.1",
		Port:         "1",
		Username:     "postgres",
		Password:     "postgres",
		Database:     "globeview",
		FallbackPath: filepath.Join(t.TempDir(), "fallback.db"),
	}
}

func TestInit_FallsBackToSQLite(t *testing.T) {
	b := New(unreachable(t), zerolog.Nop())
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	assert.True(t, b.UsingFallback())

	ctx := context.Background()
	markers := []core.Marker{{ID: "taj", Longitude: 78.0421, Latitude: 27.1751, Name: "Taj Mahal"}}
	require.NoError(t, b.SaveMarkers(ctx, "wonders", markers))
	got, err := b.LoadMarkers(ctx)
	require.NoError(t, err)
	assert.Equal(t, markers, got)
}

func TestClose_BeforeInit(t *testing.T) {
	b := New(unreachable(t), zerolog.Nop())
	assert.NoError(t, b.Close())
}
