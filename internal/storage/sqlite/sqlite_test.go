package sqlitestorage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/globeview/internal/database"
	"github.com/OCAP2/globeview/internal/model"
	"github.com/OCAP2/globeview/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "landmarks.db")
	ctx := context.Background()
	markers := []core.Marker{{ID: "petra", Longitude: 35.4444, Latitude: 30.3285, Name: "Petra"}}

	b := New(Config{Path: path}, zerolog.Nop())
	require.NoError(t, b.Init())
	require.NoError(t, b.SaveMarkers(ctx, "wonders", markers))
	require.NoError(t, b.Close())

	reopened := New(Config{Path: path}, zerolog.Nop())
	require.NoError(t, reopened.Init())
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.LoadMarkers(ctx)
	require.NoError(t, err)
	assert.Equal(t, markers, got)
}

func TestMemoryBackend_DumpOnClose(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "dump.db")
	ctx := context.Background()

	b := New(Config{DumpPath: dump, DumpInterval: time.Hour}, zerolog.Nop())
	require.NoError(t, b.Init())
	require.NoError(t, b.SaveMarkers(ctx, "wonders", []core.Marker{{ID: "machu", Longitude: -72.545, Latitude: -13.1631}}))
	require.NoError(t, b.Close())
	require.FileExists(t, dump)

	db, err := database.OpenSqlite(dump)
	require.NoError(t, err)
	var rows []model.Landmark
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "machu", rows[0].MarkerID)
}

func TestMemoryBackend_PeriodicDump(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "dump.db")

	b := New(Config{DumpPath: dump, DumpInterval: 20 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	assert.Eventually(t, func() bool {
		return fileExists(dump)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDump_Uninitialized(t *testing.T) {
	b := New(Config{DumpPath: "x.db"}, zerolog.Nop())
	assert.Error(t, b.Dump())
}
