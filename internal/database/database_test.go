package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OCAP2/globeview/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: "5432", Username: "u", Password: "p", Database: "globeview"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=globeview sslmode=disable", cfg.DSN())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}

func TestOpenSqlite_InMemoryMigrate(t *testing.T) {
	db, err := OpenSqlite("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	assert.True(t, db.Migrator().HasTable(&model.Landmark{}))
	assert.True(t, db.Migrator().HasTable(&model.LandmarkSet{}))
}

func TestManager_ConnectLocalAndSetup(t *testing.T) {
	m := NewManager(zerolog.Nop())
	m.SqliteFilePath = filepath.Join(t.TempDir(), "landmarks.db")

	require.NoError(t, m.ConnectLocal())
	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	require.NoError(t, m.Setup())

	require.NoError(t, m.Close())
	assert.False(t, m.IsValid)
}

func TestManager_SetupWithoutConnection(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.Error(t, m.Setup())
	assert.NoError(t, m.Close())
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := OpenSqlite("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&model.LandmarkSet{Name: "dump"}).Error)

	path := filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	restored, err := OpenSqlite(path)
	require.NoError(t, err)
	var sets []model.LandmarkSet
	require.NoError(t, restored.Find(&sets).Error)
	require.Len(t, sets, 1)
	assert.Equal(t, "dump", sets[0].Name)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := OpenSqlite("")
	require.NoError(t, err)
	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}
