// Package postgresstorage implements storage.Backend on Postgres, falling
// back to SQLite when the server is unreachable.
package postgresstorage

import (
	"github.com/OCAP2/globeview/internal/database"
	gormstorage "github.com/OCAP2/globeview/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Backend wraps the gorm backend with Postgres connection handling.
type Backend struct {
	*gormstorage.Backend
	cfg database.PostgresConfig
	db  *database.Manager
}

// New creates a Postgres backend. The connection is opened by Init.
func New(cfg database.PostgresConfig, log zerolog.Logger) *Backend {
	return &Backend{
		Backend: gormstorage.New(nil, log),
		cfg:     cfg,
		db:      database.NewManager(log),
	}
}

// Init connects and migrates the schema.
func (b *Backend) Init() error {
	if err := b.db.Connect(b.cfg); err != nil {
		return err
	}
	b.SetDB(b.db.DB)
	return b.db.Setup()
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	return b.db.Close()
}

// UsingFallback reports whether the backend fell back to SQLite.
func (b *Backend) UsingFallback() bool {
	return b.db.ShouldSaveLocal
}
