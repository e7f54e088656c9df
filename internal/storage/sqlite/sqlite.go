// Package sqlitestorage implements storage.Backend on SQLite. An empty Path
// keeps the database in memory; DumpPath and DumpInterval then snapshot it to
// disk periodically via VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/globeview/internal/database"
	gormstorage "github.com/OCAP2/globeview/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// Backend wraps the gorm backend with SQLite connection handling.
type Backend struct {
	*gormstorage.Backend
	cfg Config
	log zerolog.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a SQLite backend. The database is opened by Init.
func New(cfg Config, log zerolog.Logger) *Backend {
	return &Backend{
		Backend: gormstorage.New(nil, log),
		cfg:     cfg,
		log:     log,
	}
}

// Init opens the database, migrates it and starts the dump loop.
func (b *Backend) Init() error {
	db, err := database.OpenSqlite(b.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	b.SetDB(db)
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.stopChan = make(chan struct{})
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump loop, writes a final dump and closes the database.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		b.wg.Wait()
		b.stopChan = nil
		if err := b.Dump(); err != nil {
			b.log.Error().Err(err).Msg("Final SQLite dump failed")
		}
	}
	return b.Backend.Close()
}

// Dump snapshots the database to DumpPath.
func (b *Backend) Dump() error {
	if b.DB == nil {
		return gormstorage.ErrNotInitialized
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.DB, b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug().Dur("duration", time.Since(start)).Str("path", b.cfg.DumpPath).Msg("Dumped SQLite DB to disk")
	return nil
}

func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error().Err(err).Msg("Periodic SQLite dump failed")
			}
		case <-b.stopChan:
			return
		}
	}
}
