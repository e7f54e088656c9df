package storage

import (
	"fmt"

	"github.com/OCAP2/globeview/internal/database"
	"github.com/OCAP2/globeview/internal/storage/memory"
	postgresstorage "github.com/OCAP2/globeview/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/globeview/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// Config selects and configures a backend.
type Config struct {
	Type     string                  `json:"type" mapstructure:"type"`
	Memory   memory.Config           `json:"memory" mapstructure:"memory"`
	SQLite   sqlitestorage.Config    `json:"sqlite" mapstructure:"sqlite"`
	Postgres database.PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg Config, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgresstorage.New(cfg.Postgres, log), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, log), nil
	case "memory", "":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
