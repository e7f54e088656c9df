// Package gormstorage implements storage.Backend on top of any gorm dialect.
// The sqlite and postgres backends embed it and only add connection handling.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/globeview/internal/database"
	"github.com/OCAP2/globeview/internal/model"
	"github.com/OCAP2/globeview/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotInitialized is returned when the backend has no database yet.
var ErrNotInitialized = errors.New("storage backend not initialized")

// Backend persists landmarks through gorm.
type Backend struct {
	DB  *gorm.DB
	log zerolog.Logger

	lastWrite time.Duration
}

// New wraps an open database. db may be nil until SetDB is called.
func New(db *gorm.DB, log zerolog.Logger) *Backend {
	return &Backend{DB: db, log: log}
}

// SetDB replaces the database handle.
func (b *Backend) SetDB(db *gorm.DB) {
	b.DB = db
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.DB == nil {
		return ErrNotInitialized
	}
	return database.Migrate(b.DB)
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	if b.DB == nil {
		return nil
	}
	sqlDB, err := b.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LoadMarkers returns every landmark ordered by insertion.
func (b *Backend) LoadMarkers(ctx context.Context) ([]core.Marker, error) {
	if b.DB == nil {
		return nil, ErrNotInitialized
	}
	var rows []model.Landmark
	if err := b.DB.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading landmarks: %w", err)
	}
	out := make([]core.Marker, len(rows))
	for i, r := range rows {
		out[i] = r.ToCore()
	}
	return out, nil
}

// SaveMarkers upserts markers by id inside one transaction.
func (b *Backend) SaveMarkers(ctx context.Context, set string, markers []core.Marker) error {
	if b.DB == nil {
		return ErrNotInitialized
	}
	if set == "" {
		set = "default"
	}
	start := time.Now()
	err := b.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		landmarkSet := model.LandmarkSet{Name: set}
		if err := tx.Where(model.LandmarkSet{Name: set}).FirstOrCreate(&landmarkSet).Error; err != nil {
			return fmt.Errorf("resolving set %q: %w", set, err)
		}
		if len(markers) == 0 {
			return nil
		}
		rows := make([]model.Landmark, 0, len(markers))
		for _, m := range markers {
			if m.ID == "" {
				return fmt.Errorf("marker without id in set %q", set)
			}
			rows = append(rows, model.LandmarkFromCore(m, landmarkSet.ID))
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "marker_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"set_id", "name", "description", "longitude", "latitude", "elevation", "metadata", "updated_at",
			}),
		}).Omit("Set").CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return err
	}
	b.lastWrite = time.Since(start)
	b.log.Debug().Str("set", set).Int("markers", len(markers)).Dur("duration", b.lastWrite).Msg("Saved landmarks")
	return nil
}

// GetLastDBWriteDuration returns the duration of the last save.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return b.lastWrite
}
