// Package model holds the database structures of the landmark store.
package model

import (
	"time"

	"github.com/OCAP2/globeview/pkg/core"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists every struct that represents a table.
var DatabaseModels = []any{
	&LandmarkSet{},
	&Landmark{},
}

// LandmarkSet groups landmarks imported together, e.g. one CSV or one
// import command.
type LandmarkSet struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt   time.Time `json:"createdAt"`
	Name        string    `json:"name" gorm:"size:128;uniqueIndex:idx_landmark_set_name"`
	Description string    `json:"description" gorm:"size:1024"`
}

func (*LandmarkSet) TableName() string {
	return "landmark_sets"
}

// Landmark is one persisted marker.
type Landmark struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	SetID uint        `json:"setId" gorm:"index:idx_landmark_set_id"`
	Set   LandmarkSet `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SetID;"`

	MarkerID    string            `json:"markerId" gorm:"size:128;uniqueIndex:idx_landmark_marker_id"`
	Name        string            `json:"name" gorm:"size:256"`
	Description string            `json:"description" gorm:"size:2048"`
	Longitude   float64           `json:"longitude"` // WGS84 degrees
	Latitude    float64           `json:"latitude"`  // WGS84 degrees
	Elevation   float64           `json:"elevation"` // meters above the ellipsoid
	Metadata    datatypes.JSONMap `json:"metadata"`
}

func (*Landmark) TableName() string {
	return "landmarks"
}

// LandmarkFromCore converts a marker into its database row.
func LandmarkFromCore(m core.Marker, setID uint) Landmark {
	var meta datatypes.JSONMap
	if len(m.Metadata) > 0 {
		meta = make(datatypes.JSONMap, len(m.Metadata))
		for k, v := range m.Metadata {
			meta[k] = v
		}
	}
	return Landmark{
		SetID:       setID,
		MarkerID:    m.ID,
		Name:        m.Name,
		Description: m.Description,
		Longitude:   m.Longitude,
		Latitude:    m.Latitude,
		Elevation:   m.Elevation,
		Metadata:    meta,
	}
}

// ToCore converts the row back into a marker. Non-string metadata values are
// stored as their JSON text.
func (l Landmark) ToCore() core.Marker {
	m := core.Marker{
		ID:          l.MarkerID,
		Longitude:   l.Longitude,
		Latitude:    l.Latitude,
		Elevation:   l.Elevation,
		Name:        l.Name,
		Description: l.Description,
	}
	if len(l.Metadata) > 0 {
		m.Metadata = make(map[string]string, len(l.Metadata))
		for k, v := range l.Metadata {
			m.Metadata[k] = metadataString(v)
		}
	}
	return m
}
