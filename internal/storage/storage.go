// Package storage persists the landmark registry.
package storage

import (
	"context"

	"github.com/OCAP2/globeview/pkg/core"
)

// DefaultSet is the landmark set used when none is named.
const DefaultSet = "default"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// LoadMarkers returns every stored marker in insertion order.
	LoadMarkers(ctx context.Context) ([]core.Marker, error)
	// SaveMarkers inserts or replaces markers by id, grouped under set.
	SaveMarkers(ctx context.Context, set string, markers []core.Marker) error
}
