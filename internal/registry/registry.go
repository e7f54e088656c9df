// Package registry owns the immutable set of markers shown on the globe.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/globeview/internal/geo"
	"github.com/OCAP2/globeview/internal/storage"
	"github.com/OCAP2/globeview/pkg/core"
)

// ErrUnknownMarker is returned by Lookup for ids that are not registered.
var ErrUnknownMarker = errors.New("unknown marker")

// Rejection explains why a marker was not registered.
type Rejection struct {
	Marker core.Marker
	Reason string
}

// Registry holds the markers. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	markers []core.Marker
	byID    map[string]int
	log     *slog.Logger
}

// New creates an empty registry.
func New(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{byID: make(map[string]int), log: log}
}

// Load replaces the registry contents with the backend's markers.
func (r *Registry) Load(ctx context.Context, backend storage.Backend) ([]Rejection, error) {
	markers, err := backend.LoadMarkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading markers: %w", err)
	}
	return r.Replace(markers), nil
}

// Replace validates markers and installs the valid ones. Markers without an
// id, with invalid coordinates or with a duplicate id are rejected with a
// warning; the first occurrence of an id wins.
func (r *Registry) Replace(markers []core.Marker) []Rejection {
	var rejected []Rejection
	accepted := make([]core.Marker, 0, len(markers))
	byID := make(map[string]int, len(markers))

	for _, m := range markers {
		reason := ""
		switch _, dup := byID[m.ID]; {
		case m.ID == "":
			reason = "missing id"
		case dup:
			reason = "duplicate id"
		case !m.Valid():
			reason = geo.ErrInvalidCoordinates.Error()
		}
		if reason != "" {
			r.log.Warn("marker rejected", "marker", m.ID, "reason", reason,
				"longitude", m.Longitude, "latitude", m.Latitude)
			rejected = append(rejected, Rejection{Marker: m, Reason: reason})
			continue
		}
		byID[m.ID] = len(accepted)
		accepted = append(accepted, m)
	}

	r.mu.Lock()
	r.markers = accepted
	r.byID = byID
	r.mu.Unlock()

	r.log.Info("marker registry loaded", "markers", len(accepted), "rejected", len(rejected))
	return rejected
}

// Lookup returns the marker with the given id.
func (r *Registry) Lookup(id string) (core.Marker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[id]
	if !ok {
		return core.Marker{}, fmt.Errorf("%w: %s", ErrUnknownMarker, id)
	}
	return r.markers[i], nil
}

// All returns a copy of every marker in registration order.
func (r *Registry) All() []core.Marker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]core.Marker(nil), r.markers...)
}

// Len returns the number of registered markers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markers)
}

// Extent returns the longitude/latitude bounding box of all markers.
func (r *Registry) Extent() (geo.Extent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return geo.MarkerExtent(r.markers)
}

// Teardown drops every marker.
func (r *Registry) Teardown() {
	r.mu.Lock()
	r.markers = nil
	r.byID = make(map[string]int)
	r.mu.Unlock()
}
