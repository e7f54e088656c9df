// Package memory keeps landmarks in memory and optionally persists them as a
// GeoJSON feature collection.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/OCAP2/globeview/pkg/core"
)

// Config holds in-memory storage settings.
type Config struct {
	// Path of the GeoJSON file loaded on Init and written on Close. Empty
	// keeps everything in memory.
	Path           string `json:"path" mapstructure:"path"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

type record struct {
	set    string
	marker core.Marker
}

// Backend stores landmarks in memory.
type Backend struct {
	cfg Config

	mu      sync.RWMutex
	order   []string
	records map[string]*record
	dirty   bool
}

// New creates a new memory backend
func New(cfg Config) *Backend {
	return &Backend{
		cfg:     cfg,
		records: make(map[string]*record),
	}
}

// Init loads the configured file if it exists.
func (b *Backend) Init() error {
	if b.cfg.Path == "" {
		return nil
	}
	f, err := os.Open(b.cfg.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", b.cfg.Path, err)
	}
	defer f.Close()

	fc, err := readCollection(f, b.cfg.CompressOutput)
	if err != nil {
		return fmt.Errorf("reading %s: %w", b.cfg.Path, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ft := range fc.Features {
		m, err := ft.marker()
		if err != nil {
			return fmt.Errorf("reading %s: %w", b.cfg.Path, err)
		}
		b.put(ft.Properties.Set, m)
	}
	return nil
}

// Close writes the file when markers changed since Init.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfg.Path == "" || !b.dirty {
		return nil
	}
	if err := b.export(); err != nil {
		return err
	}
	b.dirty = false
	return nil
}

// LoadMarkers returns every marker in insertion order.
func (b *Backend) LoadMarkers(ctx context.Context) ([]core.Marker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.Marker, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.records[id].marker)
	}
	return out, nil
}

// SaveMarkers inserts or replaces markers by id.
func (b *Backend) SaveMarkers(ctx context.Context, set string, markers []core.Marker) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if set == "" {
		set = "default"
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range markers {
		if m.ID == "" {
			return fmt.Errorf("marker without id in set %q", set)
		}
		b.put(set, m)
	}
	b.dirty = true
	return nil
}

// Sets returns the set name of every marker, keyed by marker id.
func (b *Backend) Sets() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.records))
	for id, r := range b.records {
		out[id] = r.set
	}
	return out
}

func (b *Backend) put(set string, m core.Marker) {
	if r, ok := b.records[m.ID]; ok {
		r.set = set
		r.marker = m
		return
	}
	b.order = append(b.order, m.ID)
	b.records[m.ID] = &record{set: set, marker: m}
}
