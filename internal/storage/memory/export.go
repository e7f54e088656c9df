package memory

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/OCAP2/globeview/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

type properties struct {
	Set         string            `json:"set"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type feature struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	Geometry   geom.Point `json:"geometry"`
	Properties properties `json:"properties"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

func newFeature(set string, m core.Marker) (feature, error) {
	point, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: m.Longitude, Y: m.Latitude},
		Z:    m.Elevation,
		Type: geom.DimXYZ,
	})
	if err != nil {
		return feature{}, fmt.Errorf("marker %q: %w", m.ID, err)
	}
	return feature{
		Type:     "Feature",
		ID:       m.ID,
		Geometry: point,
		Properties: properties{
			Set:         set,
			Name:        m.Name,
			Description: m.Description,
			Metadata:    m.Metadata,
		},
	}, nil
}

func (f feature) marker() (core.Marker, error) {
	c, ok := f.Geometry.Coordinates()
	if !ok {
		return core.Marker{}, fmt.Errorf("feature %q has an empty geometry", f.ID)
	}
	m := core.Marker{
		ID:          f.ID,
		Longitude:   c.XY.X,
		Latitude:    c.XY.Y,
		Name:        f.Properties.Name,
		Description: f.Properties.Description,
		Metadata:    f.Properties.Metadata,
	}
	if c.Type == geom.DimXYZ || c.Type == geom.DimXYZM {
		m.Elevation = c.Z
	}
	return m, nil
}

func readCollection(r io.Reader, compressed bool) (featureCollection, error) {
	var fc featureCollection
	if compressed {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fc, err
		}
		defer gz.Close()
		r = gz
	}
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return fc, err
	}
	if fc.Type != "FeatureCollection" {
		return fc, fmt.Errorf("unexpected GeoJSON type %q", fc.Type)
	}
	return fc, nil
}

// Export writes every marker as a GeoJSON feature collection.
func (b *Backend) Export(w io.Writer) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.write(w)
}

func (b *Backend) write(w io.Writer) error {
	fc := featureCollection{Type: "FeatureCollection", Features: make([]feature, 0, len(b.order))}
	for _, id := range b.order {
		r := b.records[id]
		f, err := newFeature(r.set, r.marker)
		if err != nil {
			return err
		}
		fc.Features = append(fc.Features, f)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}

// export writes the configured file atomically. Callers hold mu.
func (b *Backend) export() error {
	dir := filepath.Dir(b.cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(b.cfg.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	var w io.Writer = bw
	var gz *gzip.Writer
	if b.cfg.CompressOutput {
		gz = gzip.NewWriter(bw)
		w = gz
	}
	if err := b.write(w); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding markers: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.cfg.Path)
}
