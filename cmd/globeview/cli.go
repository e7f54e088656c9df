package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/OCAP2/globeview/internal/geo"
	"github.com/OCAP2/globeview/internal/storage"
	"github.com/OCAP2/globeview/pkg/core"
)

// parseMarkerArg parses "lon,lat,elev,id,name". The name may contain commas.
func parseMarkerArg(arg string) (core.Marker, error) {
	parts := strings.SplitN(arg, ",", 5)
	if len(parts) < 4 {
		return core.Marker{}, fmt.Errorf("expected lon,lat,elev,id[,name], got %q", arg)
	}
	point, elev, err := geo.CoordFromString(strings.Join(parts[:3], ","))
	if err != nil {
		return core.Marker{}, fmt.Errorf("%q: %w", arg, err)
	}
	coords, ok := point.Coordinates()
	if !ok {
		return core.Marker{}, fmt.Errorf("%q: %w", arg, geo.ErrInvalidCoordinates)
	}
	m := core.Marker{
		ID:        strings.TrimSpace(parts[3]),
		Longitude: coords.X,
		Latitude:  coords.Y,
		Elevation: elev,
	}
	if m.ID == "" {
		return core.Marker{}, fmt.Errorf("%q: missing id", arg)
	}
	if len(parts) == 5 {
		m.Name = strings.TrimSpace(parts[4])
	}
	return m, nil
}

func importMarkers(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: globeview import <lon,lat,elev,id,name>...")
		return nil
	}
	markers := make([]core.Marker, 0, len(args))
	for _, arg := range args {
		m, err := parseMarkerArg(arg)
		if err != nil {
			return err
		}
		markers = append(markers, m)
	}

	backend, err := openStorage()
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.SaveMarkers(ctx, storage.DefaultSet, markers); err != nil {
		return fmt.Errorf("saving markers: %w", err)
	}
	Logger.Info("Imported markers", "count", len(markers))
	fmt.Println("Imported", len(markers), "markers")
	return nil
}

func listMarkers(ctx context.Context, w io.Writer) error {
	backend, err := openStorage()
	if err != nil {
		return err
	}
	defer backend.Close()

	markers, err := backend.LoadMarkers(ctx)
	if err != nil {
		return fmt.Errorf("loading markers: %w", err)
	}
	writeMarkers(w, markers)
	return nil
}

func writeMarkers(w io.Writer, markers []core.Marker) {
	if len(markers) == 0 {
		fmt.Fprintln(w, "No markers stored")
		return
	}
	for _, m := range markers {
		fmt.Fprintf(w, "%-20s %10.5f %10.5f %8.1f  %s\n", m.ID, m.Longitude, m.Latitude, m.Elevation, m.Name)
	}
	fmt.Fprintln(w, len(markers), "markers")
}
