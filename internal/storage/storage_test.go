package storage

import (
	"context"
	"testing"

	"github.com/OCAP2/globeview/internal/storage/memory"
	postgresstorage "github.com/OCAP2/globeview/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/globeview/internal/storage/sqlite"
	"github.com/OCAP2/globeview/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Backend = (*memory.Backend)(nil)
	_ Backend = (*sqlitestorage.Backend)(nil)
	_ Backend = (*postgresstorage.Backend)(nil)
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		want    any
		wantErr bool
	}{
		{"empty defaults to memory", "", &memory.Backend{}, false},
		{"memory", "memory", &memory.Backend{}, false},
		{"sqlite", "sqlite", &sqlitestorage.Backend{}, false},
		{"postgres", "postgres", &postgresstorage.Backend{}, false},
		{"unknown", "mongodb", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(Config{Type: tt.typ}, zerolog.Nop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}
}

func TestBackends_SameBehaviour(t *testing.T) {
	markers := []core.Marker{
		{ID: "a", Longitude: 10, Latitude: 20, Name: "A"},
		{ID: "b", Longitude: -30, Latitude: -40, Elevation: 120, Name: "B", Metadata: map[string]string{"k": "v"}},
	}

	for _, typ := range []string{"memory", "sqlite"} {
		t.Run(typ, func(t *testing.T) {
			b, err := NewBackend(Config{Type: typ}, zerolog.Nop())
			require.NoError(t, err)
			require.NoError(t, b.Init())
			t.Cleanup(func() { _ = b.Close() })

			ctx := context.Background()
			require.NoError(t, b.SaveMarkers(ctx, DefaultSet, markers))
			got, err := b.LoadMarkers(ctx)
			require.NoError(t, err)
			assert.Equal(t, markers, got)
		})
	}
}
