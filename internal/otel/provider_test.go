package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.Equal(t, DefaultServiceName, p.ServiceName())
	assert.NotEmpty(t, p.SessionID())
	assert.NotNil(t, p.Resource(), "the session resource exists without exporting")
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutSinks(t *testing.T) {
	_, err := New(Config{Enabled: true})
	assert.ErrorIs(t, err, ErrNoSink)
}

func TestNew_FileSink(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:      true,
		ServiceName:  "globeview-test",
		BatchTimeout: time.Second,
		LogWriter:    &buf,
	})
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())

	assert.Equal(t, "globeview-test", p.ServiceName())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestResource_SessionAttributes(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	p, err := New(Config{Version: "1.2.0", SessionStart: start, Storage: "sqlite"})
	require.NoError(t, err)

	set := p.Resource().Set()
	get := func(k attribute.Key) string {
		v, ok := set.Value(k)
		require.True(t, ok, k)
		return v.AsString()
	}
	assert.Equal(t, p.SessionID(), get(SessionIDKey))
	assert.Equal(t, p.SessionID(), get(semconv.ServiceInstanceIDKey))
	assert.Equal(t, "2024-05-01T10:00:00Z", get(SessionStartKey))
	assert.Equal(t, "sqlite", get(StorageKey))
	assert.Equal(t, "1.2.0", get(semconv.ServiceVersionKey))
	assert.Equal(t, DefaultServiceName, get(semconv.ServiceNameKey))
}

func TestResource_OptionalAttributesOmitted(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	set := p.Resource().Set()
	_, ok := set.Value(StorageKey)
	assert.False(t, ok)
	_, ok = set.Value(semconv.ServiceVersionKey)
	assert.False(t, ok)
}

func TestSessionID_UniquePerProvider(t *testing.T) {
	a, err := New(Config{})
	require.NoError(t, err)
	b, err := New(Config{})
	require.NoError(t, err)
	assert.NotEqual(t, a.SessionID(), b.SessionID())
}

func TestMeter_NotNil(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)
	assert.NotNil(t, p.Meter("test"))
}
