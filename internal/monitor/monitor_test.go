package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/globeview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inlinePoster struct{}

func (inlinePoster) Post(fn func()) { fn() }

// heldPoster never runs posted work.
type heldPoster struct{}

func (heldPoster) Post(func()) {}

type mockRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *mockRecorder) RecordStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *mockRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}

func sampleStatus() Status {
	return Status{
		Time:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Interaction:  "idle",
		Animation:    core.AnimationAutoRotate,
		Phase:        core.PhaseRotate,
		Token:        4,
		Markers:      12,
		CameraHeight: 20_000_000,
		Cluster:      core.ClusterParameters{PixelRange: 80, MinimumClusterSize: 4},
	}
}

func TestPublish_WritesFileAndRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	rec := &mockRecorder{}
	s := NewService(Config{StatusFile: path}, Dependencies{Recorder: rec})

	s.Publish(sampleStatus())

	assert.Equal(t, sampleStatus(), s.Last())
	assert.Equal(t, 1, rec.count())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Status
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, sampleStatus(), got)
}

func TestPublish_ReplacesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewService(Config{StatusFile: path}, Dependencies{})

	first := sampleStatus()
	first.Interaction = "a much longer interaction state name"
	s.Publish(first)
	s.Publish(sampleStatus())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Status
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "idle", got.Interaction)
}

func TestStartStop(t *testing.T) {
	rec := &mockRecorder{}
	s := NewService(Config{Interval: 5 * time.Millisecond}, Dependencies{
		Poster:   inlinePoster{},
		Snapshot: sampleStatus,
		Recorder: rec,
	})

	s.Start()
	s.Start()
	assert.True(t, s.IsRunning())
	assert.Eventually(t, func() bool { return rec.count() >= 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	n := rec.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, rec.count(), "no snapshots after stop")
}

func TestStop_WhileWaitingForEngine(t *testing.T) {
	s := NewService(Config{Interval: time.Millisecond}, Dependencies{
		Poster:   heldPoster{},
		Snapshot: sampleStatus,
	})
	s.Start()
	time.Sleep(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a snapshot the engine never produced")
	}
}

func TestNewService_DefaultInterval(t *testing.T) {
	s := NewService(Config{}, Dependencies{})
	assert.Equal(t, time.Second, s.cfg.Interval)
}
