// Package monitor periodically captures a status snapshot of the globe view,
// writes it to a status file and forwards it to a recorder.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/globeview/pkg/core"
)

// Config holds monitor settings.
type Config struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

// DefaultConfig returns a one second interval without a status file.
func DefaultConfig() Config {
	return Config{Enabled: false, Interval: time.Second}
}

// Status is a point-in-time view of the controller.
type Status struct {
	Time               time.Time              `json:"time"`
	Interaction        string                 `json:"interaction"`
	Animation          core.AnimationKind     `json:"animation"`
	Phase              core.AnimationPhase    `json:"phase"`
	Token              uint64                 `json:"token"`
	Markers            int                    `json:"markers"`
	CameraHeight       float64                `json:"cameraHeight"`
	Cluster            core.ClusterParameters `json:"cluster"`
	PendingDiagnostics int                    `json:"pendingDiagnostics"`
}

// Recorder receives every snapshot.
type Recorder interface {
	RecordStatus(s Status)
}

// Poster queues work for the engine thread.
type Poster interface {
	Post(fn func())
}

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Poster Poster
	// Snapshot runs on the engine thread.
	Snapshot func() Status
	Recorder Recorder
	Log      *slog.Logger
}

// Service manages status monitoring.
type Service struct {
	cfg  Config
	deps Dependencies

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
	last      Status
}

// NewService creates a new monitor service.
func NewService(cfg Config, deps Dependencies) *Service {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Service{cfg: cfg, deps: deps, stopChan: make(chan struct{})}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Last returns the most recent snapshot.
func (s *Service) Last() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Start launches the snapshot loop.
func (s *Service) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Log.Debug("Starting status monitor", "interval", s.cfg.Interval)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				st, ok := s.collect(stop)
				if !ok {
					return
				}
				s.Publish(st)
			}
		}
	}()
}

// collect asks the engine thread for a snapshot and waits for it.
func (s *Service) collect(stop <-chan struct{}) (Status, bool) {
	out := make(chan Status, 1)
	s.deps.Poster.Post(func() { out <- s.deps.Snapshot() })
	select {
	case st := <-out:
		return st, true
	case <-stop:
		return Status{}, false
	}
}

// Publish stores, writes and records a snapshot.
func (s *Service) Publish(st Status) {
	s.mu.Lock()
	s.last = st
	s.mu.Unlock()

	if s.cfg.StatusFile != "" {
		if err := WriteStatusFile(s.cfg.StatusFile, st); err != nil {
			s.deps.Log.Error("Error writing status file", "error", err)
		}
	}
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordStatus(st)
	}
	s.deps.Log.Debug("status",
		"interaction", st.Interaction,
		"animation", st.Animation,
		"height", st.CameraHeight,
		"pixelRange", st.Cluster.PixelRange,
		"minimumClusterSize", st.Cluster.MinimumClusterSize)
}

// Stop stops the loop and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// WriteStatusFile replaces path with the indented JSON of st.
func WriteStatusFile(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return nil
}
