package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/globeview/internal/api"
	"github.com/OCAP2/globeview/internal/config"
	"github.com/OCAP2/globeview/internal/engine/sim"
	"github.com/OCAP2/globeview/internal/geo"
	"github.com/OCAP2/globeview/internal/globe"
	"github.com/OCAP2/globeview/internal/logging"
	"github.com/OCAP2/globeview/internal/monitor"
	"github.com/OCAP2/globeview/internal/timeutil"
	"github.com/OCAP2/globeview/pkg/core"
)

const frameInterval = 16 * time.Millisecond

// sampleLandmarks is played when the store is empty.
func sampleLandmarks() []core.Marker {
	return []core.Marker{
		{ID: "paris", Longitude: 2.3522, Latitude: 48.8566, Name: "Paris"},
		{ID: "berlin", Longitude: 13.405, Latitude: 52.52, Name: "Berlin"},
		{ID: "madrid", Longitude: -3.7038, Latitude: 40.4168, Name: "Madrid"},
		{ID: "rome", Longitude: 12.4964, Latitude: 41.9028, Name: "Rome"},
		{ID: "vienna", Longitude: 16.3738, Latitude: 48.2082, Name: "Vienna"},
		{ID: "tokyo", Longitude: 139.6917, Latitude: 35.6895, Name: "Tokyo"},
		{ID: "new-york", Longitude: -74.006, Latitude: 40.7128, Name: "New York"},
	}
}

type step struct {
	at   time.Duration
	name string
	run  func(s *session)
}

// session is one scripted run. Steps and frames execute on the calling
// goroutine, which acts as the engine thread.
type session struct {
	eng   *sim.Engine
	ctrl  *globe.Controller
	log   *slog.Logger
	frame func()
	badge *sim.Badge
}

func demoSteps() []step {
	return []step{
		{at: 0, name: "start", run: func(s *session) { s.ctrl.Start() }},
		{at: time.Second, name: "zoom to all", run: func(s *session) { s.ctrl.ZoomToAll() }},
		{at: 9 * time.Second, name: "form cluster", run: func(s *session) {
			members := s.ctrl.Registry().All()
			if len(members) > 3 {
				members = members[:3]
			}
			x, y := s.center()
			s.badge = s.eng.FormCluster(members, x, y)
		}},
		{at: 11 * time.Second, name: "click cluster", run: func(s *session) {
			if s.badge != nil && !s.badge.Visible() {
				s.log.Warn("cluster badge not rendered yet, click may miss")
			}
			x, y := s.center()
			s.eng.Click(x, y)
		}},
		{at: 17 * time.Second, name: "zoom back out", run: func(s *session) { s.ctrl.ZoomBackOut() }},
		{at: 23 * time.Second, name: "reset", run: func(s *session) {
			s.eng.ClearClusters()
			s.ctrl.Reset()
		}},
		{at: 27 * time.Second, name: "done", run: func(s *session) {}},
	}
}

func (s *session) center() (float64, float64) {
	vp := s.eng.Viewport()
	return float64(vp.Width) / 2, float64(vp.Height) / 2
}

func (s *session) logPose(stepName string) {
	c := geo.FromECEF(s.eng.Pose().Position)
	st := s.ctrl.Status()
	s.log.Info("demo step",
		"step", stepName,
		"longitude", c.Longitude,
		"latitude", c.Latitude,
		"height", c.Height,
		"interaction", st.Interaction,
		"animation", st.Animation,
		"pixelRange", st.Cluster.PixelRange,
		"minimumClusterSize", st.Cluster.MinimumClusterSize,
	)
}

// play runs steps as their offsets elapse, one frame per tick.
func (s *session) play(ctx context.Context, steps []step, ticks <-chan time.Time) error {
	var start time.Time
	next := 0
	for next < len(steps) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now, ok := <-ticks:
			if !ok {
				return errors.New("frame source closed")
			}
			if start.IsZero() {
				start = now
			}
			for next < len(steps) && now.Sub(start) >= steps[next].at {
				steps[next].run(s)
				s.logPose(steps[next].name)
				next++
			}
			s.frame()
		}
	}
	return nil
}

func runDemo(ctx context.Context) error {
	eng := sim.New(sim.Options{Clock: timeutil.RealClock{}, ClusterReady: true})

	cfg := globe.DefaultConfig()
	cfg.Resolution = config.GetResolutionConfig()
	cfg.Clustering = config.GetClusteringConfig()
	cfg.Zoom = config.GetZoomConfig()
	cfg.Pipeline = config.GetPipelineConfig()
	cfg.Interaction = config.GetInteractionConfig()
	cfg.Choreography = config.GetChoreographyConfig()

	opts := globe.Options{
		Config:    cfg,
		Host:      eng,
		Generator: api.NewFromConfig(config.GetImageServiceConfig()),
		Log:       SlogManager.Component("globe"),
		EventLog:  logging.NewEventLogger(ZLogger),
		OnMarkerDetail: func(m core.Marker) {
			fmt.Println("Detail:", m.ID, m.Name)
		},
	}

	diag, err := openDiagnostics(ctx)
	if err != nil {
		Logger.Warn("Diagnostics unavailable", "error", err)
	}
	if diag != nil {
		opts.Diagnostics = diag
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := diag.Close(closeCtx); err != nil {
				Logger.Warn("Closing diagnostics failed", "error", err)
			}
		}()
	}

	ctrl, err := globe.New(opts)
	if err != nil {
		return err
	}
	defer ctrl.Close()
	controller.Store(ctrl)
	defer controller.Store(nil)

	backend, err := openStorage()
	if err != nil {
		return err
	}
	err = ctrl.Load(ctx, backend)
	backend.Close()
	if err != nil {
		return err
	}
	if ctrl.Registry().Len() == 0 {
		Logger.Warn("No markers stored, playing the sample landmarks")
		ctrl.SetMarkers(sampleLandmarks())
	}
	eng.SetMarkers(ctrl.Registry().All())

	deps := monitor.Dependencies{
		Poster:   eng,
		Snapshot: ctrl.Status,
		Log:      SlogManager.Component("monitor"),
	}
	if diag != nil {
		deps.Recorder = diag
		deps.Snapshot = func() monitor.Status {
			st := ctrl.Status()
			st.PendingDiagnostics = diag.Pending()
			return st
		}
	}
	if monCfg := config.GetMonitorConfig(); monCfg.Enabled {
		mon := monitor.NewService(monCfg, deps)
		mon.Start()
		defer mon.Stop()
	}

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	s := &session{eng: eng, ctrl: ctrl, log: SlogManager.Component("demo"), frame: eng.RunFrame}
	err = s.play(ctx, demoSteps(), ticker.C)
	if errors.Is(err, context.Canceled) {
		Logger.Info("Demo interrupted")
		err = nil
	}

	for _, p := range eng.Pushes() {
		fmt.Printf("%s  pixelRange=%d minimumClusterSize=%d\n",
			p.Time.Format("15:04:05.000"), p.Params.PixelRange, p.Params.MinimumClusterSize)
	}
	fmt.Println(len(eng.Pushes()), "cluster pushes")
	return err
}
