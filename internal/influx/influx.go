// Package influx records choreography diagnostics (cluster pushes and
// post-zoom camera heights) to InfluxDB, falling back to a gzip
// line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/OCAP2/globeview/internal/monitor"
	"github.com/OCAP2/globeview/internal/queue"
	"github.com/OCAP2/globeview/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// ErrDisabled is returned by Connect when diagnostics are switched off.
var ErrDisabled = errors.New("influx diagnostics disabled")

const (
	measurementClusterPush = "cluster_push"
	measurementZoomHeight  = "zoom_height"
	measurementStatus      = "status"
)

// Config holds the InfluxDB connection and buffering settings.
type Config struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	URL        string `json:"url" mapstructure:"url"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
	// MaxPending bounds the points held between flushes.
	MaxPending int `json:"maxPending" mapstructure:"maxPending"`
	// RetentionDays applies when the bucket has to be created.
	RetentionDays int `json:"retentionDays" mapstructure:"retentionDays"`
}

// DefaultConfig returns local development settings.
func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		URL:           "http://localhost:8086",
		Token:         "supersecrettoken",
		Org:           "globeview",
		Bucket:        "choreography",
		BackupPath:    "influx_backup.lp.gz",
		MaxPending:    10000,
		RetentionDays: 30,
	}
}

// Manager buffers diagnostics points and writes them on Flush.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger

	cfg        Config
	now        func() time.Time
	pending    *queue.Queue[*influxdb2_write.Point]
	mu         sync.Mutex
	backupFile *os.File
}

// NewManager creates a manager. now stamps recorded points; nil uses time.Now.
func NewManager(cfg Config, log zerolog.Logger, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		Logger:  log,
		cfg:     cfg,
		now:     now,
		pending: queue.NewBounded[*influxdb2_write.Point](cfg.MaxPending),
	}
}

// Connect establishes the InfluxDB connection, or opens the backup file
// when the server does not answer.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL,
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Str("backupPath", m.cfg.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("creating organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: int64(m.cfg.RetentionDays) * 60 * 60 * 24,
	})
	if err != nil {
		return fmt.Errorf("creating bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// RecordClusterPush records a cluster parameter push.
func (m *Manager) RecordClusterPush(tier string, p core.ClusterParameters, cameraHeight float64) {
	point := influxdb2_write.NewPoint(
		measurementClusterPush,
		map[string]string{"tier": tier},
		map[string]any{
			"pixelRange":         p.PixelRange,
			"minimumClusterSize": p.MinimumClusterSize,
			"cameraHeight":       cameraHeight,
		},
		m.now(),
	)
	m.enqueue(point)
}

// RecordZoomHeight records the camera height reached by a zoom of the given kind.
func (m *Manager) RecordZoomHeight(kind string, height float64) {
	point := influxdb2_write.NewPoint(
		measurementZoomHeight,
		map[string]string{"kind": kind},
		map[string]any{"height": height},
		m.now(),
	)
	m.enqueue(point)
}

// RecordStatus records a monitor snapshot.
func (m *Manager) RecordStatus(s monitor.Status) {
	point := influxdb2_write.NewPoint(
		measurementStatus,
		map[string]string{
			"interaction": s.Interaction,
			"animation":   string(s.Animation),
		},
		map[string]any{
			"markers":            s.Markers,
			"cameraHeight":       s.CameraHeight,
			"pixelRange":         s.Cluster.PixelRange,
			"minimumClusterSize": s.Cluster.MinimumClusterSize,
			"pendingDiagnostics": s.PendingDiagnostics,
		},
		s.Time,
	)
	m.enqueue(point)
}

func (m *Manager) enqueue(p *influxdb2_write.Point) {
	if dropped := m.pending.Push(p); dropped > 0 {
		m.Logger.Warn().Int("dropped", dropped).Msg("Diagnostics buffer full, dropped oldest points")
	}
}

// Pending returns the number of buffered points.
func (m *Manager) Pending() int {
	return m.pending.Len()
}

// Flush writes every buffered point. Points that could not be written are
// put back and retried on the next flush.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	points := m.pending.GetAndEmpty()
	if len(points) == 0 {
		return nil
	}

	for i, p := range points {
		if err := ctx.Err(); err != nil {
			m.pending.Requeue(points[i:])
			return err
		}
		if err := m.writePoint(p); err != nil {
			m.pending.Requeue(points[i:])
			return err
		}
	}

	if m.IsValid {
		m.Writer.Flush()
		return nil
	}
	if err := m.BackupWriter.Flush(); err != nil {
		return fmt.Errorf("flushing InfluxDB backup file: %w", err)
	}
	return nil
}

func (m *Manager) writePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	line := strings.TrimRight(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.BackupWriter.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	if m.IsValid || m.BackupWriter != nil {
		errs = append(errs, m.Flush(ctx))
	}
	if m.Client != nil {
		m.Client.Close()
	}
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		errs = append(errs, m.backupFile.Close())
		m.BackupWriter = nil
	}
	return errors.Join(errs...)
}
