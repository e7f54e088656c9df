// Package otel sets up the OpenTelemetry log pipeline of a globe view
// session. Every exported record carries the session resource: service
// name and version, session id and start time, and the landmark store in
// use.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultServiceName is reported when Config.ServiceName is empty.
const DefaultServiceName = "globeview"

// Resource attribute keys of a globe view session.
const (
	SessionIDKey    = attribute.Key("globeview.session.id")
	SessionStartKey = attribute.Key("globeview.session.start")
	StorageKey      = attribute.Key("globeview.storage.type")
)

// ErrNoSink is returned when exporting is enabled without a file writer or
// an OTLP endpoint.
var ErrNoSink = errors.New("otel enabled but no log writer or endpoint configured")

// Config holds OTel configuration
type Config struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"` // OTLP endpoint, optional
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`

	// Filled in by the process, not the config file.
	Version      string    `json:"-" mapstructure:"-"`
	SessionStart time.Time `json:"-" mapstructure:"-"`
	Storage      string    `json:"-" mapstructure:"-"`
	LogWriter    io.Writer `json:"-" mapstructure:"-"` // file sink for exported records
}

// Provider owns the session resource and, when enabled, the log provider
// that exports slog records with it.
type Provider struct {
	logProvider *sdklog.LoggerProvider
	config      Config
	sessionID   string
	res         *resource.Resource
}

// New builds the session resource and the configured exporters. A disabled
// config yields a provider without a log pipeline; its resource is still
// available.
func New(cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.SessionStart.IsZero() {
		cfg.SessionStart = time.Now()
	}
	p := &Provider{
		config:    cfg,
		sessionID: uuid.NewString(),
	}
	p.res = resource.NewWithAttributes(semconv.SchemaURL, p.Attributes()...)

	if !cfg.Enabled {
		return p, nil
	}

	processors, err := exporters(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(p.res)}
	for _, proc := range processors {
		opts = append(opts, sdklog.WithProcessor(proc))
	}
	p.logProvider = sdklog.NewLoggerProvider(opts...)
	return p, nil
}

// exporters returns one batch processor per configured sink.
func exporters(ctx context.Context, cfg Config) ([]sdklog.Processor, error) {
	var processors []sdklog.Processor

	if cfg.LogWriter != nil {
		fileExporter, err := stdoutlog.New(
			stdoutlog.WithWriter(cfg.LogWriter),
			stdoutlog.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		processors = append(processors, sdklog.NewBatchProcessor(fileExporter,
			sdklog.WithExportTimeout(cfg.BatchTimeout),
		))
	}

	if cfg.Endpoint != "" {
		otlpOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			otlpOpts = append(otlpOpts, otlploghttp.WithInsecure())
		}
		otlpExporter, err := otlploghttp.New(ctx, otlpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		processors = append(processors, sdklog.NewBatchProcessor(otlpExporter,
			sdklog.WithExportTimeout(cfg.BatchTimeout),
		))
	}

	if len(processors) == 0 {
		return nil, ErrNoSink
	}
	return processors, nil
}

// Attributes returns the session attributes attached to every record.
// Empty version and storage values are left out.
func (p *Provider) Attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(p.config.ServiceName),
		semconv.ServiceInstanceID(p.sessionID),
		SessionIDKey.String(p.sessionID),
		SessionStartKey.String(p.config.SessionStart.UTC().Format(time.RFC3339)),
	}
	if p.config.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(p.config.Version))
	}
	if p.config.Storage != "" {
		attrs = append(attrs, StorageKey.String(p.config.Storage))
	}
	return attrs
}

// Resource returns the session resource.
func (p *Provider) Resource() *resource.Resource {
	return p.res
}

// LoggerProvider returns the log provider for use with otelslog bridge.
// Returns nil if OTel is not enabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// SessionID identifies this globe view session in exported records.
func (p *Provider) SessionID() string {
	return p.sessionID
}

// Meter returns a meter from the global meter provider, which is a no-op
// unless the embedding application installs one.
func (p *Provider) Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Flush forces a flush of all pending logs.
func (p *Provider) Flush(ctx context.Context) error {
	if p.logProvider == nil {
		return nil
	}
	if err := p.logProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("log flush failed: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the log provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.logProvider == nil {
		return nil
	}
	if err := p.logProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("log shutdown failed: %w", err)
	}
	return nil
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}

// ServiceName returns the reported service name.
func (p *Provider) ServiceName() string {
	return p.config.ServiceName
}
