// Package config loads globeview.cfg.json through viper and hands out the
// typed settings of every subsystem.
package config

import (
	"fmt"

	"github.com/OCAP2/globeview/internal/api"
	"github.com/OCAP2/globeview/internal/badge"
	"github.com/OCAP2/globeview/internal/choreo"
	"github.com/OCAP2/globeview/internal/clusterpolicy"
	"github.com/OCAP2/globeview/internal/database"
	"github.com/OCAP2/globeview/internal/influx"
	"github.com/OCAP2/globeview/internal/interaction"
	"github.com/OCAP2/globeview/internal/monitor"
	"github.com/OCAP2/globeview/internal/otel"
	"github.com/OCAP2/globeview/internal/resolution"
	"github.com/OCAP2/globeview/internal/storage"
	"github.com/OCAP2/globeview/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/globeview/internal/storage/sqlite"
	"github.com/OCAP2/globeview/internal/zoom"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up by Load.
const FileName = "globeview.cfg.json"

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./globeviewlogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	res := resolution.DefaultConfig()
	viper.SetDefault("resolution.referenceWidth", res.ReferenceWidth)
	viper.SetDefault("resolution.referenceHeight", res.ReferenceHeight)
	viper.SetDefault("resolution.scaleCap", res.ScaleCap)

	cl := clusterpolicy.DefaultConfig()
	viper.SetDefault("clustering.ultraOverviewHeight", cl.UltraOverviewHeight)
	viper.SetDefault("clustering.overviewHeight", cl.OverviewHeight)
	setTierDefaults("clustering.ultraOverview", cl.UltraOverview)
	setTierDefaults("clustering.overview", cl.Overview)
	setTierDefaults("clustering.detailed", cl.Detailed)
	viper.SetDefault("clustering.debounce", cl.Debounce)
	viper.SetDefault("clustering.repeatAfter", cl.RepeatAfter)

	z := zoom.DefaultConfig()
	viper.SetDefault("zoom.footprintWidth", z.FootprintWidth)
	viper.SetDefault("zoom.footprintHeight", z.FootprintHeight)
	viper.SetDefault("zoom.metersPerPixel", z.MetersPerPixel)
	setTightnessDefaults("zoom.ultraTight", z.UltraTight)
	setTightnessDefaults("zoom.veryTight", z.VeryTight)
	setTightnessDefaults("zoom.tight", z.Tight)
	setTightnessDefaults("zoom.medium", z.Medium)
	setTightnessDefaults("zoom.loose", z.Loose)
	viper.SetDefault("zoom.crowdedCount", z.CrowdedCount)
	viper.SetDefault("zoom.crowdedReduction", z.CrowdedReduction)
	viper.SetDefault("zoom.crowdedSix.count", z.CrowdedSix.Count)
	viper.SetDefault("zoom.crowdedSix.below", z.CrowdedSix.Below)
	viper.SetDefault("zoom.crowdedSix.reduction", z.CrowdedSix.Reduction)
	viper.SetDefault("zoom.singleMultiplier", z.SingleMultiplier)
	viper.SetDefault("zoom.floor", z.Floor)
	viper.SetDefault("zoom.fitPadding", z.FitPadding)

	b := badge.DefaultConfig()
	viper.SetDefault("badge.debounce", b.Debounce)
	viper.SetDefault("badge.accent", b.Accent)
	viper.SetDefault("badge.generateTimeout", b.GenerateTimeout)
	viper.SetDefault("badge.width", b.Style.Width)
	viper.SetDefault("badge.height", b.Style.Height)

	im := interaction.DefaultConfig()
	viper.SetDefault("interaction.grace", im.Grace)
	viper.SetDefault("interaction.restoreProtection", im.RestoreProtection)
	viper.SetDefault("interaction.animationSettle", im.AnimationSettle)

	ch := choreo.DefaultConfig()
	viper.SetDefault("choreography.spinDuration", ch.SpinDuration)
	viper.SetDefault("choreography.spinSweep", ch.SpinSweep)
	viper.SetDefault("choreography.overviewFlight", ch.OverviewFlight)
	viper.SetDefault("choreography.focusFlight", ch.FocusFlight)
	viper.SetDefault("choreography.rotateRate", ch.RotateRate)

	viper.SetDefault("imageService.url", "http://localhost:5000")
	viper.SetDefault("imageService.apiKey", "")
	viper.SetDefault("imageService.timeout", "10s")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.path", "./landmarks.geojson")
	viper.SetDefault("storage.memory.compressOutput", false)
	viper.SetDefault("storage.sqlite.path", "./landmarks.db")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "0s")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "globeview")
	viper.SetDefault("storage.postgres.sslMode", "disable")
	viper.SetDefault("storage.postgres.fallbackPath", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", otel.DefaultServiceName)
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)

	in := influx.DefaultConfig()
	viper.SetDefault("influx.enabled", in.Enabled)
	viper.SetDefault("influx.url", in.URL)
	viper.SetDefault("influx.token", in.Token)
	viper.SetDefault("influx.org", in.Org)
	viper.SetDefault("influx.bucket", in.Bucket)
	viper.SetDefault("influx.backupPath", in.BackupPath)
	viper.SetDefault("influx.maxPending", in.MaxPending)
	viper.SetDefault("influx.retentionDays", in.RetentionDays)

	mon := monitor.DefaultConfig()
	viper.SetDefault("monitor.enabled", mon.Enabled)
	viper.SetDefault("monitor.interval", mon.Interval)
	viper.SetDefault("monitor.statusFile", mon.StatusFile)
}

func setTierDefaults(key string, t clusterpolicy.TierConfig) {
	viper.SetDefault(key+".baseRange", t.BaseRange)
	viper.SetDefault(key+".rangeCap", t.RangeCap)
	viper.SetDefault(key+".baseMin", t.BaseMin)
	viper.SetDefault(key+".minCap", t.MinCap)
}

func getTier(key string) clusterpolicy.TierConfig {
	return clusterpolicy.TierConfig{
		BaseRange: viper.GetInt(key + ".baseRange"),
		RangeCap:  viper.GetInt(key + ".rangeCap"),
		BaseMin:   viper.GetInt(key + ".baseMin"),
		MinCap:    viper.GetInt(key + ".minCap"),
	}
}

func setTightnessDefaults(key string, t zoom.TightnessTier) {
	viper.SetDefault(key+".below", t.Below)
	viper.SetDefault(key+".reduction", t.Reduction)
	viper.SetDefault(key+".radiusCap", t.RadiusCap)
}

func getTightness(key string) zoom.TightnessTier {
	return zoom.TightnessTier{
		Below:     viper.GetFloat64(key + ".below"),
		Reduction: viper.GetFloat64(key + ".reduction"),
		RadiusCap: viper.GetFloat64(key + ".radiusCap"),
	}
}

// GetResolutionConfig returns the reference resolution settings.
func GetResolutionConfig() resolution.Config {
	return resolution.Config{
		ReferenceWidth:  viper.GetInt("resolution.referenceWidth"),
		ReferenceHeight: viper.GetInt("resolution.referenceHeight"),
		ScaleCap:        viper.GetFloat64("resolution.scaleCap"),
	}
}

// GetClusteringConfig returns the cluster parameter tiers.
func GetClusteringConfig() clusterpolicy.Config {
	return clusterpolicy.Config{
		UltraOverviewHeight: viper.GetFloat64("clustering.ultraOverviewHeight"),
		OverviewHeight:      viper.GetFloat64("clustering.overviewHeight"),
		UltraOverview:       getTier("clustering.ultraOverview"),
		Overview:            getTier("clustering.overview"),
		Detailed:            getTier("clustering.detailed"),
		Debounce:            viper.GetDuration("clustering.debounce"),
		RepeatAfter:         viper.GetDuration("clustering.repeatAfter"),
	}
}

// GetZoomConfig returns the zoom distance constants.
func GetZoomConfig() zoom.Config {
	return zoom.Config{
		FootprintWidth:   viper.GetFloat64("zoom.footprintWidth"),
		FootprintHeight:  viper.GetFloat64("zoom.footprintHeight"),
		MetersPerPixel:   viper.GetFloat64("zoom.metersPerPixel"),
		UltraTight:       getTightness("zoom.ultraTight"),
		VeryTight:        getTightness("zoom.veryTight"),
		Tight:            getTightness("zoom.tight"),
		Medium:           getTightness("zoom.medium"),
		Loose:            getTightness("zoom.loose"),
		CrowdedCount:     viper.GetInt("zoom.crowdedCount"),
		CrowdedReduction: viper.GetFloat64("zoom.crowdedReduction"),
		CrowdedSix: zoom.CrowdedSixTier{
			Count:     viper.GetInt("zoom.crowdedSix.count"),
			Below:     viper.GetFloat64("zoom.crowdedSix.below"),
			Reduction: viper.GetFloat64("zoom.crowdedSix.reduction"),
		},
		SingleMultiplier: viper.GetFloat64("zoom.singleMultiplier"),
		Floor:            viper.GetFloat64("zoom.floor"),
		FitPadding:       viper.GetFloat64("zoom.fitPadding"),
	}
}

// GetPipelineConfig returns the cluster badge pipeline settings.
func GetPipelineConfig() badge.Config {
	style := badge.DefaultStyle()
	style.Width = viper.GetInt("badge.width")
	style.Height = viper.GetInt("badge.height")
	return badge.Config{
		Debounce:        viper.GetDuration("badge.debounce"),
		Accent:          viper.GetString("badge.accent"),
		GenerateTimeout: viper.GetDuration("badge.generateTimeout"),
		Style:           style,
	}
}

// GetInteractionConfig returns the interaction windows.
func GetInteractionConfig() interaction.Config {
	return interaction.Config{
		Grace:             viper.GetDuration("interaction.grace"),
		RestoreProtection: viper.GetDuration("interaction.restoreProtection"),
		AnimationSettle:   viper.GetDuration("interaction.animationSettle"),
	}
}

// GetChoreographyConfig returns the animation timings.
func GetChoreographyConfig() choreo.Config {
	return choreo.Config{
		SpinDuration:   viper.GetDuration("choreography.spinDuration"),
		SpinSweep:      viper.GetFloat64("choreography.spinSweep"),
		OverviewFlight: viper.GetDuration("choreography.overviewFlight"),
		FocusFlight:    viper.GetDuration("choreography.focusFlight"),
		RotateRate:     viper.GetFloat64("choreography.rotateRate"),
	}
}

// GetImageServiceConfig returns the badge image service endpoint.
func GetImageServiceConfig() api.Config {
	return api.Config{
		URL:     viper.GetString("imageService.url"),
		APIKey:  viper.GetString("imageService.apiKey"),
		Timeout: viper.GetDuration("imageService.timeout"),
	}
}

// GetStorageConfig returns the landmark store settings.
func GetStorageConfig() storage.Config {
	return storage.Config{
		Type: viper.GetString("storage.type"),
		Memory: memory.Config{
			Path:           viper.GetString("storage.memory.path"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: sqlitestorage.Config{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: database.PostgresConfig{
			Host:         viper.GetString("storage.postgres.host"),
			Port:         viper.GetString("storage.postgres.port"),
			Username:     viper.GetString("storage.postgres.username"),
			Password:     viper.GetString("storage.postgres.password"),
			Database:     viper.GetString("storage.postgres.database"),
			SSLMode:      viper.GetString("storage.postgres.sslMode"),
			FallbackPath: viper.GetString("storage.postgres.fallbackPath"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings. LogWriter is left for
// the caller.
func GetOTelConfig() otel.Config {
	return otel.Config{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the diagnostics sink settings.
func GetInfluxConfig() influx.Config {
	return influx.Config{
		Enabled:       viper.GetBool("influx.enabled"),
		URL:           viper.GetString("influx.url"),
		Token:         viper.GetString("influx.token"),
		Org:           viper.GetString("influx.org"),
		Bucket:        viper.GetString("influx.bucket"),
		BackupPath:    viper.GetString("influx.backupPath"),
		MaxPending:    viper.GetInt("influx.maxPending"),
		RetentionDays: viper.GetInt("influx.retentionDays"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() monitor.Config {
	return monitor.Config{
		Enabled:    viper.GetBool("monitor.enabled"),
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
