package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Everything that was a
// process-wide constant in earlier iterations of this analysis lives here and
// is passed into components at construction.
type Config struct {
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Coverage CoverageConfig `yaml:"coverage" mapstructure:"coverage"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// RegistryConfig configures the facility-registry client.
type RegistryConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Limit       int    `yaml:"limit" mapstructure:"limit"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	// FacilityTypeCode selects qualifying units; 2 is health facilities.
	FacilityTypeCode int `yaml:"facility_type_code" mapstructure:"facility_type_code"`
	// RatePerSec caps request rate against the registry.
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// Timeout returns the request timeout as a duration.
func (c RegistryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// EngineConfig configures the compute backend and asset store.
type EngineConfig struct {
	// Driver selects the engine implementation; "local" is the in-memory
	// backend fed from reference files.
	Driver string `yaml:"driver" mapstructure:"driver"`
	// BoundariesPath is the reference boundary shapefile for the local driver.
	BoundariesPath string `yaml:"boundaries_path" mapstructure:"boundaries_path"`
	// BoundaryNameField is the attribute carrying the country display name.
	BoundaryNameField string `yaml:"boundary_name_field" mapstructure:"boundary_name_field"`
	// Project namespaces exported asset ids.
	Project string `yaml:"project" mapstructure:"project"`
	// AssetFolder is the folder component of exported asset ids.
	AssetFolder string `yaml:"asset_folder" mapstructure:"asset_folder"`
}

// AnalysisConfig configures friction and accessibility computation.
type AnalysisConfig struct {
	MaxTimeMinutes float64 `yaml:"max_time_minutes" mapstructure:"max_time_minutes"`
	MaxSearchKm    float64 `yaml:"max_search_km" mapstructure:"max_search_km"`

	// FallbackFriction fills undefined friction pixels (min/m) so
	// propagation cannot be blocked by data gaps. Tunable; the default was
	// chosen empirically, not derived.
	FallbackFriction float64 `yaml:"fallback_friction" mapstructure:"fallback_friction"`

	// DefaultScaleM is the buffer-sizing fallback when a grid's nominal
	// scale cannot be resolved.
	DefaultScaleM float64 `yaml:"default_scale_m" mapstructure:"default_scale_m"`

	// BufferPixels scales the facility-point buffer relative to pixel size.
	BufferPixels float64 `yaml:"buffer_pixels" mapstructure:"buffer_pixels"`

	// Thresholds are the coverage time thresholds in minutes.
	Thresholds []int `yaml:"thresholds" mapstructure:"thresholds"`

	// RoadDatasets is the prioritized list of regional road datasets probed
	// in order until one intersects the boundary.
	RoadDatasets []string `yaml:"road_datasets" mapstructure:"road_datasets"`

	// Road class speeds in km/h.
	MajorRoadKmh  float64 `yaml:"major_road_kmh" mapstructure:"major_road_kmh"`
	MediumRoadKmh float64 `yaml:"medium_road_kmh" mapstructure:"medium_road_kmh"`
	MinorRoadKmh  float64 `yaml:"minor_road_kmh" mapstructure:"minor_road_kmh"`
}

// CoverageConfig configures population reconciliation.
type CoverageConfig struct {
	// TilingAreaKm2 is the boundary area above which aggregation always
	// goes through the tiling fallback.
	TilingAreaKm2 float64 `yaml:"tiling_area_km2" mapstructure:"tiling_area_km2"`
	// TileSizeDeg is the tile edge length in degrees.
	TileSizeDeg float64 `yaml:"tile_size_deg" mapstructure:"tile_size_deg"`
	// ResolutionToleranceM decides when the conservative resolution is close
	// enough to the analysis grid to be reused for the coverage join.
	ResolutionToleranceM float64 `yaml:"resolution_tolerance_m" mapstructure:"resolution_tolerance_m"`
}

// BatchConfig configures the batch orchestrator.
type BatchConfig struct {
	Concurrency      int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries       int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffSecs int `yaml:"retry_backoff_secs" mapstructure:"retry_backoff_secs"`
	ProgressEvery    int `yaml:"progress_every" mapstructure:"progress_every"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ACCESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("registry.base_url", "https://goadmin.ifrc.org/api/v2")
	v.SetDefault("registry.limit", 50000)
	v.SetDefault("registry.timeout_secs", 30)
	v.SetDefault("registry.user_agent", "Healthcare-Accessibility-Analysis/1.0")
	v.SetDefault("registry.facility_type_code", 2)
	v.SetDefault("registry.rate_per_sec", 2.0)
	v.SetDefault("engine.driver", "local")
	v.SetDefault("engine.boundary_name_field", "COUNTRY_NA")
	v.SetDefault("engine.project", "accessibility")
	v.SetDefault("engine.asset_folder", "accessibility_analysis")
	v.SetDefault("analysis.max_time_minutes", 60)
	v.SetDefault("analysis.max_search_km", 100)
	v.SetDefault("analysis.fallback_friction", 0.12)
	v.SetDefault("analysis.default_scale_m", 6000)
	v.SetDefault("analysis.buffer_pixels", 1.5)
	v.SetDefault("analysis.thresholds", []int{15, 30, 60})
	v.SetDefault("analysis.road_datasets", []string{
		"GRIP4/Central-South-America",
		"GRIP4/North-America",
		"GRIP4/Europe",
		"GRIP4/Africa",
		"GRIP4/South-East-Asia",
		"GRIP4/Oceania",
		"GRIP4/Middle-East-Central-Asia",
	})
	v.SetDefault("analysis.major_road_kmh", 50)
	v.SetDefault("analysis.medium_road_kmh", 30)
	v.SetDefault("analysis.minor_road_kmh", 25)
	v.SetDefault("coverage.tiling_area_km2", 500000)
	v.SetDefault("coverage.tile_size_deg", 1.0)
	v.SetDefault("coverage.resolution_tolerance_m", 50)
	v.SetDefault("batch.concurrency", 1)
	v.SetDefault("batch.max_retries", 2)
	v.SetDefault("batch.retry_backoff_secs", 5)
	v.SetDefault("batch.progress_every", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
