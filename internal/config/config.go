// Package config loads application configuration and initializes logging.
// All scoring policy constants (severity weights, decay, thresholds) live
// here so recalibration never touches the percentile math.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Grid     GridConfig     `yaml:"grid" mapstructure:"grid"`
	Forecast ForecastConfig `yaml:"forecast" mapstructure:"forecast"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the incident store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ScoringConfig holds the weighted-impact formula and tag thresholds.
type ScoringConfig struct {
	RadiusKM            float64            `yaml:"radius_km" mapstructure:"radius_km"`
	Timezone            string             `yaml:"timezone" mapstructure:"timezone"`
	DecayRate           float64            `yaml:"decay_rate" mapstructure:"decay_rate"`
	WindowDays          int                `yaml:"window_days" mapstructure:"window_days"`
	HistoryYears        int                `yaml:"history_years" mapstructure:"history_years"`
	DayStartHour        int                `yaml:"day_start_hour" mapstructure:"day_start_hour"`
	DayEndHour          int                `yaml:"day_end_hour" mapstructure:"day_end_hour"`
	TopSubtypes         int                `yaml:"top_subtypes" mapstructure:"top_subtypes"`
	LowSafetyThreshold  float64            `yaml:"low_safety_threshold" mapstructure:"low_safety_threshold"`
	HighSafetyThreshold float64            `yaml:"high_safety_threshold" mapstructure:"high_safety_threshold"`
	NightRiskGap        float64            `yaml:"night_risk_gap" mapstructure:"night_risk_gap"`
	SeverityWeights     map[string]float64 `yaml:"severity_weights" mapstructure:"severity_weights"`
}

// GridConfig configures the benchmark grid generator and service area.
type GridConfig struct {
	ResolutionKM float64 `yaml:"resolution_km" mapstructure:"resolution_km"`
	Workers      int     `yaml:"workers" mapstructure:"workers"`
	ArtifactPath string  `yaml:"artifact_path" mapstructure:"artifact_path"`
	BoundaryPath string  `yaml:"boundary_path" mapstructure:"boundary_path"`
	MinLat       float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat       float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MinLon       float64 `yaml:"min_lon" mapstructure:"min_lon"`
	MaxLon       float64 `yaml:"max_lon" mapstructure:"max_lon"`
}

// ForecastConfig configures the forecasting engine.
type ForecastConfig struct {
	Selection  string  `yaml:"selection" mapstructure:"selection"` // "cascade" or "best"
	MinPoints  int     `yaml:"min_points" mapstructure:"min_points"`
	StableBand float64 `yaml:"stable_band" mapstructure:"stable_band"`
}

// IngestConfig configures the open-data portal download and file ingestion.
type IngestConfig struct {
	DataDir     string            `yaml:"data_dir" mapstructure:"data_dir"`
	PortalURL   string            `yaml:"portal_url" mapstructure:"portal_url"`
	PageSize    int               `yaml:"page_size" mapstructure:"page_size"`
	RatePerSec  float64           `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int               `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Datasets    map[string]string `yaml:"datasets" mapstructure:"datasets"` // name -> portal item ID
}

// GeocodeConfig configures postal-code resolution.
type GeocodeConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	CountryCode string  `yaml:"country_code" mapstructure:"country_code"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	CacheSize   int     `yaml:"cache_size" mapstructure:"cache_size"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("SAFESCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "incidents.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8001)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("scoring.radius_km", 0.8)
	v.SetDefault("scoring.timezone", "America/Toronto")
	v.SetDefault("scoring.decay_rate", 0.15)
	v.SetDefault("scoring.window_days", 365)
	v.SetDefault("scoring.history_years", 10)
	v.SetDefault("scoring.day_start_hour", 6)
	v.SetDefault("scoring.day_end_hour", 18)
	v.SetDefault("scoring.top_subtypes", 3)
	v.SetDefault("scoring.low_safety_threshold", 50.0)
	v.SetDefault("scoring.high_safety_threshold", 80.0)
	v.SetDefault("scoring.night_risk_gap", 20.0)
	v.SetDefault("scoring.severity_weights", DefaultSeverityWeights())

	v.SetDefault("grid.resolution_km", 0.2)
	v.SetDefault("grid.workers", 8)
	v.SetDefault("grid.artifact_path", "benchmarks.json")
	v.SetDefault("grid.boundary_path", "")
	// Toronto service-area bounding box.
	v.SetDefault("grid.min_lat", 43.58)
	v.SetDefault("grid.max_lat", 43.85)
	v.SetDefault("grid.min_lon", -79.64)
	v.SetDefault("grid.max_lon", -79.12)

	v.SetDefault("forecast.selection", "cascade")
	v.SetDefault("forecast.min_points", 3)
	v.SetDefault("forecast.stable_band", 2.0)

	v.SetDefault("ingest.data_dir", "data")
	v.SetDefault("ingest.portal_url", "https://www.arcgis.com/sharing/rest/content/items")
	v.SetDefault("ingest.page_size", 2000)
	v.SetDefault("ingest.rate_per_sec", 2.0)
	v.SetDefault("ingest.timeout_secs", 120)

	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.country_code", "ca")
	v.SetDefault("geocode.rate_per_sec", 1.0)
	v.SetDefault("geocode.cache_size", 1024)

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

// DefaultSeverityWeights returns the reference severity weight per category.
// Calibrated against the published reference output; monotone in harm.
func DefaultSeverityWeights() map[string]float64 {
	return map[string]float64{
		"Homicide":                 100,
		"Shooting":                 50,
		"Assault":                  15,
		"Robbery":                  10,
		"Break and Enter":          8,
		"Auto Theft":               6,
		"Theft Over":               4,
		"Theft From Motor Vehicle": 3,
		"Bicycle Theft":            2,
		"NonMCI":                   2,
		"Other":                    1,
	}
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

// Validate checks that the scoring and grid configuration is internally
// consistent before any command runs the pipeline.
func (c *Config) Validate() error {
	var errs []string

	if c.Scoring.RadiusKM <= 0 {
		errs = append(errs, "scoring.radius_km must be > 0")
	}
	if c.Scoring.DecayRate < 0 {
		errs = append(errs, "scoring.decay_rate must be >= 0")
	}
	if c.Scoring.WindowDays <= 0 {
		errs = append(errs, "scoring.window_days must be > 0")
	}
	if c.Scoring.DayStartHour < 0 || c.Scoring.DayStartHour > 23 ||
		c.Scoring.DayEndHour < 1 || c.Scoring.DayEndHour > 24 ||
		c.Scoring.DayStartHour >= c.Scoring.DayEndHour {
		errs = append(errs, "scoring day window must satisfy 0 <= day_start_hour < day_end_hour <= 24")
	}
	if c.Scoring.LowSafetyThreshold >= c.Scoring.HighSafetyThreshold {
		errs = append(errs, "scoring.low_safety_threshold must be < high_safety_threshold")
	}
	for cat, w := range c.Scoring.SeverityWeights {
		if w <= 0 {
			errs = append(errs, "scoring.severity_weights["+cat+"] must be > 0")
		}
	}
	if c.Grid.ResolutionKM <= 0 {
		errs = append(errs, "grid.resolution_km must be > 0")
	}
	if c.Grid.Workers <= 0 {
		errs = append(errs, "grid.workers must be > 0")
	}
	if c.Grid.MinLat >= c.Grid.MaxLat || c.Grid.MinLon >= c.Grid.MaxLon {
		errs = append(errs, "grid bounding box must satisfy min < max")
	}
	if c.Forecast.MinPoints < 2 {
		errs = append(errs, "forecast.min_points must be >= 2")
	}
	if s := c.Forecast.Selection; s != "cascade" && s != "best" {
		errs = append(errs, "forecast.selection must be \"cascade\" or \"best\"")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
