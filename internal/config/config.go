// Package config loads the application configuration and initialises the
// global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Linker   LinkerConfig   `yaml:"linker" mapstructure:"linker"`
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Layers   LayersConfig   `yaml:"layers" mapstructure:"layers"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// AnalysisConfig sets the default zone configuration, the range accepted from
// clients and the ring geometry backend.
type AnalysisConfig struct {
	TotalRadiusKm    float64 `yaml:"total_radius_km" mapstructure:"total_radius_km"`
	ZoneWidthKm      float64 `yaml:"zone_width_km" mapstructure:"zone_width_km"`
	MinTotalRadiusKm float64 `yaml:"min_total_radius_km" mapstructure:"min_total_radius_km"`
	MaxTotalRadiusKm float64 `yaml:"max_total_radius_km" mapstructure:"max_total_radius_km"`
	MinZoneWidthKm   float64 `yaml:"min_zone_width_km" mapstructure:"min_zone_width_km"`
	MaxZoneWidthKm   float64 `yaml:"max_zone_width_km" mapstructure:"max_zone_width_km"`
	BufferSteps      int     `yaml:"buffer_steps" mapstructure:"buffer_steps"`
	Differ           string  `yaml:"differ" mapstructure:"differ"`
}

// LinkerConfig configures school record linkage.
type LinkerConfig struct {
	ProximityDeg                  float64 `yaml:"proximity_deg" mapstructure:"proximity_deg"`
	MinVerticesForGeometryUpgrade int     `yaml:"min_vertices_for_geometry_upgrade" mapstructure:"min_vertices_for_geometry_upgrade"`
}

// SourcesConfig configures the layer providers.
type SourcesConfig struct {
	WFS               WFSConfig      `yaml:"wfs" mapstructure:"wfs"`
	Overpass          OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	TimeoutSecs       int            `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64        `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	UserAgent         string         `yaml:"user_agent" mapstructure:"user_agent"`
}

// WFSConfig configures the WFS provider of official schools and risk zones.
type WFSConfig struct {
	URL               string   `yaml:"url" mapstructure:"url"`
	SchoolsTypeName   string   `yaml:"schools_type_name" mapstructure:"schools_type_name"`
	RiskZonesTypeName string   `yaml:"risk_zones_type_name" mapstructure:"risk_zones_type_name"`
	NameProperties    []string `yaml:"name_properties" mapstructure:"name_properties"`
}

// OverpassConfig configures the Overpass provider.
type OverpassConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// BBox is "south,west,north,east".
	BBox string `yaml:"bbox" mapstructure:"bbox"`
}

// LayersConfig configures layer loading.
type LayersConfig struct {
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
	CacheTTLHours int `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
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

// SourceTimeout returns the provider request timeout.
func (c SourcesConfig) SourceTimeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// CacheTTL returns the layer cache lifetime.
func (c LayersConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCHOOLRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("analysis.total_radius_km", 5.0)
	v.SetDefault("analysis.zone_width_km", 1.0)
	v.SetDefault("analysis.min_total_radius_km", 1.0)
	v.SetDefault("analysis.max_total_radius_km", 20.0)
	v.SetDefault("analysis.min_zone_width_km", 0.5)
	v.SetDefault("analysis.max_zone_width_km", 5.0)
	v.SetDefault("analysis.buffer_steps", 64)
	v.SetDefault("analysis.differ", "spherical")
	v.SetDefault("linker.proximity_deg", 0.002)
	v.SetDefault("linker.min_vertices_for_geometry_upgrade", 5)
	v.SetDefault("sources.wfs.url", "")
	v.SetDefault("sources.wfs.schools_type_name", "")
	v.SetDefault("sources.wfs.risk_zones_type_name", "")
	v.SetDefault("sources.wfs.name_properties", []string{"name", "nombre", "NOM_ESTAB"})
	v.SetDefault("sources.overpass.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("sources.overpass.bbox", "")
	v.SetDefault("sources.timeout_secs", 60)
	v.SetDefault("sources.requests_per_second", 2.0)
	v.SetDefault("sources.user_agent", "school-risk/1.0")
	v.SetDefault("layers.concurrency", 4)
	v.SetDefault("layers.cache_ttl_hours", 24)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "school-risk.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

// Validate checks the settings a command depends on. mode is one of
// "analyze", "merge", "fetch" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	a := c.Analysis
	if !(a.MinTotalRadiusKm > 0) || a.MinTotalRadiusKm > a.MaxTotalRadiusKm {
		errs = append(errs, "analysis.min_total_radius_km must be > 0 and <= max_total_radius_km")
	}
	if !(a.MinZoneWidthKm > 0) || a.MinZoneWidthKm > a.MaxZoneWidthKm {
		errs = append(errs, "analysis.min_zone_width_km must be > 0 and <= max_zone_width_km")
	}
	if a.TotalRadiusKm < a.MinTotalRadiusKm || a.TotalRadiusKm > a.MaxTotalRadiusKm {
		errs = append(errs, "analysis.total_radius_km must be within the configured range")
	}
	if a.ZoneWidthKm < a.MinZoneWidthKm || a.ZoneWidthKm > a.MaxZoneWidthKm {
		errs = append(errs, "analysis.zone_width_km must be within the configured range")
	}
	if a.BufferSteps < 8 {
		errs = append(errs, "analysis.buffer_steps must be >= 8")
	}
	if c.Linker.ProximityDeg < 0 || c.Linker.MinVerticesForGeometryUpgrade < 0 {
		errs = append(errs, "linker values must be >= 0")
	}
	if c.Layers.Concurrency < 1 || c.Layers.Concurrency > 16 {
		errs = append(errs, "layers.concurrency must be between 1 and 16")
	}

	switch mode {
	case "analyze", "merge":
	case "fetch":
		if c.Sources.WFS.URL == "" && c.Sources.Overpass.BBox == "" {
			errs = append(errs, "sources.wfs.url or sources.overpass.bbox is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
