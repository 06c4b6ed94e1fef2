package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 5.0, cfg.Analysis.TotalRadiusKm, 1e-9)
	assert.InDelta(t, 1.0, cfg.Analysis.ZoneWidthKm, 1e-9)
	assert.InDelta(t, 1.0, cfg.Analysis.MinTotalRadiusKm, 1e-9)
	assert.InDelta(t, 20.0, cfg.Analysis.MaxTotalRadiusKm, 1e-9)
	assert.InDelta(t, 0.5, cfg.Analysis.MinZoneWidthKm, 1e-9)
	assert.InDelta(t, 5.0, cfg.Analysis.MaxZoneWidthKm, 1e-9)
	assert.Equal(t, 64, cfg.Analysis.BufferSteps)
	assert.Equal(t, "spherical", cfg.Analysis.Differ)
	assert.InDelta(t, 0.002, cfg.Linker.ProximityDeg, 1e-12)
	assert.Equal(t, 5, cfg.Linker.MinVerticesForGeometryUpgrade)
	assert.Equal(t, []string{"name", "nombre", "NOM_ESTAB"}, cfg.Sources.WFS.NameProperties)
	assert.Equal(t, "https://overpass-api.de/api/interpreter", cfg.Sources.Overpass.Endpoint)
	assert.Equal(t, 60*time.Second, cfg.Sources.SourceTimeout())
	assert.InDelta(t, 2.0, cfg.Sources.RequestsPerSecond, 1e-9)
	assert.Equal(t, 4, cfg.Layers.Concurrency)
	assert.Equal(t, 24*time.Hour, cfg.Layers.CacheTTL())
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "school-risk.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate("analyze"))
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
analysis:
  total_radius_km: 10
  zone_width_km: 2
sources:
  wfs:
    url: https://geo.example.org/ows
    schools_type_name: mineduc:establecimientos
    name_properties: [NOM_RBD]
  overpass:
    bbox: "-33.6,-70.8,-33.3,-70.5"
store:
  driver: postgres
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 10.0, cfg.Analysis.TotalRadiusKm, 1e-9)
	assert.InDelta(t, 2.0, cfg.Analysis.ZoneWidthKm, 1e-9)
	assert.Equal(t, "https://geo.example.org/ows", cfg.Sources.WFS.URL)
	assert.Equal(t, "mineduc:establecimientos", cfg.Sources.WFS.SchoolsTypeName)
	assert.Equal(t, []string{"NOM_RBD"}, cfg.Sources.WFS.NameProperties)
	assert.Equal(t, "-33.6,-70.8,-33.3,-70.5", cfg.Sources.Overpass.BBox)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 64, cfg.Analysis.BufferSteps)
	assert.NoError(t, cfg.Validate("fetch"))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("SCHOOLRISK_STORE_DRIVER", "sqlite")
	t.Setenv("SCHOOLRISK_LOG_LEVEL", "warn")
	t.Setenv("SCHOOLRISK_LINKER_PROXIMITY_DEG", "0.001")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.InDelta(t, 0.001, cfg.Linker.ProximityDeg, 1e-12)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("analysis: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Analysis = AnalysisConfig{
		TotalRadiusKm: 5, ZoneWidthKm: 1,
		MinTotalRadiusKm: 1, MaxTotalRadiusKm: 20,
		MinZoneWidthKm: 0.5, MaxZoneWidthKm: 5,
		BufferSteps: 64,
	}
	cfg.Linker = LinkerConfig{ProximityDeg: 0.002, MinVerticesForGeometryUpgrade: 5}
	cfg.Layers.Concurrency = 4
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults analyze", mode: "analyze"},
		{name: "defaults merge", mode: "merge"},
		{name: "serve", mode: "serve"},
		{name: "serve invalid port", mode: "serve", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port must be > 0"},
		{name: "fetch without sources", mode: "fetch", wantErr: "sources.wfs.url or sources.overpass.bbox is required"},
		{name: "fetch with bbox", mode: "fetch", mutate: func(c *Config) { c.Sources.Overpass.BBox = "0,0,1,1" }},
		{name: "unknown mode", mode: "unknown", wantErr: "unknown mode"},
		{name: "inverted radius range", mode: "analyze", mutate: func(c *Config) { c.Analysis.MinTotalRadiusKm = 30 }, wantErr: "min_total_radius_km"},
		{name: "default radius out of range", mode: "analyze", mutate: func(c *Config) { c.Analysis.TotalRadiusKm = 25 }, wantErr: "analysis.total_radius_km"},
		{name: "default width out of range", mode: "analyze", mutate: func(c *Config) { c.Analysis.ZoneWidthKm = 0.1 }, wantErr: "analysis.zone_width_km"},
		{name: "buffer steps", mode: "analyze", mutate: func(c *Config) { c.Analysis.BufferSteps = 4 }, wantErr: "buffer_steps"},
		{name: "negative linker", mode: "analyze", mutate: func(c *Config) { c.Linker.ProximityDeg = -1 }, wantErr: "linker values"},
		{name: "concurrency", mode: "analyze", mutate: func(c *Config) { c.Layers.Concurrency = 0 }, wantErr: "layers.concurrency must be between 1 and 16"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
