package main

import (
	"time"

	"github.com/sells-group/school-risk/internal/analysis"
	"github.com/sells-group/school-risk/internal/geo"
	"github.com/sells-group/school-risk/internal/layers"
	"github.com/sells-group/school-risk/internal/model"
	"github.com/sells-group/school-risk/internal/school"
	"github.com/sells-group/school-risk/internal/source"
	"github.com/sells-group/school-risk/internal/zones"
)

// newAnalyzer builds the zone builder from the analysis settings.
func newAnalyzer() (*analysis.Analyzer, error) {
	differ, err := geo.NewDiffer(cfg.Analysis.Differ)
	if err != nil {
		return nil, err
	}
	builder := zones.NewBuilder(
		zones.WithDiffer(differ),
		zones.WithBufferSteps(cfg.Analysis.BufferSteps),
	)
	return analysis.NewAnalyzer(builder), nil
}

func newLinker() *school.Linker {
	return school.NewLinker(school.Options{
		ProximityDeg:                  cfg.Linker.ProximityDeg,
		MinVerticesForGeometryUpgrade: cfg.Linker.MinVerticesForGeometryUpgrade,
	})
}

// newRegistry reads layers from dir when set, else from the configured
// providers.
func newRegistry(dir string) (*layers.Registry, error) {
	if dir != "" {
		return layers.DirRegistry(dir)
	}

	client := source.NewClient(source.HTTPOptions{
		UserAgent:         cfg.Sources.UserAgent,
		Timeout:           cfg.Sources.SourceTimeout(),
		RequestsPerSecond: cfg.Sources.RequestsPerSecond,
	})
	wfsOpts := source.WFSOptions{
		URL:               cfg.Sources.WFS.URL,
		SchoolsTypeName:   cfg.Sources.WFS.SchoolsTypeName,
		RiskZonesTypeName: cfg.Sources.WFS.RiskZonesTypeName,
		NameProperties:    cfg.Sources.WFS.NameProperties,
	}
	overpass := source.NewOverpass(client, source.OverpassOptions{
		Endpoint: cfg.Sources.Overpass.Endpoint,
		BBox:     cfg.Sources.Overpass.BBox,
		Timeout:  cfg.Sources.SourceTimeout(),
	})
	return layers.ProviderRegistry(source.NewWFS(client, wfsOpts), wfsOpts, overpass), nil
}

// newLoader creates a loader. cache may be nil; the cache is only written
// when a positive TTL is configured.
func newLoader(reg *layers.Registry, cache layers.Cache) *layers.Loader {
	var ttl time.Duration
	if cache != nil {
		ttl = cfg.Layers.CacheTTL()
	}
	return layers.NewLoader(reg, newLinker(), cache, layers.LoaderOptions{
		Concurrency: cfg.Layers.Concurrency,
		CacheTTL:    ttl,
	})
}

func defaultZoneConfig() model.ZoneConfig {
	return model.ZoneConfig{
		TotalRadiusKm: cfg.Analysis.TotalRadiusKm,
		ZoneWidthKm:   cfg.Analysis.ZoneWidthKm,
	}
}
