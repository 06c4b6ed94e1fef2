// Package school reconciles school records published by two independent
// providers into one collection.
package school

import (
	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/geo"
	"github.com/sells-group/school-risk/internal/model"
)

// Defaults for Options.
const (
	DefaultProximityDeg                  = 0.002
	DefaultMinVerticesForGeometryUpgrade = 5
)

// Options tunes the linker heuristics.
type Options struct {
	// ProximityDeg is the planar distance, in raw degrees, within which a
	// secondary centroid matches a primary centroid. Only meaningful over a
	// narrow latitude band.
	ProximityDeg float64 `mapstructure:"proximity_deg"`
	// MinVerticesForGeometryUpgrade is the exterior-ring coordinate count,
	// closing coordinate included, that a matched secondary polygon must
	// exceed to replace the primary polygon. Placeholder squares have 5.
	MinVerticesForGeometryUpgrade int `mapstructure:"min_vertices_for_geometry_upgrade"`
}

// DefaultOptions returns the standard linker settings.
func DefaultOptions() Options {
	return Options{
		ProximityDeg:                  DefaultProximityDeg,
		MinVerticesForGeometryUpgrade: DefaultMinVerticesForGeometryUpgrade,
	}
}

// Linker merges a primary (official) and a secondary (community) school
// collection.
type Linker struct {
	opts Options
}

// NewLinker creates a Linker. Non-positive option values fall back to the
// defaults.
func NewLinker(opts Options) *Linker {
	if opts.ProximityDeg <= 0 {
		opts.ProximityDeg = DefaultProximityDeg
	}
	if opts.MinVerticesForGeometryUpgrade <= 0 {
		opts.MinVerticesForGeometryUpgrade = DefaultMinVerticesForGeometryUpgrade
	}
	return &Linker{opts: opts}
}

// Options returns the effective settings.
func (l *Linker) Options() Options {
	return l.opts
}

// Merge returns every primary school, in order, followed by the secondary
// schools whose normalized name matches no primary name, in order.
//
// A primary school takes the polygon of the first secondary school whose
// centroid lies within ProximityDeg, provided that polygon has more than
// MinVerticesForGeometryUpgrade coordinates; its provenance becomes hybrid.
//
// Geometry matching and name deduplication are independent passes over the
// secondary collection, so a secondary school that upgraded a primary under a
// different name is also appended. Inputs are not modified.
func (l *Linker) Merge(primary, secondary []model.School) []model.School {
	secondaryCentroids := make([]*geo.Point, len(secondary))
	for i, s := range secondary {
		if c, ok := s.Centroid(); ok {
			secondaryCentroids[i] = &c
		}
	}

	out := make([]model.School, 0, len(primary)+len(secondary))
	primaryNames := make(map[string]struct{}, len(primary))
	upgraded := 0
	for _, p := range primary {
		merged := p.Clone()
		primaryNames[NormalizeName(p.Name)] = struct{}{}

		if j := l.match(p, secondaryCentroids); j >= 0 {
			if geo.VertexCount(secondary[j].Polygon) > l.opts.MinVerticesForGeometryUpgrade {
				merged.Polygon = secondary[j].Polygon
				merged.Provenance = model.ProvenanceHybrid
				upgraded++
			}
		}
		out = append(out, merged)
	}

	appended := 0
	for _, s := range secondary {
		if _, dup := primaryNames[NormalizeName(s.Name)]; dup {
			continue
		}
		out = append(out, s.Clone())
		appended++
	}

	zap.L().Debug("school: merged collections",
		zap.Int("primary", len(primary)),
		zap.Int("secondary", len(secondary)),
		zap.Int("upgraded", upgraded),
		zap.Int("appended", appended),
	)
	return out
}

// match returns the index of the first secondary school within ProximityDeg
// of p, or -1.
func (l *Linker) match(p model.School, secondaryCentroids []*geo.Point) int {
	c, ok := p.Centroid()
	if !ok {
		return -1
	}
	for j, sc := range secondaryCentroids {
		if sc != nil && geo.DegreeDistance(c, *sc) <= l.opts.ProximityDeg {
			return j
		}
	}
	return -1
}
