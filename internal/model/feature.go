package model

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/school-risk/internal/geo"
)

// Feature is a point or area of one category (hospital, police station, fire
// station, risk zone).
type Feature struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Category   Category       `json:"category"`
	Point      *geo.Point     `json:"point,omitempty"`
	Polygon    geom.T         `json:"-"`
	Properties map[string]any `json:"properties,omitempty"`
}

// RepresentativePoint returns the point used for containment tests: the
// explicit point when present, otherwise the vertex-mean centroid of the
// polygon. ok is false when the feature has no usable geometry.
func (f Feature) RepresentativePoint() (geo.Point, bool) {
	if f.Point != nil {
		return *f.Point, f.Point.Valid()
	}
	if f.Polygon == nil {
		return geo.Point{}, false
	}
	return geo.RepresentativePoint(f.Polygon)
}
