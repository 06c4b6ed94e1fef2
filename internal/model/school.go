package model

import (
	"maps"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/school-risk/internal/geo"
)

// Provenance records where a school's geometry came from.
type Provenance string

// Provenance values.
const (
	ProvenanceOfficial  Provenance = "official"
	ProvenanceCommunity Provenance = "community"
	ProvenanceHybrid    Provenance = "hybrid"
)

// School is a school record with a required polygon. Sources that only publish
// a point provide a small placeholder square.
type School struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Polygon    *geom.Polygon  `json:"-"`
	Provenance Provenance     `json:"provenance"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Centroid returns the vertex-mean centroid of the school polygon.
func (s School) Centroid() (geo.Point, bool) {
	return geo.Centroid(s.Polygon)
}

// Clone returns a copy that shares the (immutable) polygon but not the
// properties map.
func (s School) Clone() School {
	out := s
	if s.Properties != nil {
		out.Properties = maps.Clone(s.Properties)
	}
	return out
}
