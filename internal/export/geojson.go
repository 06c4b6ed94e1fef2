// Package export writes analysis results as GeoJSON, XLSX workbooks,
// shapefiles and JSON/YAML reports.
package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/school-risk/internal/model"
)

// zoneGeometry is the ring of z, or its buffer when the ring is missing.
func zoneGeometry(z model.Zone) geom.T {
	if z.Ring != nil {
		return z.Ring
	}
	if z.Buffer != nil {
		return z.Buffer
	}
	return nil
}

// statsByZone indexes statistics by zone id.
func statsByZone(result *model.AnalysisResult) map[int]model.ZoneStatistics {
	out := make(map[int]model.ZoneStatistics, len(result.Statistics))
	for _, s := range result.Statistics {
		out[s.ZoneID] = s
	}
	return out
}

// ZoneFeatures builds one GeoJSON feature per zone ring, innermost first,
// carrying the zone's styling and counts as properties.
func ZoneFeatures(result *model.AnalysisResult) *geojson.FeatureCollection {
	stats := statsByZone(result)
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(result.Zones))}
	for _, z := range result.Zones {
		s := stats[z.ID]
		props := map[string]any{
			"zone_id":          z.ID,
			"radius_km":        z.RadiusKm,
			"risk_level":       string(z.Risk),
			"color":            z.Color,
			"fill_opacity":     z.FillOpacity,
			"ring_approximate": z.RingApproximate,
			"total":            s.Total,
		}
		for _, c := range model.Categories() {
			props[string(c)] = s.Counts.Get(c)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   zoneGeometry(z),
			Properties: props,
		})
	}
	return fc
}

// WriteGeoJSON writes the zone rings of result as a FeatureCollection.
func WriteGeoJSON(w io.Writer, result *model.AnalysisResult) error {
	if err := json.NewEncoder(w).Encode(ZoneFeatures(result)); err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	return nil
}
