package export

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/model"
)

// wgs84PRJ is the ESRI WKT written next to the shapefile.
const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

var shapeFields = []shp.Field{
	shp.NumberField("ZONE_ID", 4),
	shp.FloatField("RADIUS_KM", 12, 3),
	shp.StringField("RISK", 8),
	shp.NumberField("TOTAL", 10),
	shp.NumberField("APPROX", 1),
}

// Field indexes in shapeFields.
const (
	fieldZoneID = iota
	fieldRadius
	fieldRisk
	fieldTotal
	fieldApprox
)

// WriteShapefile writes the zone rings of result as a POLYGON shapefile at
// path (".shp"; the ".shx", ".dbf" and ".prj" siblings are written too).
// Annulus holes become additional parts. Zones without geometry are skipped.
func WriteShapefile(path string, result *model.AnalysisResult) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "shapefile: create %s", path)
	}
	defer w.Close()

	if err := w.SetFields(shapeFields); err != nil {
		return eris.Wrap(err, "shapefile: set fields")
	}

	stats := statsByZone(result)
	skipped := 0
	for _, z := range result.Zones {
		poly, ok := shapePolygon(zoneGeometry(z))
		if !ok {
			skipped++
			continue
		}
		row := int(w.Write(poly))
		approx := 0
		if z.RingApproximate {
			approx = 1
		}
		for field, value := range map[int]any{
			fieldZoneID: z.ID,
			fieldRadius: z.RadiusKm,
			fieldRisk:   string(z.Risk),
			fieldTotal:  stats[z.ID].Total,
			fieldApprox: approx,
		} {
			if err := w.WriteAttribute(row, field, value); err != nil {
				return eris.Wrapf(err, "shapefile: write attribute of zone %d", z.ID)
			}
		}
	}
	if skipped > 0 {
		zap.L().Debug("shapefile: zones without geometry skipped", zap.Int("count", skipped))
	}

	prj := strings.TrimSuffix(path, ".shp") + ".prj"
	return eris.Wrap(os.WriteFile(prj, []byte(wgs84PRJ), 0o644), "shapefile: write prj")
}

// shapePolygon converts a polygon or multi-polygon to a shapefile polygon.
// Shells are wound clockwise and holes counter-clockwise.
func shapePolygon(g geom.T) (*shp.Polygon, bool) {
	var polys []*geom.Polygon
	switch t := g.(type) {
	case *geom.Polygon:
		polys = []*geom.Polygon{t}
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			polys = append(polys, t.Polygon(i))
		}
	default:
		return nil, false
	}

	var parts [][]shp.Point
	for _, p := range polys {
		for i := 0; i < p.NumLinearRings(); i++ {
			lr := p.LinearRing(i)
			ring := make([]shp.Point, lr.NumCoords())
			for j := range ring {
				c := lr.Coord(j)
				ring[j] = shp.Point{X: c.X(), Y: c.Y()}
			}
			if len(ring) < 4 {
				continue
			}
			parts = append(parts, wind(ring, i == 0))
		}
	}
	if len(parts) == 0 {
		return nil, false
	}
	poly := shp.Polygon(*shp.NewPolyLine(parts))
	return &poly, true
}

// wind returns ring clockwise when cw is set, counter-clockwise otherwise.
func wind(ring []shp.Point, cw bool) []shp.Point {
	var area float64
	for i := 0; i+1 < len(ring); i++ {
		area += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	if (area < 0) == cw {
		return ring
	}
	out := make([]shp.Point, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}
