package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// DefaultSquareHalfSideDeg is the half side of the placeholder square built for
// sources that only publish a point (about 11 m).
const DefaultSquareHalfSideDeg = 0.0001

var (
	// ErrTooFewPoints is returned for rings with fewer than 3 distinct points.
	ErrTooFewPoints = eris.New("geo: ring needs at least 3 distinct points")
	// ErrUnsupportedGeometry is returned for geometry types the package cannot use.
	ErrUnsupportedGeometry = eris.New("geo: unsupported geometry")
)

// CloseRing validates a traced outline and closes it when the last point
// differs from the first. Outlines with fewer than 3 distinct points before
// closing are rejected.
func CloseRing(pts []Point) ([]Point, error) {
	open := pts
	if len(open) > 1 && open[0] == open[len(open)-1] {
		open = open[:len(open)-1]
	}

	distinct := make(map[Point]struct{}, len(open))
	for _, p := range open {
		if !p.Valid() {
			return nil, eris.Wrapf(ErrInvalidPoint, "geo: ring vertex %+v", p)
		}
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, eris.Wrapf(ErrTooFewPoints, "geo: got %d", len(distinct))
	}

	ring := make([]Point, 0, len(open)+1)
	ring = append(ring, open...)
	ring = append(ring, open[0])
	return ring, nil
}

// NewPolygon builds a single-ring polygon from an outline, closing it if needed.
func NewPolygon(outline []Point) (*geom.Polygon, error) {
	ring, err := CloseRing(outline)
	if err != nil {
		return nil, err
	}
	return polygonFromRings(ring), nil
}

// Square returns a closed axis-aligned square of the given half side (degrees)
// centred on p. Sources that only provide a point use it as their polygon.
func Square(p Point, halfSideDeg float64) *geom.Polygon {
	if halfSideDeg <= 0 {
		halfSideDeg = DefaultSquareHalfSideDeg
	}
	return polygonFromRings([]Point{
		{Lat: p.Lat - halfSideDeg, Lng: p.Lng - halfSideDeg},
		{Lat: p.Lat - halfSideDeg, Lng: p.Lng + halfSideDeg},
		{Lat: p.Lat + halfSideDeg, Lng: p.Lng + halfSideDeg},
		{Lat: p.Lat + halfSideDeg, Lng: p.Lng - halfSideDeg},
		{Lat: p.Lat - halfSideDeg, Lng: p.Lng - halfSideDeg},
	})
}

// polygonFromRings builds a polygon from already closed rings; the first ring is
// the shell and the rest are holes.
func polygonFromRings(rings ...[]Point) *geom.Polygon {
	var flat []float64
	ends := make([]int, 0, len(rings))
	for _, ring := range rings {
		for _, p := range ring {
			flat = append(flat, p.Lng, p.Lat)
		}
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}

// ExteriorRing returns the shell of a polygon as canonical points, closing
// coordinate included. A nil or empty polygon yields nil.
func ExteriorRing(p *geom.Polygon) []Point {
	if p == nil || p.NumLinearRings() == 0 {
		return nil
	}
	return ringPoints(p.LinearRing(0))
}

func ringPoints(lr *geom.LinearRing) []Point {
	n := lr.NumCoords()
	pts := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		pts = append(pts, PointFromCoord(lr.Coord(i)))
	}
	return pts
}

// VertexCount returns the number of coordinates in the polygon shell, closing
// coordinate included.
func VertexCount(p *geom.Polygon) int {
	if p == nil || p.NumLinearRings() == 0 {
		return 0
	}
	return p.LinearRing(0).NumCoords()
}

// Centroid returns the arithmetic mean of the shell vertices. The closing
// coordinate is skipped so that it is not weighted twice. This is not the
// area-weighted centroid; callers rely on the vertex mean.
func Centroid(p *geom.Polygon) (Point, bool) {
	pts := ExteriorRing(p)
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) == 0 {
		return Point{}, false
	}

	var sumLat, sumLng float64
	for _, pt := range pts {
		sumLat += pt.Lat
		sumLng += pt.Lng
	}
	c := Point{Lat: sumLat / float64(len(pts)), Lng: sumLng / float64(len(pts))}
	return c, c.Valid()
}

// RepresentativePoint returns the point used to test containment for an
// arbitrary geometry: the point itself, or the vertex-mean centroid of a
// polygon (first member of a multi-polygon).
func RepresentativePoint(g geom.T) (Point, bool) {
	switch t := g.(type) {
	case *geom.Point:
		if t == nil || t.Empty() {
			return Point{}, false
		}
		p := PointFromCoord(t.Coords())
		return p, p.Valid()
	case *geom.Polygon:
		return Centroid(t)
	case *geom.MultiPolygon:
		if t == nil || t.NumPolygons() == 0 {
			return Point{}, false
		}
		return Centroid(t.Polygon(0))
	default:
		return Point{}, false
	}
}

// ToXY rebuilds a point, polygon or multi-polygon as validated, closed geom.XY
// geometry. Extra dimensions are dropped. Other geometry types yield
// ErrUnsupportedGeometry.
func ToXY(g geom.T) (geom.T, error) {
	switch t := g.(type) {
	case *geom.Point:
		if t == nil || t.Empty() {
			return nil, eris.Wrap(ErrUnsupportedGeometry, "geo: empty point")
		}
		p := PointFromCoord(t.Coords())
		if !p.Valid() {
			return nil, eris.Wrapf(ErrInvalidPoint, "geo: %+v", p)
		}
		return geom.NewPointFlat(geom.XY, p.LngLat()), nil
	case *geom.Polygon:
		return polygonToXY(t)
	case *geom.MultiPolygon:
		if t == nil || t.NumPolygons() == 0 {
			return nil, eris.Wrap(ErrUnsupportedGeometry, "geo: empty multipolygon")
		}
		out := geom.NewMultiPolygon(geom.XY)
		for i := 0; i < t.NumPolygons(); i++ {
			p, err := polygonToXY(t.Polygon(i))
			if err != nil {
				return nil, eris.Wrapf(err, "geo: member %d", i)
			}
			if err := out.Push(p); err != nil {
				return nil, eris.Wrap(err, "geo: push member")
			}
		}
		return out, nil
	default:
		return nil, eris.Wrapf(ErrUnsupportedGeometry, "geo: %T", g)
	}
}

func polygonToXY(p *geom.Polygon) (*geom.Polygon, error) {
	if p == nil || p.NumLinearRings() == 0 {
		return nil, eris.Wrap(ErrUnsupportedGeometry, "geo: empty polygon")
	}
	rings := make([][]Point, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		ring, err := CloseRing(ringPoints(p.LinearRing(i)))
		if err != nil {
			return nil, eris.Wrapf(err, "geo: ring %d", i)
		}
		rings = append(rings, ring)
	}
	return polygonFromRings(rings...), nil
}
