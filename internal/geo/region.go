package geo

import (
	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Region is a polygon or multi-polygon compiled for repeated spherical
// point-in-polygon tests. Edges are great-circle arcs, matching Buffer.
//
// Rings follow the RFC 7946 winding: shells counter-clockwise, holes
// clockwise. Each ring's interior is the side to its left, which keeps discs
// wider than a hemisphere intact. Containment follows the s2 semi-open boundary
// model, so a point lying exactly on a shared edge belongs to exactly one of two
// adjacent regions.
type Region struct {
	polygons [][]*s2.Loop
}

// NewRegion compiles a *geom.Polygon or *geom.MultiPolygon.
func NewRegion(g geom.T) (*Region, error) {
	r := &Region{}
	switch t := g.(type) {
	case *geom.Polygon:
		loops, err := polygonLoops(t)
		if err != nil {
			return nil, err
		}
		r.polygons = append(r.polygons, loops)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			loops, err := polygonLoops(t.Polygon(i))
			if err != nil {
				return nil, eris.Wrapf(err, "geo: multipolygon member %d", i)
			}
			r.polygons = append(r.polygons, loops)
		}
	default:
		return nil, eris.Wrapf(ErrUnsupportedGeometry, "geo: region from %T", g)
	}
	if len(r.polygons) == 0 {
		return nil, eris.Wrap(ErrUnsupportedGeometry, "geo: empty region")
	}
	return r, nil
}

// Contains reports whether p lies inside the region. Inside a polygon means
// left of every one of its rings: inside the shell and outside each hole.
func (r *Region) Contains(p Point) bool {
	if r == nil || !p.Valid() {
		return false
	}
	pt := p.s2Point()
	for _, loops := range r.polygons {
		inside := true
		for _, l := range loops {
			if !l.ContainsPoint(pt) {
				inside = false
				break
			}
		}
		if inside {
			return true
		}
	}
	return false
}

func polygonLoops(p *geom.Polygon) ([]*s2.Loop, error) {
	if p == nil || p.NumLinearRings() == 0 {
		return nil, eris.Wrap(ErrUnsupportedGeometry, "geo: empty polygon")
	}
	loops := make([]*s2.Loop, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		l, err := ringLoop(ringPoints(p.LinearRing(i)))
		if err != nil {
			return nil, eris.Wrapf(err, "geo: ring %d", i)
		}
		loops = append(loops, l)
	}
	return loops, nil
}

// ringLoop converts a closed ring into an s2 loop enclosing the side to the
// left of the ring. The loop is not normalized.
func ringLoop(ring []Point) (*s2.Loop, error) {
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 {
		return nil, eris.Wrapf(ErrTooFewPoints, "geo: got %d", len(ring))
	}
	pts := make([]s2.Point, 0, len(ring))
	for _, p := range ring {
		if !p.Valid() {
			return nil, eris.Wrapf(ErrInvalidPoint, "geo: ring vertex %+v", p)
		}
		pts = append(pts, p.s2Point())
	}
	l := s2.LoopFromPoints(pts)
	if err := l.Validate(); err != nil {
		return nil, eris.Wrap(err, "geo: invalid loop")
	}
	return l, nil
}
