package geo

import (
	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Differ names.
const (
	DifferSpherical = "spherical"
	DifferGEOS      = "geos"
)

// ErrDegenerate is returned when a difference cannot be computed or would be
// empty. Callers are expected to apply their own fallback.
var ErrDegenerate = eris.New("geo: degenerate difference")

// Differ computes outer minus inner. Implementations may return an error or
// panic on numerically hostile input; see SafeDifference.
type Differ interface {
	Name() string
	Difference(outer, inner geom.T) (geom.T, error)
}

// NewDiffer returns the backend registered under name. The GEOS backend is only
// available in binaries built with the geos build tag.
func NewDiffer(name string) (Differ, error) {
	switch name {
	case "", DifferSpherical:
		return SphericalDiffer{}, nil
	case DifferGEOS:
		return newGEOSDiffer()
	default:
		return nil, eris.Errorf("geo: unknown differ %q (valid: %s, %s)", name, DifferSpherical, DifferGEOS)
	}
}

// SafeDifference runs d and converts errors, panics and empty results into
// ok=false. It never panics itself.
func SafeDifference(d Differ, outer, inner geom.T) (result geom.T, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = eris.Wrapf(ErrDegenerate, "geo: %s differ panicked: %v", d.Name(), r)
		}
	}()

	result, err = d.Difference(outer, inner)
	if err != nil {
		return nil, err
	}
	if result == nil || isEmpty(result) {
		return nil, eris.Wrapf(ErrDegenerate, "geo: %s differ returned an empty geometry", d.Name())
	}
	return result, nil
}

func isEmpty(g geom.T) bool {
	switch t := g.(type) {
	case *geom.Polygon:
		return t == nil || t.NumLinearRings() == 0
	case *geom.MultiPolygon:
		return t == nil || t.NumPolygons() == 0
	default:
		return len(g.FlatCoords()) == 0
	}
}

// SphericalDiffer subtracts one single-ring polygon from another on the sphere.
// It is exact for the cases concentric buffers produce: inner nested inside
// outer (the result is an annulus, outer shell plus inner hole) and disjoint
// shapes (outer unchanged). Crossing boundaries are reported as ErrDegenerate.
//
// Shells must wind counter-clockwise, as Buffer produces them. The interior is
// taken to be the left side of the ring, so discs wider than a hemisphere keep
// their center.
type SphericalDiffer struct{}

// Name implements Differ.
func (SphericalDiffer) Name() string { return DifferSpherical }

// Difference implements Differ.
func (SphericalDiffer) Difference(outer, inner geom.T) (geom.T, error) {
	outerPoly, ok := outer.(*geom.Polygon)
	if !ok || outerPoly == nil || outerPoly.NumLinearRings() != 1 {
		return nil, eris.Wrapf(ErrDegenerate, "geo: spherical differ needs a single-ring outer polygon, got %T", outer)
	}
	if inner == nil {
		return outerPoly, nil
	}
	innerPoly, ok := inner.(*geom.Polygon)
	if !ok || innerPoly == nil || innerPoly.NumLinearRings() != 1 {
		return nil, eris.Wrapf(ErrDegenerate, "geo: spherical differ needs a single-ring inner polygon, got %T", inner)
	}

	outerRing := ExteriorRing(outerPoly)
	innerRing := ExteriorRing(innerPoly)
	outerLoop, err := ringLoop(outerRing)
	if err != nil {
		return nil, eris.Wrapf(ErrDegenerate, "geo: outer ring: %v", err)
	}
	innerLoop, err := ringLoop(innerRing)
	if err != nil {
		return nil, eris.Wrapf(ErrDegenerate, "geo: inner ring: %v", err)
	}

	if boundariesCross(outerLoop, innerLoop) {
		return nil, eris.Wrap(ErrDegenerate, "geo: polygon boundaries cross")
	}
	innerInside := verticesInside(outerLoop, innerLoop)
	outerInside := verticesInside(innerLoop, outerLoop)
	switch {
	case innerInside == innerLoop.NumVertices():
		return polygonFromRings(outerRing, reverse(innerRing)), nil
	case outerInside == outerLoop.NumVertices():
		return nil, eris.Wrap(ErrDegenerate, "geo: inner polygon covers outer polygon")
	case innerInside == 0 && outerInside == 0:
		return outerPoly, nil
	default:
		return nil, eris.Wrap(ErrDegenerate, "geo: polygon boundaries touch")
	}
}

// boundariesCross reports whether an edge of a properly crosses an edge of b.
// Shared vertices do not count as crossings.
func boundariesCross(a, b *s2.Loop) bool {
	for i := 0; i < a.NumEdges(); i++ {
		e := a.Edge(i)
		crosser := s2.NewChainEdgeCrosser(e.V0, e.V1, b.Vertex(0))
		for j := 1; j <= b.NumVertices(); j++ {
			if crosser.ChainCrossingSign(b.Vertex(j)) == s2.Cross {
				return true
			}
		}
	}
	return false
}

// verticesInside counts the vertices of b that lie inside a.
func verticesInside(a, b *s2.Loop) int {
	n := 0
	for _, v := range b.Vertices() {
		if a.ContainsPoint(v) {
			n++
		}
	}
	return n
}

func reverse(ring []Point) []Point {
	out := make([]Point, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

// orientPolygon rewinds a planar polygon result so that shells run
// counter-clockwise and holes clockwise in the lng/lat plane.
func orientPolygon(g geom.T) geom.T {
	switch t := g.(type) {
	case *geom.Polygon:
		rings := make([][]Point, t.NumLinearRings())
		for i := range rings {
			rings[i] = orient(ringPoints(t.LinearRing(i)), i == 0)
		}
		return polygonFromRings(rings...)
	case *geom.MultiPolygon:
		out := geom.NewMultiPolygon(geom.XY)
		for i := 0; i < t.NumPolygons(); i++ {
			if err := out.Push(orientPolygon(t.Polygon(i)).(*geom.Polygon)); err != nil {
				return g
			}
		}
		return out
	default:
		return g
	}
}

// orient returns ring wound counter-clockwise (ccw=true) or clockwise in the
// lng/lat plane, the RFC 7946 convention for shells and holes.
func orient(ring []Point, ccw bool) []Point {
	if (signedArea(ring) > 0) == ccw {
		return ring
	}
	return reverse(ring)
}

func signedArea(ring []Point) float64 {
	var sum float64
	for i := 0; i+1 < len(ring); i++ {
		sum += ring[i].Lng*ring[i+1].Lat - ring[i+1].Lng*ring[i].Lat
	}
	return sum / 2
}
