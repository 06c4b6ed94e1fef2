package geo

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"
)

// DefaultBufferSteps is the number of vertices used to approximate a buffer.
const DefaultBufferSteps = 64

// Buffer returns the geodesic disc of radiusKm around center as a closed
// polygon. Vertices lie on the great-circle distance radiusKm from center on the
// WGS84 mean sphere, so the shape stays a true disc at any latitude.
func Buffer(center Point, radiusKm float64, steps int) *geom.Polygon {
	if steps < 3 {
		steps = DefaultBufferSteps
	}
	angle := s1.Angle(radiusKm / EarthRadiusKm)
	loop := s2.RegularLoop(center.s2Point(), angle, steps)

	ring := make([]Point, 0, loop.NumVertices()+1)
	for _, v := range loop.Vertices() {
		ll := s2.LatLngFromPoint(v)
		ring = append(ring, Point{Lat: ll.Lat.Degrees(), Lng: ll.Lng.Degrees()})
	}
	ring = append(ring, ring[0])
	return polygonFromRings(ring)
}
