// Package geo holds the canonical point and polygon helpers shared by the zone
// builder, the aggregator and the school linker.
//
// A Point is always (lat, lng). go-geom coordinates are always geom.XY with
// X = longitude and Y = latitude, the GeoJSON order. Every conversion between the
// two goes through the helpers in this file.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// EarthRadiusKm is the WGS84 mean radius used for spherical distances and buffers.
const EarthRadiusKm = 6371.0088

// ErrInvalidPoint is returned when a coordinate pair is malformed or out of range.
var ErrInvalidPoint = eris.New("geo: invalid point")

// Point is a WGS84 position in degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// FromLatLng builds a Point from a (lat, lng) ordered source.
func FromLatLng(lat, lng float64) Point {
	return Point{Lat: lat, Lng: lng}
}

// FromLngLat builds a Point from a GeoJSON-ordered [lng, lat] pair.
func FromLngLat(pair []float64) (Point, error) {
	if len(pair) < 2 {
		return Point{}, eris.Wrapf(ErrInvalidPoint, "geo: expected [lng, lat], got %d values", len(pair))
	}
	p := Point{Lat: pair[1], Lng: pair[0]}
	if !p.Valid() {
		return Point{}, eris.Wrapf(ErrInvalidPoint, "geo: out of range [lng, lat] = [%v, %v]", pair[0], pair[1])
	}
	return p, nil
}

// PointFromCoord converts a go-geom XY coordinate (X = lng, Y = lat).
func PointFromCoord(c geom.Coord) Point {
	return Point{Lat: c[1], Lng: c[0]}
}

// Valid reports whether the point is finite and inside the WGS84 range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Coord returns the go-geom XY coordinate for the point.
func (p Point) Coord() geom.Coord {
	return geom.Coord{p.Lng, p.Lat}
}

// LngLat returns the GeoJSON-ordered pair.
func (p Point) LngLat() []float64 {
	return []float64{p.Lng, p.Lat}
}

// LatLng returns the s2 representation of the point.
func (p Point) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lng)
}

func (p Point) s2Point() s2.Point {
	return s2.PointFromLatLng(p.LatLng())
}

// DegreeDistance is the planar Euclidean distance between raw degree values.
// It ignores meridian convergence and is only meaningful inside a narrow
// latitude band.
func DegreeDistance(a, b Point) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lng-b.Lng)
}

// DistanceKm returns the great-circle distance in kilometres.
func DistanceKm(a, b Point) float64 {
	return a.LatLng().Distance(b.LatLng()).Radians() * EarthRadiusKm
}
