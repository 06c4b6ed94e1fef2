package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestNewDiffer(t *testing.T) {
	d, err := NewDiffer("")
	require.NoError(t, err)
	assert.Equal(t, DifferSpherical, d.Name())

	d, err = NewDiffer(DifferSpherical)
	require.NoError(t, err)
	assert.Equal(t, DifferSpherical, d.Name())

	_, err = NewDiffer("planar")
	assert.Error(t, err)
}

func TestSphericalDiffer_Annulus(t *testing.T) {
	outer := Buffer(fixture, 2, 64)
	inner := Buffer(fixture, 1, 64)

	got, err := SphericalDiffer{}.Difference(outer, inner)
	require.NoError(t, err)

	poly, ok := got.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 2, poly.NumLinearRings())

	r, err := NewRegion(got)
	require.NoError(t, err)
	assert.False(t, r.Contains(fixture), "center belongs to the inner disc")
	assert.True(t, r.Contains(Point{Lat: fixture.Lat + 0.0135, Lng: fixture.Lng}), "1.5 km north is in the annulus")
	assert.False(t, r.Contains(Point{Lat: fixture.Lat + 0.025, Lng: fixture.Lng}), "2.8 km north is outside")
}

func TestSphericalDiffer_NestedAcrossRadii(t *testing.T) {
	tests := []struct {
		inner, outer float64
	}{
		{inner: 0.5, outer: 1},
		{inner: 0.7, outer: 1.4},
		{inner: 4.9, outer: 5},
		{inner: 9, outer: 10},
		{inner: 15, outer: 20},
		{inner: 1000, outer: 3000},
	}
	for _, tt := range tests {
		got, err := SphericalDiffer{}.Difference(Buffer(fixture, tt.outer, 64), Buffer(fixture, tt.inner, 64))
		require.NoError(t, err, "%v minus %v", tt.outer, tt.inner)
		assert.Equal(t, 2, got.(*geom.Polygon).NumLinearRings())
	}
}

func TestSphericalDiffer_OffCenterHole(t *testing.T) {
	outer := Buffer(fixture, 5, 64)
	inner := Buffer(Point{Lat: fixture.Lat + 0.01, Lng: fixture.Lng}, 1, 32)

	got, err := SphericalDiffer{}.Difference(outer, inner)
	require.NoError(t, err)

	r, err := NewRegion(got)
	require.NoError(t, err)
	assert.True(t, r.Contains(fixture))
	assert.False(t, r.Contains(Point{Lat: fixture.Lat + 0.01, Lng: fixture.Lng}))
}

func TestOrientPolygon(t *testing.T) {
	shell := orient(ExteriorRing(Square(Point{Lat: 0, Lng: 0}, 1)), false)
	hole := orient(ExteriorRing(Square(Point{Lat: 0, Lng: 0}, 0.5)), true)
	cw := polygonFromRings(shell, hole)

	got := orientPolygon(cw).(*geom.Polygon)
	assert.Greater(t, signedArea(ringPoints(got.LinearRing(0))), 0.0)
	assert.Less(t, signedArea(ringPoints(got.LinearRing(1))), 0.0)

	multi := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, multi.Push(cw))
	require.NoError(t, multi.Push(Square(Point{Lat: 10, Lng: 10}, 1)))
	gotMulti := orientPolygon(multi).(*geom.MultiPolygon)
	require.Equal(t, 2, gotMulti.NumPolygons())
	for i := 0; i < gotMulti.NumPolygons(); i++ {
		assert.Greater(t, signedArea(ringPoints(gotMulti.Polygon(i).LinearRing(0))), 0.0)
	}
}

func TestSphericalDiffer_RFC7946Winding(t *testing.T) {
	got, err := SphericalDiffer{}.Difference(Buffer(fixture, 2, 32), Buffer(fixture, 1, 32))
	require.NoError(t, err)
	poly := got.(*geom.Polygon)
	assert.Greater(t, signedArea(ringPoints(poly.LinearRing(0))), 0.0)
	assert.Less(t, signedArea(ringPoints(poly.LinearRing(1))), 0.0)
}

func TestSphericalDiffer_Disjoint(t *testing.T) {
	outer := Buffer(fixture, 1, 32)
	far := Buffer(Point{Lat: 10, Lng: 10}, 1, 32)

	got, err := SphericalDiffer{}.Difference(outer, far)
	require.NoError(t, err)
	assert.Same(t, outer, got)
}

func TestSphericalDiffer_NilInner(t *testing.T) {
	outer := Buffer(fixture, 1, 32)
	got, err := SphericalDiffer{}.Difference(outer, nil)
	require.NoError(t, err)
	assert.Same(t, outer, got)
}

func TestSphericalDiffer_Degenerate(t *testing.T) {
	a := Buffer(fixture, 1, 32)
	shifted := Buffer(Point{Lat: fixture.Lat + 0.01, Lng: fixture.Lng}, 1, 32)

	tests := []struct {
		name         string
		outer, inner geom.T
	}{
		{name: "crossing boundaries", outer: a, inner: shifted},
		{name: "inner covers outer", outer: a, inner: Buffer(fixture, 3, 32)},
		{name: "outer not a polygon", outer: geom.NewPointFlat(geom.XY, []float64{0, 0}), inner: a},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SphericalDiffer{}.Difference(tt.outer, tt.inner)
			assert.ErrorIs(t, err, ErrDegenerate)
		})
	}
}

type panickingDiffer struct{}

func (panickingDiffer) Name() string { return "panicking" }
func (panickingDiffer) Difference(_, _ geom.T) (geom.T, error) {
	panic("TopologyException: side location conflict")
}

type emptyDiffer struct{}

func (emptyDiffer) Name() string { return "empty" }
func (emptyDiffer) Difference(_, _ geom.T) (geom.T, error) {
	return geom.NewPolygon(geom.XY), nil
}

func TestSafeDifference(t *testing.T) {
	outer := Buffer(fixture, 2, 32)
	inner := Buffer(fixture, 1, 32)

	got, err := SafeDifference(SphericalDiffer{}, outer, inner)
	require.NoError(t, err)
	assert.NotNil(t, got)

	_, err = SafeDifference(panickingDiffer{}, outer, inner)
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = SafeDifference(emptyDiffer{}, outer, inner)
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestEWKBRoundTrip(t *testing.T) {
	ring, err := SphericalDiffer{}.Difference(Buffer(fixture, 2, 16), Buffer(fixture, 1, 16))
	require.NoError(t, err)

	data, err := EncodeEWKB(ring)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	back, err := DecodeEWKB(data)
	require.NoError(t, err)
	assert.Equal(t, SRID, back.SRID())
	assert.Equal(t, ring.FlatCoords(), back.FlatCoords())

	data, err = EncodeEWKB(nil)
	assert.NoError(t, err)
	assert.Nil(t, data)
}
