package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/school-risk/internal/geo"
	"github.com/sells-group/school-risk/internal/model"
	"github.com/sells-group/school-risk/internal/zones"
)

var center = geo.Point{Lat: -33.4378, Lng: -70.6504}

// north returns a point km kilometres due north of center (1° lat ≈ 111.2 km).
func north(km float64) geo.Point {
	return geo.Point{Lat: center.Lat + km/(geo.EarthRadiusKm*math.Pi/180), Lng: center.Lng}
}

func pointFeature(id string, c model.Category, p geo.Point) model.Feature {
	return model.Feature{ID: id, Category: c, Point: &p}
}

func schoolAt(id string, p geo.Point) model.School {
	return model.School{ID: id, Name: "school " + id, Polygon: geo.Square(p, geo.DefaultSquareHalfSideDeg), Provenance: model.ProvenanceOfficial}
}

func buildZones(t *testing.T, cfg model.ZoneConfig, opts ...zones.BuilderOption) []model.Zone {
	t.Helper()
	zs, err := zones.NewBuilder(opts...).Build(center, cfg)
	require.NoError(t, err)
	return zs
}

func TestAggregate_FeatureAtCenterCountsInZoneOneOnly(t *testing.T) {
	for _, total := range []float64{1, 5, 20} {
		zs := buildZones(t, model.ZoneConfig{TotalRadiusKm: total, ZoneWidthKm: 1})
		snap := NewSnapshot(map[model.Category][]model.Feature{
			model.CategoryHospitals: {pointFeature("h1", model.CategoryHospitals, center)},
		})

		stats := Aggregate(zs, []model.School{schoolAt("s1", center)}, snap)
		require.Len(t, stats, len(zs))

		assert.Equal(t, 1, stats[0].Counts.Hospitals)
		assert.Equal(t, 1, stats[0].Counts.Schools)
		assert.Equal(t, 2, stats[0].Total)
		for _, s := range stats[1:] {
			assert.Equal(t, 0, s.Total)
		}
	}
}

func TestAggregate_DiscWiderThanHemisphere(t *testing.T) {
	zs := buildZones(t, model.ZoneConfig{TotalRadiusKm: 15000, ZoneWidthKm: 15000})
	require.Len(t, zs, 1)

	antipode := geo.Point{Lat: -center.Lat, Lng: center.Lng + 180}
	snap := NewSnapshot(map[model.Category][]model.Feature{
		model.CategoryHospitals: {
			pointFeature("h1", model.CategoryHospitals, center),
			pointFeature("h2", model.CategoryHospitals, north(5000)),
			pointFeature("h3", model.CategoryHospitals, antipode),
		},
	})

	stats := Aggregate(zs, nil, snap)
	assert.Equal(t, 2, stats[0].Counts.Hospitals)
}

func TestAggregate_FarFeatureOnlyInTotals(t *testing.T) {
	zs := buildZones(t, model.ZoneConfig{TotalRadiusKm: 5, ZoneWidthKm: 1})
	snap := NewSnapshot(map[model.Category][]model.Feature{
		model.CategoryPolice: {pointFeature("p1", model.CategoryPolice, north(50))},
	})

	stats := Aggregate(zs, nil, snap)
	for _, s := range stats {
		assert.Equal(t, 0, s.Counts.Police)
	}
	assert.Equal(t, 1, Totals(nil, snap).Police)
}

func TestAggregate_RingMembership(t *testing.T) {
	zs := buildZones(t, model.ZoneConfig{TotalRadiusKm: 5, ZoneWidthKm: 1})
	snap := NewSnapshot(map[model.Category][]model.Feature{
		model.CategoryFireStations: {
			pointFeature("f1", model.CategoryFireStations, north(0.5)),
			pointFeature("f2", model.CategoryFireStations, north(2.5)),
			pointFeature("f3", model.CategoryFireStations, north(2.6)),
			pointFeature("f4", model.CategoryFireStations, north(4.5)),
		},
	})

	stats := Aggregate(zs, nil, snap)
	got := make([]int, len(stats))
	for i, s := range stats {
		got[i] = s.Counts.FireStations
		assert.Equal(t, zs[i].ID, s.ZoneID)
		assert.Equal(t, zs[i].RadiusKm, s.RadiusKm)
		assert.Equal(t, zs[i].Risk, s.Risk)
	}
	assert.Equal(t, []int{1, 0, 2, 0, 1}, got)
}

func TestAggregate_SumBoundedByTotals(t *testing.T) {
	zs := buildZones(t, model.ZoneConfig{TotalRadiusKm: 3, ZoneWidthKm: 1})

	var hospitals []model.Feature
	var schools []model.School
	for i, km := range []float64{0.2, 1.4, 2.9, 3.5, 8} {
		p := north(km)
		hospitals = append(hospitals, pointFeature(string(rune('a'+i)), model.CategoryHospitals, p))
		schools = append(schools, schoolAt(string(rune('a'+i)), p))
	}
	snap := NewSnapshot(map[model.Category][]model.Feature{model.CategoryHospitals: hospitals})

	stats := Aggregate(zs, schools, snap)
	totals := Totals(schools, snap)

	var counted model.CategoryCounts
	for _, s := range stats {
		assert.Equal(t, s.Counts.Total(), s.Total)
		for _, c := range model.Categories() {
			counted.Add(c, s.Counts.Get(c))
		}
	}
	for _, c := range model.Categories() {
		assert.LessOrEqual(t, counted.Get(c), totals.Get(c))
	}
	assert.Equal(t, 3, counted.Hospitals)
	assert.Equal(t, 3, counted.Schools)
	assert.Equal(t, 5, totals.Hospitals)
	assert.Equal(t, 5, totals.Schools)
}

func TestAggregate_AllInsideEqualsTotals(t *testing.T) {
	zs := buildZones(t, model.ZoneConfig{TotalRadiusKm: 5, ZoneWidthKm: 2})
	snap := NewSnapshot(map[model.Category][]model.Feature{
		model.CategoryRiskZones: {
			{ID: "r1", Category: model.CategoryRiskZones, Polygon: geo.Square(north(1), 0.002)},
			{ID: "r2", Category: model.CategoryRiskZones, Polygon: geo.Square(north(3.5), 0.002)},
		},
	})
	stats := Aggregate(zs, nil, snap)

	sum := 0
	for _, s := range stats {
		sum += s.Counts.RiskZones
	}
	assert.Equal(t, Totals(nil, snap).RiskZones, sum)
}

func TestAggregate_EmptyInputs(t *testing.T) {
	zs := buildZones(t, model.ZoneConfig{TotalRadiusKm: 2, ZoneWidthKm: 1})
	stats := Aggregate(zs, nil, Snapshot{})
	require.Len(t, stats, 2)
	for _, s := range stats {
		assert.Equal(t, model.CategoryCounts{}, s.Counts)
		assert.Equal(t, 0, s.Total)
	}
	assert.Equal(t, model.CategoryCounts{}, Totals(nil, Snapshot{}))
}

func TestAggregate_MalformedGeometrySkipped(t *testing.T) {
	zs := buildZones(t, model.ZoneConfig{TotalRadiusKm: 2, ZoneWidthKm: 1})
	snap := NewSnapshot(map[model.Category][]model.Feature{
		model.CategoryPolice: {
			{ID: "no-geometry", Category: model.CategoryPolice},
			{ID: "line", Category: model.CategoryPolice, Polygon: geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})},
			pointFeature("ok", model.CategoryPolice, center),
		},
	})
	schools := []model.School{{ID: "no-polygon", Name: "x"}, schoolAt("ok", center)}

	stats := Aggregate(zs, schools, snap)
	assert.Equal(t, 1, stats[0].Counts.Police)
	assert.Equal(t, 1, stats[0].Counts.Schools)

	totals := Totals(schools, snap)
	assert.Equal(t, 3, totals.Police)
	assert.Equal(t, 2, totals.Schools)
}

func TestAggregate_FallbackRingsFirstMatchWins(t *testing.T) {
	zs := buildZones(t, model.ZoneConfig{TotalRadiusKm: 3, ZoneWidthKm: 1}, zones.WithDiffer(alwaysFails{}))
	for _, z := range zs[1:] {
		require.True(t, z.RingApproximate)
	}
	snap := NewSnapshot(map[model.Category][]model.Feature{
		model.CategoryHospitals: {
			pointFeature("h0", model.CategoryHospitals, center),
			pointFeature("h2", model.CategoryHospitals, north(2.5)),
		},
	})

	stats := Aggregate(zs, nil, snap)
	assert.Equal(t, []int{1, 0, 1}, []int{stats[0].Counts.Hospitals, stats[1].Counts.Hospitals, stats[2].Counts.Hospitals})
}

func TestAggregate_Idempotent(t *testing.T) {
	zs := buildZones(t, model.ZoneConfig{TotalRadiusKm: 4, ZoneWidthKm: 1})
	snap := NewSnapshot(map[model.Category][]model.Feature{
		model.CategoryHospitals: {pointFeature("h", model.CategoryHospitals, north(1.5))},
	})
	schools := []model.School{schoolAt("s", north(3.2))}

	assert.Equal(t, Aggregate(zs, schools, snap), Aggregate(zs, schools, snap))
}

type alwaysFails struct{}

func (alwaysFails) Name() string { return "always-fails" }
func (alwaysFails) Difference(_, _ geom.T) (geom.T, error) {
	return nil, geo.ErrDegenerate
}
