package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/school-risk/internal/geo"
	"github.com/sells-group/school-risk/internal/model"
	"github.com/sells-group/school-risk/internal/zones"
)

func TestAnalyze(t *testing.T) {
	a := NewAnalyzer(nil)
	snap := NewSnapshot(map[model.Category][]model.Feature{
		model.CategoryHospitals: {
			pointFeature("h1", model.CategoryHospitals, north(0.3)),
			pointFeature("h2", model.CategoryHospitals, north(40)),
		},
		model.CategoryFireStations: {},
	})
	schools := []model.School{schoolAt("s1", north(1.5)), schoolAt("s2", north(4.2))}

	res, err := a.Analyze(center, model.ZoneConfig{TotalRadiusKm: 5, ZoneWidthKm: 1}, schools, snap)
	require.NoError(t, err)

	assert.Equal(t, center, res.Center)
	require.Len(t, res.Zones, 5)
	require.Len(t, res.Statistics, 5)
	for i := range res.Zones {
		assert.Equal(t, res.Zones[i].ID, res.Statistics[i].ZoneID)
	}
	assert.Equal(t, 0, res.ApproximateRings)

	assert.Equal(t, model.CategoryCounts{Schools: 2, Hospitals: 2}, res.Totals)
	assert.Equal(t, model.CategoryCounts{Schools: 2, Hospitals: 1}, res.CountedTotals())
	assert.Equal(t, 1, res.Statistics[0].Counts.Hospitals)
	assert.Equal(t, 1, res.Statistics[1].Counts.Schools)
	assert.Equal(t, 1, res.Statistics[4].Counts.Schools)
}

func TestAnalyze_CountsApproximateRings(t *testing.T) {
	a := NewAnalyzer(zones.NewBuilder(zones.WithDiffer(alwaysFails{})))
	res, err := a.Analyze(center, model.ZoneConfig{TotalRadiusKm: 4, ZoneWidthKm: 1}, nil, Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ApproximateRings)
}

func TestAnalyze_InvalidConfig(t *testing.T) {
	_, err := NewAnalyzer(nil).Analyze(center, model.ZoneConfig{TotalRadiusKm: -1, ZoneWidthKm: 1}, nil, Snapshot{})
	assert.ErrorIs(t, err, model.ErrInvalidZoneConfig)

	_, err = NewAnalyzer(nil).Analyze(geo.Point{Lat: 0, Lng: 200}, model.ZoneConfig{TotalRadiusKm: 1, ZoneWidthKm: 1}, nil, Snapshot{})
	assert.ErrorIs(t, err, geo.ErrInvalidPoint)
}

func TestAnalyze_Idempotent(t *testing.T) {
	a := NewAnalyzer(nil)
	snap := NewSnapshot(map[model.Category][]model.Feature{
		model.CategoryPolice: {pointFeature("p", model.CategoryPolice, north(2.2))},
	})
	cfg := model.ZoneConfig{TotalRadiusKm: 3, ZoneWidthKm: 1}

	first, err := a.Analyze(center, cfg, nil, snap)
	require.NoError(t, err)
	second, err := a.Analyze(center, cfg, nil, snap)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
