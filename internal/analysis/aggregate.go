package analysis

import (
	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/geo"
	"github.com/sells-group/school-risk/internal/model"
)

// featureCategories are the snapshot layers counted alongside schools.
var featureCategories = []model.Category{
	model.CategoryHospitals,
	model.CategoryPolice,
	model.CategoryFireStations,
	model.CategoryRiskZones,
}

// compiledZone is a zone with its ring ready for containment tests. region is
// nil when the ring could not be compiled; such a zone matches nothing.
type compiledZone struct {
	zone   model.Zone
	region *geo.Region
}

func compileZones(zones []model.Zone) []compiledZone {
	out := make([]compiledZone, len(zones))
	for i, z := range zones {
		out[i].zone = z
		ring := z.Ring
		if ring == nil && z.Buffer != nil {
			ring = z.Buffer
		}
		if ring == nil {
			zap.L().Warn("analysis: zone has no geometry", zap.Int("zone_id", z.ID))
			continue
		}
		r, err := geo.NewRegion(ring)
		if err != nil {
			zap.L().Warn("analysis: zone ring unusable", zap.Int("zone_id", z.ID), zap.Error(err))
			continue
		}
		out[i].region = r
	}
	return out
}

// firstMatch returns the index of the first zone, scanning outward, whose ring
// contains p, or -1.
func firstMatch(zones []compiledZone, p geo.Point) int {
	for i, cz := range zones {
		if cz.region != nil && cz.region.Contains(p) {
			return i
		}
	}
	return -1
}

// Aggregate counts, for every zone, the schools and snapshot features whose
// representative point falls in the zone's ring. Statistics are returned in
// the order of zones.
//
// A feature is counted at most once: in the first ring, scanning outward, that
// contains it. Schools are represented by the vertex-mean centroid of their
// polygon; other features by their point or polygon centroid. Features without
// usable geometry are skipped. Empty inputs yield zero counts.
func Aggregate(zones []model.Zone, schools []model.School, snap Snapshot) []model.ZoneStatistics {
	compiled := compileZones(zones)
	stats := make([]model.ZoneStatistics, len(zones))
	for i, z := range zones {
		stats[i] = model.ZoneStatistics{ZoneID: z.ID, RadiusKm: z.RadiusKm, Risk: z.Risk}
	}

	skipped := 0
	for _, s := range schools {
		p, ok := s.Centroid()
		if !ok {
			skipped++
			continue
		}
		if i := firstMatch(compiled, p); i >= 0 {
			stats[i].Counts.Add(model.CategorySchools, 1)
		}
	}

	for _, c := range featureCategories {
		for _, f := range snap.features(c) {
			p, ok := f.RepresentativePoint()
			if !ok {
				skipped++
				continue
			}
			if i := firstMatch(compiled, p); i >= 0 {
				stats[i].Counts.Add(c, 1)
			}
		}
	}

	for i := range stats {
		stats[i].Total = stats[i].Counts.Total()
	}

	if skipped > 0 {
		zap.L().Debug("analysis: features without usable geometry skipped", zap.Int("count", skipped))
	}
	return stats
}

// Totals counts every input feature per category regardless of zone
// membership or geometry.
func Totals(schools []model.School, snap Snapshot) model.CategoryCounts {
	var out model.CategoryCounts
	out.Add(model.CategorySchools, len(schools))
	for _, c := range featureCategories {
		out.Add(c, snap.Len(c))
	}
	return out
}
