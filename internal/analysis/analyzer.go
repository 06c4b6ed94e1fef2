package analysis

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/school-risk/internal/geo"
	"github.com/sells-group/school-risk/internal/model"
	"github.com/sells-group/school-risk/internal/zones"
)

// Analyzer runs a full buffer-zone analysis: zone construction followed by
// aggregation.
type Analyzer struct {
	builder *zones.Builder
}

// NewAnalyzer creates an Analyzer. A nil builder uses zones.NewBuilder().
func NewAnalyzer(builder *zones.Builder) *Analyzer {
	if builder == nil {
		builder = zones.NewBuilder()
	}
	return &Analyzer{builder: builder}
}

// Analyze builds the zones around center and counts schools and snapshot
// features per zone. The result depends only on its arguments. The only
// errors are an invalid center or configuration.
func (a *Analyzer) Analyze(center geo.Point, cfg model.ZoneConfig, schools []model.School, snap Snapshot) (*model.AnalysisResult, error) {
	zs, err := a.builder.Build(center, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: build zones")
	}

	result := &model.AnalysisResult{
		Center:     center,
		Config:     cfg,
		Zones:      zs,
		Statistics: Aggregate(zs, schools, snap),
		Totals:     Totals(schools, snap),
	}
	for _, z := range zs {
		if z.RingApproximate {
			result.ApproximateRings++
		}
	}
	return result, nil
}
