package model

import (
	"time"

	"github.com/sells-group/school-risk/internal/geo"
)

// AnalysisResult is the output of one buffer-zone analysis.
type AnalysisResult struct {
	Center     geo.Point        `json:"center" yaml:"center"`
	Config     ZoneConfig       `json:"config" yaml:"config"`
	Zones      []Zone           `json:"zones" yaml:"zones"`
	Statistics []ZoneStatistics `json:"statistics" yaml:"statistics"`
	// Totals counts every input feature per category, inside the zones or not.
	Totals CategoryCounts `json:"totals" yaml:"totals"`
	// ApproximateRings counts zones whose ring fell back to the full buffer.
	ApproximateRings int `json:"approximate_rings,omitempty" yaml:"approximate_rings,omitempty"`
}

// CountedTotals sums the per-zone statistics.
func (r *AnalysisResult) CountedTotals() CategoryCounts {
	var out CategoryCounts
	for _, s := range r.Statistics {
		for _, c := range Categories() {
			out.Add(c, s.Counts.Get(c))
		}
	}
	return out
}

// Run is an analysis recorded in run history.
type Run struct {
	ID        string          `json:"id"`
	Center    geo.Point       `json:"center"`
	Config    ZoneConfig      `json:"config"`
	Result    *AnalysisResult `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}
