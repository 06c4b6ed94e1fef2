// Package zones builds the concentric ring zones of a buffer analysis.
package zones

import "github.com/sells-group/school-risk/internal/model"

// Rank thresholds for risk classification (fraction of the zone count).
const (
	highRiskMaxRatio   = 0.6 // ratio <= 0.6
	mediumRiskMaxRatio = 0.8 // 0.6 < ratio <= 0.8
)

// Fill opacity of the innermost ratio and its decrease per unit ratio.
const (
	baseFillOpacity  = 0.35
	fillOpacityRange = 0.2
)

// Zone colors by risk level.
const (
	ColorHigh   = "#d73027"
	ColorMedium = "#fc8d59"
	ColorLow    = "#fee08b"
)

func ratio(index, numZones int) float64 {
	return float64(index) / float64(numZones)
}

// ClassifyRisk returns the risk level of zone index (1-based) out of numZones.
// Rules, with ratio = index / numZones:
//   - high: ratio <= 0.6
//   - medium: 0.6 < ratio <= 0.8
//   - low: ratio > 0.8
//
// Risk depends on rank only, so roughly 60/20/20 percent of the rings are
// high/medium/low whatever the widths.
func ClassifyRisk(index, numZones int) model.RiskLevel {
	r := ratio(index, numZones)
	switch {
	case r <= highRiskMaxRatio:
		return model.RiskHigh
	case r <= mediumRiskMaxRatio:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// FillOpacity returns 0.35 - ratio*0.2; it decreases linearly outward and does
// not depend on the risk level.
func FillOpacity(index, numZones int) float64 {
	return baseFillOpacity - ratio(index, numZones)*fillOpacityRange
}

// Color returns the display color of a risk level.
func Color(risk model.RiskLevel) string {
	switch risk {
	case model.RiskHigh:
		return ColorHigh
	case model.RiskMedium:
		return ColorMedium
	default:
		return ColorLow
	}
}
