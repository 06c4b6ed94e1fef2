package zones

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/school-risk/internal/model"
)

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		name     string
		index    int
		numZones int
		expected model.RiskLevel
	}{
		{name: "high: innermost of five", index: 1, numZones: 5, expected: model.RiskHigh},
		{name: "high: at 0.6 threshold", index: 3, numZones: 5, expected: model.RiskHigh},
		{name: "high: at 0.6 threshold with ten zones", index: 6, numZones: 10, expected: model.RiskHigh},
		{name: "medium: just past 0.6", index: 7, numZones: 10, expected: model.RiskMedium},
		{name: "medium: at 0.8 threshold", index: 4, numZones: 5, expected: model.RiskMedium},
		{name: "low: just past 0.8", index: 9, numZones: 10, expected: model.RiskLow},
		{name: "low: outermost", index: 5, numZones: 5, expected: model.RiskLow},
		{name: "low: single zone", index: 1, numZones: 1, expected: model.RiskLow},
		{name: "high: first of two", index: 1, numZones: 2, expected: model.RiskHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyRisk(tt.index, tt.numZones))
		})
	}
}

func TestFillOpacity(t *testing.T) {
	assert.InDelta(t, 0.31, FillOpacity(1, 5), 1e-12)
	assert.InDelta(t, 0.25, FillOpacity(5, 10), 1e-12)
	assert.InDelta(t, 0.15, FillOpacity(3, 3), 1e-12)
}

func TestColor(t *testing.T) {
	assert.Equal(t, ColorHigh, Color(model.RiskHigh))
	assert.Equal(t, ColorMedium, Color(model.RiskMedium))
	assert.Equal(t, ColorLow, Color(model.RiskLow))
}
