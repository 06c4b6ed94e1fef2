package model

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// RiskLevel classifies a zone by its rank from the center.
type RiskLevel string

// Risk levels.
const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// ErrInvalidZoneConfig is returned for non-positive or non-finite radii.
var ErrInvalidZoneConfig = eris.New("invalid zone config")

// ZoneConfig sets the total analysis radius and the width of each ring.
type ZoneConfig struct {
	TotalRadiusKm float64 `json:"total_radius_km" yaml:"total_radius_km" mapstructure:"total_radius_km"`
	ZoneWidthKm   float64 `json:"zone_width_km" yaml:"zone_width_km" mapstructure:"zone_width_km"`
}

// Validate requires both values to be positive and finite. Range limits are
// the caller's concern.
func (c ZoneConfig) Validate() error {
	if !(c.TotalRadiusKm > 0) || math.IsInf(c.TotalRadiusKm, 0) {
		return eris.Wrapf(ErrInvalidZoneConfig, "total radius must be positive, got %v", c.TotalRadiusKm)
	}
	if !(c.ZoneWidthKm > 0) || math.IsInf(c.ZoneWidthKm, 0) {
		return eris.Wrapf(ErrInvalidZoneConfig, "zone width must be positive, got %v", c.ZoneWidthKm)
	}
	return nil
}

// numZonesTolerance absorbs float rounding in total / width, so 2.1 / 0.7
// counts as exactly 3.
const numZonesTolerance = 1e-9

// NumZones returns ceil(total / width). A quotient within numZonesTolerance
// (relative) of an integer is taken as that integer.
func (c ZoneConfig) NumZones() int {
	q := c.TotalRadiusKm / c.ZoneWidthKm
	if r := math.Round(q); math.Abs(q-r) <= numZonesTolerance*math.Max(1, r) {
		return int(r)
	}
	return int(math.Ceil(q))
}

// Zone is one ring around the analysis center. ID 1 is the innermost.
type Zone struct {
	ID          int       `json:"id" yaml:"id"`
	RadiusKm    float64   `json:"radius_km" yaml:"radius_km"`
	Risk        RiskLevel `json:"risk_level" yaml:"risk_level"`
	Color       string    `json:"color" yaml:"color"`
	FillOpacity float64   `json:"fill_opacity" yaml:"fill_opacity"`

	// Buffer is the full geodesic disc of RadiusKm.
	Buffer *geom.Polygon `json:"-" yaml:"-"`
	// Ring is the area exclusive to this zone: Buffer minus the previous
	// zone's Buffer. It is a polygon with a hole except for zone 1.
	Ring geom.T `json:"-" yaml:"-"`
	// RingApproximate is set when the difference failed and Ring fell back to
	// Buffer. Such a ring overlaps every inner zone.
	RingApproximate bool `json:"ring_approximate,omitempty" yaml:"ring_approximate,omitempty"`
}

// ZoneStatistics holds the per-category counts of one zone.
type ZoneStatistics struct {
	ZoneID   int            `json:"zone_id" yaml:"zone_id"`
	RadiusKm float64        `json:"radius_km" yaml:"radius_km"`
	Risk     RiskLevel      `json:"risk_level" yaml:"risk_level"`
	Counts   CategoryCounts `json:"counts" yaml:"counts"`
	Total    int            `json:"total" yaml:"total"`
}
