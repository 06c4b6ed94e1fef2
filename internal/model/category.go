// Package model defines the data shared by the zone builder, the aggregator,
// the school linker and the layers that feed them.
package model

import "github.com/rotisserie/eris"

// Category identifies a feature layer.
type Category string

// Feature categories counted per zone.
const (
	CategorySchools      Category = "schools"
	CategoryHospitals    Category = "hospitals"
	CategoryPolice       Category = "police"
	CategoryFireStations Category = "fire_stations"
	CategoryRiskZones    Category = "risk_zones"
)

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{
		CategorySchools,
		CategoryHospitals,
		CategoryPolice,
		CategoryFireStations,
		CategoryRiskZones,
	}
}

// String returns the category name.
func (c Category) String() string { return string(c) }

// ParseCategory converts a string into a Category.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "schools":
		return CategorySchools, nil
	case "hospitals":
		return CategoryHospitals, nil
	case "police":
		return CategoryPolice, nil
	case "fire_stations", "fire-stations":
		return CategoryFireStations, nil
	case "risk_zones", "risk-zones":
		return CategoryRiskZones, nil
	default:
		return "", eris.Errorf("unknown category: %q (valid: schools, hospitals, police, fire_stations, risk_zones)", s)
	}
}

// CategoryCounts holds one count per category.
type CategoryCounts struct {
	Schools      int `json:"schools" yaml:"schools"`
	Hospitals    int `json:"hospitals" yaml:"hospitals"`
	Police       int `json:"police" yaml:"police"`
	FireStations int `json:"fire_stations" yaml:"fire_stations"`
	RiskZones    int `json:"risk_zones" yaml:"risk_zones"`
}

// Get returns the count for c.
func (cc CategoryCounts) Get(c Category) int {
	switch c {
	case CategorySchools:
		return cc.Schools
	case CategoryHospitals:
		return cc.Hospitals
	case CategoryPolice:
		return cc.Police
	case CategoryFireStations:
		return cc.FireStations
	case CategoryRiskZones:
		return cc.RiskZones
	default:
		return 0
	}
}

// Add increments the count for c by n. Unknown categories are ignored.
func (cc *CategoryCounts) Add(c Category, n int) {
	switch c {
	case CategorySchools:
		cc.Schools += n
	case CategoryHospitals:
		cc.Hospitals += n
	case CategoryPolice:
		cc.Police += n
	case CategoryFireStations:
		cc.FireStations += n
	case CategoryRiskZones:
		cc.RiskZones += n
	}
}

// Total returns the sum of all five counts.
func (cc CategoryCounts) Total() int {
	return cc.Schools + cc.Hospitals + cc.Police + cc.FireStations + cc.RiskZones
}
