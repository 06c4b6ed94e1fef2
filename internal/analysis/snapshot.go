// Package analysis counts features per ring zone and assembles analysis results.
package analysis

import (
	"slices"

	"github.com/sells-group/school-risk/internal/model"
)

// Snapshot is an immutable view of the non-school feature layers, keyed by
// category. It is built once per layer load and passed explicitly into every
// aggregation; nothing in this package reads layer state from anywhere else.
type Snapshot struct {
	layers map[model.Category][]model.Feature
}

// NewSnapshot copies layers into a new Snapshot. Later changes to the input map
// or slices are not observed.
func NewSnapshot(layers map[model.Category][]model.Feature) Snapshot {
	s := Snapshot{layers: make(map[model.Category][]model.Feature, len(layers))}
	for c, fs := range layers {
		s.layers[c] = slices.Clone(fs)
	}
	return s
}

// With returns a new Snapshot where category c holds features. The receiver is
// unchanged.
func (s Snapshot) With(c model.Category, features []model.Feature) Snapshot {
	next := Snapshot{layers: make(map[model.Category][]model.Feature, len(s.layers)+1)}
	for k, v := range s.layers {
		next.layers[k] = v
	}
	next.layers[c] = slices.Clone(features)
	return next
}

// Features returns a copy of the features of category c.
func (s Snapshot) Features(c model.Category) []model.Feature {
	return slices.Clone(s.layers[c])
}

// Len returns the number of features of category c.
func (s Snapshot) Len(c model.Category) int {
	return len(s.layers[c])
}

// Has reports whether category c was loaded, even if empty.
func (s Snapshot) Has(c model.Category) bool {
	_, ok := s.layers[c]
	return ok
}

// Categories returns the loaded categories in display order.
func (s Snapshot) Categories() []model.Category {
	var out []model.Category
	for _, c := range model.Categories() {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s Snapshot) features(c model.Category) []model.Feature {
	return s.layers[c]
}
