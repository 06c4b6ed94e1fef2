// Package layers loads the school and feature layers from their providers and
// publishes them as an immutable State.
package layers

import (
	"context"

	"github.com/sells-group/school-risk/internal/model"
)

// Role says how a layer's payload is used.
type Role string

// Layer roles.
const (
	RolePrimarySchools   Role = "primary_schools"
	RoleSecondarySchools Role = "secondary_schools"
	RoleFeatures         Role = "features"
)

// IsSchools reports whether the role carries schools rather than features.
func (r Role) IsSchools() bool {
	return r == RolePrimarySchools || r == RoleSecondarySchools
}

// Provenance returns the provenance of schools loaded under r.
func (r Role) Provenance() model.Provenance {
	if r == RoleSecondarySchools {
		return model.ProvenanceCommunity
	}
	return model.ProvenanceOfficial
}

// Payload is what one layer fetch produced. Only the field matching the
// layer's role is set.
type Payload struct {
	Schools  []model.School
	Features []model.Feature
}

// Len returns the number of records in the payload.
func (p Payload) Len() int {
	return len(p.Schools) + len(p.Features)
}

// Layer is a single source of schools or features.
type Layer interface {
	Name() string
	Role() Role
	Category() model.Category
	Fetch(ctx context.Context) (Payload, error)
}

// funcLayer adapts a fetch function to Layer.
type funcLayer struct {
	name     string
	role     Role
	category model.Category
	fetch    func(ctx context.Context) (Payload, error)
}

func (l *funcLayer) Name() string                               { return l.name }
func (l *funcLayer) Role() Role                                 { return l.role }
func (l *funcLayer) Category() model.Category                   { return l.category }
func (l *funcLayer) Fetch(ctx context.Context) (Payload, error) { return l.fetch(ctx) }

// NewLayer builds a Layer from a fetch function.
func NewLayer(name string, role Role, c model.Category, fetch func(ctx context.Context) (Payload, error)) Layer {
	return &funcLayer{name: name, role: role, category: c, fetch: fetch}
}
