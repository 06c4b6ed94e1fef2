package zones

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/geo"
	"github.com/sells-group/school-risk/internal/model"
)

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithDiffer sets the polygon difference backend used for rings.
func WithDiffer(d geo.Differ) BuilderOption {
	return func(b *Builder) {
		if d != nil {
			b.differ = d
		}
	}
}

// WithBufferSteps sets the number of vertices of each buffer.
func WithBufferSteps(steps int) BuilderOption {
	return func(b *Builder) {
		if steps >= 3 {
			b.steps = steps
		}
	}
}

// Builder produces the ordered ring zones around a center point. It holds no
// per-call state and is safe for concurrent use when its Differ is.
type Builder struct {
	differ geo.Differ
	steps  int
}

// NewBuilder creates a Builder using the spherical differ and 64-vertex buffers
// unless overridden.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		differ: geo.SphericalDiffer{},
		steps:  geo.DefaultBufferSteps,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns ceil(total/width) zones in ascending radius order. Zone i has
// radius min(i*width, total), so the last zone always ends exactly at the total
// radius. Each zone carries its full buffer and its exclusive ring.
func (b *Builder) Build(center geo.Point, cfg model.ZoneConfig) ([]model.Zone, error) {
	if !center.Valid() {
		return nil, eris.Wrapf(geo.ErrInvalidPoint, "zones: center %+v", center)
	}
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "zones: build")
	}

	n := cfg.NumZones()
	out := make([]model.Zone, 0, n)
	var previous *geom.Polygon
	for i := 1; i <= n; i++ {
		radius := math.Min(float64(i)*cfg.ZoneWidthKm, cfg.TotalRadiusKm)
		if i == n {
			radius = cfg.TotalRadiusKm
		}
		risk := ClassifyRisk(i, n)
		buffer := geo.Buffer(center, radius, b.steps)

		z := model.Zone{
			ID:          i,
			RadiusKm:    radius,
			Risk:        risk,
			Color:       Color(risk),
			FillOpacity: FillOpacity(i, n),
			Buffer:      buffer,
		}
		z.Ring, z.RingApproximate = b.ring(z.ID, buffer, previous)
		out = append(out, z)
		previous = buffer
	}
	return out, nil
}

// ring subtracts the previous full buffer from the current one. When the
// difference fails the full buffer is used instead and the zone is flagged:
// features already counted by inner zones are then not excluded geometrically,
// only by first-match order.
func (b *Builder) ring(zoneID int, buffer, previous *geom.Polygon) (geom.T, bool) {
	if previous == nil {
		return buffer, false
	}
	ring, err := geo.SafeDifference(b.differ, buffer, previous)
	if err != nil {
		zap.L().Warn("zones: ring difference failed, using full buffer",
			zap.Int("zone_id", zoneID),
			zap.String("differ", b.differ.Name()),
			zap.Error(err),
		)
		return buffer, true
	}
	return ring, false
}
