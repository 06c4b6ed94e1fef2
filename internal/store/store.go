// Package store persists analysis run history and the layer cache.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/school-risk/internal/geo"
	"github.com/sells-group/school-risk/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for run history and cached layers.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	// Layer cache. GetCachedLayer returns nil, nil when the entry is missing
	// or expired.
	GetCachedLayer(ctx context.Context, name string) ([]byte, error)
	SetCachedLayer(ctx context.Context, name string, data []byte, ttl time.Duration) error
	DeleteExpiredLayers(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// NewRun wraps an analysis result in a Run with a fresh id.
func NewRun(result *model.AnalysisResult) *model.Run {
	return &model.Run{
		ID:        uuid.New().String(),
		Center:    result.Center,
		Config:    result.Config,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}
}

const defaultListLimit = 100

// zoneColumns are the run_zones columns in insert order.
var zoneColumns = []string{"run_id", "zone_id", "radius_km", "risk", "approximate", "buffer", "ring"}

// zoneRows encodes the zones of a run as run_zones rows with EWKB geometry.
func zoneRows(run *model.Run) ([][]any, error) {
	if run.Result == nil {
		return nil, nil
	}
	rows := make([][]any, 0, len(run.Result.Zones))
	for _, z := range run.Result.Zones {
		var buffer, ring []byte
		var err error
		if z.Buffer != nil {
			if buffer, err = geo.EncodeEWKB(z.Buffer); err != nil {
				return nil, eris.Wrapf(err, "store: encode buffer of zone %d", z.ID)
			}
		}
		if z.Ring != nil {
			if ring, err = geo.EncodeEWKB(z.Ring); err != nil {
				return nil, eris.Wrapf(err, "store: encode ring of zone %d", z.ID)
			}
		}
		rows = append(rows, []any{run.ID, z.ID, z.RadiusKm, string(z.Risk), z.RingApproximate, buffer, ring})
	}
	return rows, nil
}

// attachZoneGeometry decodes stored EWKB into the zone with the given id.
func attachZoneGeometry(result *model.AnalysisResult, zoneID int, buffer, ring []byte) error {
	if result == nil {
		return nil
	}
	for i := range result.Zones {
		z := &result.Zones[i]
		if z.ID != zoneID {
			continue
		}
		if len(buffer) > 0 {
			g, err := geo.DecodeEWKB(buffer)
			if err != nil {
				return eris.Wrapf(err, "store: decode buffer of zone %d", zoneID)
			}
			poly, ok := g.(*geom.Polygon)
			if !ok {
				return eris.Errorf("store: buffer of zone %d is %T, not a polygon", zoneID, g)
			}
			z.Buffer = poly
		}
		if len(ring) > 0 {
			g, err := geo.DecodeEWKB(ring)
			if err != nil {
				return eris.Wrapf(err, "store: decode ring of zone %d", zoneID)
			}
			z.Ring = g
		}
		return nil
	}
	return nil
}
