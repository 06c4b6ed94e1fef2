//go:build geos

package geo

import (
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// GEOSDiffer computes exact planar boolean differences with libgeos. It handles
// arbitrary polygon pairs, including crossing boundaries, in lng/lat space.
type GEOSDiffer struct {
	mu  sync.Mutex
	ctx *geos.Context
}

func newGEOSDiffer() (Differ, error) {
	return &GEOSDiffer{ctx: geos.NewContext()}, nil
}

// Name implements Differ.
func (d *GEOSDiffer) Name() string { return DifferGEOS }

// Difference implements Differ. GEOS reports topology failures by panicking;
// SafeDifference recovers them.
func (d *GEOSDiffer) Difference(outer, inner geom.T) (geom.T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, err := d.toGEOS(outer)
	if err != nil {
		return nil, err
	}
	if inner == nil {
		return outer, nil
	}
	b, err := d.toGEOS(inner)
	if err != nil {
		return nil, err
	}

	diff := a.Difference(b)
	if diff == nil || diff.IsEmpty() {
		return nil, eris.Wrap(ErrDegenerate, "geo: geos difference is empty")
	}

	g, err := wkb.Unmarshal(diff.ToWKB())
	if err != nil {
		return nil, eris.Wrap(err, "geo: decode geos result")
	}
	return orientPolygon(g), nil
}

func (d *GEOSDiffer) toGEOS(g geom.T) (*geos.Geom, error) {
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode wkb for geos")
	}
	out, err := d.ctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, eris.Wrap(err, "geo: geos parse wkb")
	}
	return out, nil
}
