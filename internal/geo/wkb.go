package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// SRID is the spatial reference of every geometry this package produces.
const SRID = 4326

// EncodeEWKB converts a polygon or multi-polygon to EWKB bytes with SRID 4326.
// Returns nil, nil for nil or unsupported geometries.
func EncodeEWKB(g geom.T) ([]byte, error) {
	var tagged geom.T
	switch t := g.(type) {
	case *geom.Polygon:
		if t == nil {
			return nil, nil
		}
		tagged = t.Clone().SetSRID(SRID)
	case *geom.MultiPolygon:
		if t == nil {
			return nil, nil
		}
		tagged = t.Clone().SetSRID(SRID)
	case *geom.Point:
		if t == nil {
			return nil, nil
		}
		tagged = t.Clone().SetSRID(SRID)
	default:
		return nil, nil
	}

	data, err := ewkb.Marshal(tagged, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode EWKB")
	}
	return data, nil
}

// DecodeEWKB parses EWKB bytes produced by EncodeEWKB.
func DecodeEWKB(data []byte) (geom.T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geo: decode EWKB")
	}
	return g, nil
}
