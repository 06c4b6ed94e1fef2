package source

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/geo"
	"github.com/sells-group/school-risk/internal/model"
)

// DefaultNameProperties lists the feature properties tried, in order, for a
// feature's display name.
var DefaultNameProperties = []string{"name", "nombre", "NOM_ESTAB"}

// rawFeature defers geometry decoding so that one bad feature does not fail
// the whole collection. IDs may be strings or numbers.
type rawFeature struct {
	ID         json.RawMessage `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

type decodedFeature struct {
	id         string
	name       string
	geometry   geom.T
	properties map[string]any
}

// decodeCollection reads a GeoJSON FeatureCollection ([lng, lat] order).
// Features with null, malformed or unsupported geometry are skipped.
func decodeCollection(r io.Reader, prefix string, nameProps []string) ([]decodedFeature, error) {
	var fc rawCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "source: decode feature collection")
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("source: expected FeatureCollection, got %q", fc.Type)
	}
	if len(nameProps) == 0 {
		nameProps = DefaultNameProperties
	}

	out := make([]decodedFeature, 0, len(fc.Features))
	for i, f := range fc.Features {
		id := featureID(f.ID, prefix, i)
		if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
			zap.L().Debug("source: feature without geometry skipped", zap.String("id", id))
			continue
		}
		var g geom.T
		if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
			zap.L().Debug("source: malformed geometry skipped", zap.String("id", id), zap.Error(err))
			continue
		}
		g, err := geo.ToXY(g)
		if err != nil {
			zap.L().Debug("source: unusable geometry skipped", zap.String("id", id), zap.Error(err))
			continue
		}
		out = append(out, decodedFeature{
			id:         id,
			name:       propertyName(f.Properties, nameProps),
			geometry:   g,
			properties: f.Properties,
		})
	}
	return out, nil
}

func featureID(raw json.RawMessage, prefix string, index int) string {
	if len(raw) > 0 && string(raw) != "null" {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return prefix + "." + n.String()
		}
	}
	return prefix + "." + strconv.Itoa(index)
}

func propertyName(props map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := props[k]
		if !ok || v == nil {
			continue
		}
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return ""
}

// dropEncoded removes the properties the encoders add (key, value pairs in kv)
// when they hold exactly the value already carried by the decoded struct, so a
// cache round trip returns the source properties unchanged. An emptied map
// becomes nil.
func dropEncoded(props map[string]any, kv ...string) map[string]any {
	for i := 0; i+1 < len(kv); i += 2 {
		if v, ok := props[kv[i]].(string); ok && v == kv[i+1] {
			delete(props, kv[i])
		}
	}
	if len(props) == 0 {
		return nil
	}
	return props
}

// DecodeSchools reads schools from a GeoJSON FeatureCollection. Point
// features become placeholder squares; polygon features keep their outline
// (first member of a multi-polygon).
func DecodeSchools(r io.Reader, provenance model.Provenance, nameProps []string) ([]model.School, error) {
	fs, err := decodeCollection(r, "school", nameProps)
	if err != nil {
		return nil, err
	}
	out := make([]model.School, 0, len(fs))
	for _, f := range fs {
		var poly *geom.Polygon
		switch g := f.geometry.(type) {
		case *geom.Point:
			poly = geo.Square(geo.PointFromCoord(g.Coords()), geo.DefaultSquareHalfSideDeg)
		case *geom.Polygon:
			poly = g
		case *geom.MultiPolygon:
			poly = g.Polygon(0)
		}
		out = append(out, model.School{
			ID:         f.id,
			Name:       f.name,
			Polygon:    poly,
			Provenance: provenance,
			Properties: dropEncoded(f.properties, "name", f.name, "provenance", string(provenance)),
		})
	}
	return out, nil
}

// DecodeFeatures reads features of category c from a GeoJSON
// FeatureCollection. Points keep their position; polygons are kept whole.
func DecodeFeatures(r io.Reader, c model.Category, nameProps []string) ([]model.Feature, error) {
	fs, err := decodeCollection(r, string(c), nameProps)
	if err != nil {
		return nil, err
	}
	out := make([]model.Feature, 0, len(fs))
	for _, f := range fs {
		feat := model.Feature{
			ID:         f.id,
			Name:       f.name,
			Category:   c,
			Properties: dropEncoded(f.properties, "name", f.name, "category", string(c)),
		}
		if pt, ok := f.geometry.(*geom.Point); ok {
			p := geo.PointFromCoord(pt.Coords())
			feat.Point = &p
		} else {
			feat.Polygon = f.geometry
		}
		out = append(out, feat)
	}
	return out, nil
}

// EncodeSchools writes schools as a GeoJSON FeatureCollection. Schools without
// a polygon are written with null geometry.
func EncodeSchools(w io.Writer, schools []model.School) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(schools))}
	for _, s := range schools {
		props := make(map[string]any, len(s.Properties)+2)
		for k, v := range s.Properties {
			props[k] = v
		}
		props["name"] = s.Name
		props["provenance"] = string(s.Provenance)
		f := &geojson.Feature{ID: s.ID, Properties: props}
		if s.Polygon != nil {
			f.Geometry = s.Polygon
		}
		fc.Features = append(fc.Features, f)
	}
	return encode(w, &fc)
}

// EncodeFeatures writes features as a GeoJSON FeatureCollection.
func EncodeFeatures(w io.Writer, features []model.Feature) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(features))}
	for _, f := range features {
		props := make(map[string]any, len(f.Properties)+2)
		for k, v := range f.Properties {
			props[k] = v
		}
		props["name"] = f.Name
		props["category"] = string(f.Category)
		gf := &geojson.Feature{ID: f.ID, Properties: props}
		switch {
		case f.Point != nil:
			gf.Geometry = geom.NewPointFlat(geom.XY, f.Point.LngLat())
		case f.Polygon != nil:
			gf.Geometry = f.Polygon
		}
		fc.Features = append(fc.Features, gf)
	}
	return encode(w, &fc)
}

func encode(w io.Writer, fc *geojson.FeatureCollection) error {
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return eris.Wrap(err, "source: encode feature collection")
	}
	return nil
}
