package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/serjvanilla/go-overpass"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/school-risk/internal/geo"
	"github.com/sells-group/school-risk/internal/model"
)

// DefaultOverpassEndpoint is the public Overpass interpreter.
const DefaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

// amenityTags maps each Overpass-backed layer to its amenity tag value.
var amenityTags = map[model.Category]string{
	model.CategorySchools:      "school",
	model.CategoryHospitals:    "hospital",
	model.CategoryPolice:       "police",
	model.CategoryFireStations: "fire_station",
}

// AmenityTag returns the amenity tag value queried for c.
func AmenityTag(c model.Category) (string, bool) {
	v, ok := amenityTags[c]
	return v, ok
}

// OverpassOptions configures the Overpass adapter.
type OverpassOptions struct {
	Endpoint string
	// BBox is "south,west,north,east" in degrees.
	BBox    string
	Timeout time.Duration
}

// Overpass fetches community-mapped schools and civic infrastructure.
type Overpass struct {
	client *Client
	opts   OverpassOptions
}

// NewOverpass creates an Overpass adapter.
func NewOverpass(client *Client, opts OverpassOptions) *Overpass {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultOverpassEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Overpass{client: client, opts: opts}
}

// Available reports whether a bounding box is configured. Unbounded queries
// are never sent.
func (o *Overpass) Available() bool {
	return o.opts.BBox != ""
}

// BuildQuery returns the Overpass QL query for amenity=tag nodes and ways
// inside bbox, with way vertices resolved.
func BuildQuery(tag, bbox string, timeout time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", int(timeout.Seconds()))
	fmt.Fprintf(&b, "  node[\"amenity\"=%q](%s);\n", tag, bbox)
	fmt.Fprintf(&b, "  way[\"amenity\"=%q](%s);\n", tag, bbox)
	b.WriteString(");\nout body;\n>;\nout skel qt;\n")
	return b.String()
}

func (o *Overpass) query(ctx context.Context, c model.Category) (overpass.Result, error) {
	tag, ok := AmenityTag(c)
	if !ok {
		return overpass.Result{}, eris.Errorf("overpass: no tag for category %q", c)
	}
	if !o.Available() {
		return overpass.Result{}, eris.New("overpass: bbox not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	client := overpass.NewWithSettings(o.opts.Endpoint, 1, contextDoer{ctx: ctx, next: o.client})
	res, err := client.Query(BuildQuery(tag, o.opts.BBox, o.opts.Timeout))
	if err != nil {
		return overpass.Result{}, eris.Wrapf(err, "overpass: query %s", c)
	}
	return res, nil
}

// FetchSchools fetches community-mapped schools.
func (o *Overpass) FetchSchools(ctx context.Context) ([]model.School, error) {
	res, err := o.query(ctx, model.CategorySchools)
	if err != nil {
		return nil, err
	}
	return SchoolsFromResult(res), nil
}

// FetchFeatures fetches one civic infrastructure layer.
func (o *Overpass) FetchFeatures(ctx context.Context, c model.Category) ([]model.Feature, error) {
	res, err := o.query(ctx, c)
	if err != nil {
		return nil, err
	}
	return FeaturesFromResult(res, c), nil
}

// element is a tagged node or way flattened for conversion.
type element struct {
	id      string
	tags    map[string]string
	point   *geo.Point
	outline []geo.Point
}

// elements returns the tagged nodes and ways of res with amenity=tag, nodes
// first, each group in ascending OSM id order. Untagged way vertices are
// dropped.
func elements(res overpass.Result, tag string) []element {
	var out []element

	nodeIDs := slices.Sorted(maps.Keys(res.Nodes))
	for _, id := range nodeIDs {
		n := res.Nodes[id]
		if n == nil || n.Tags["amenity"] != tag {
			continue
		}
		p := geo.FromLatLng(n.Lat, n.Lon)
		out = append(out, element{id: "node/" + strconv.FormatInt(id, 10), tags: n.Tags, point: &p})
	}

	wayIDs := slices.Sorted(maps.Keys(res.Ways))
	for _, id := range wayIDs {
		w := res.Ways[id]
		if w == nil || w.Tags["amenity"] != tag {
			continue
		}
		e := element{id: "way/" + strconv.FormatInt(id, 10), tags: w.Tags}
		for _, n := range w.Nodes {
			if n == nil || (n.Lat == 0 && n.Lon == 0) {
				continue
			}
			e.outline = append(e.outline, geo.FromLatLng(n.Lat, n.Lon))
		}
		out = append(out, e)
	}
	return out
}

func (e element) properties() map[string]any {
	props := make(map[string]any, len(e.tags))
	for k, v := range e.tags {
		props[k] = v
	}
	return props
}

func (e element) polygon() (*geom.Polygon, error) {
	if e.point != nil {
		if !e.point.Valid() {
			return nil, eris.Wrapf(geo.ErrInvalidPoint, "overpass: %s", e.id)
		}
		return geo.Square(*e.point, geo.DefaultSquareHalfSideDeg), nil
	}
	return geo.NewPolygon(e.outline)
}

// SchoolsFromResult converts amenity=school elements. Ways keep their traced
// outline; nodes become placeholder squares. Outlines with fewer than 3
// distinct vertices are skipped.
func SchoolsFromResult(res overpass.Result) []model.School {
	var out []model.School
	for _, e := range elements(res, amenityTags[model.CategorySchools]) {
		poly, err := e.polygon()
		if err != nil {
			zap.L().Debug("overpass: school geometry skipped", zap.String("id", e.id), zap.Error(err))
			continue
		}
		out = append(out, model.School{
			ID:         e.id,
			Name:       e.tags["name"],
			Polygon:    poly,
			Provenance: model.ProvenanceCommunity,
			Properties: e.properties(),
		})
	}
	return out
}

// FeaturesFromResult converts the elements of category c. Nodes keep their
// position; ways become polygons.
func FeaturesFromResult(res overpass.Result, c model.Category) []model.Feature {
	tag, ok := amenityTags[c]
	if !ok {
		return nil
	}
	var out []model.Feature
	for _, e := range elements(res, tag) {
		f := model.Feature{ID: e.id, Name: e.tags["name"], Category: c, Properties: e.properties()}
		if e.point != nil {
			p := *e.point
			f.Point = &p
		} else {
			poly, err := geo.NewPolygon(e.outline)
			if err != nil {
				zap.L().Debug("overpass: feature geometry skipped", zap.String("id", e.id), zap.Error(err))
				continue
			}
			f.Polygon = poly
		}
		out = append(out, f)
	}
	return out
}

// fileDoer answers every request with the contents of a saved Overpass JSON
// response, so offline files go through the same decoder.
type fileDoer struct {
	data []byte
}

func (d fileDoer) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(d.data)),
		Request:    req,
	}, nil
}

// DecodeOverpass parses a saved Overpass JSON response.
func DecodeOverpass(r io.Reader) (overpass.Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return overpass.Result{}, eris.Wrap(err, "overpass: read")
	}
	client := overpass.NewWithSettings("http://offline.invalid/api/interpreter", 1, fileDoer{data: data})
	res, err := client.Query("")
	if err != nil {
		return overpass.Result{}, eris.Wrap(err, "overpass: decode")
	}
	return res, nil
}

// ReadOverpassFile parses a saved Overpass JSON response from path.
func ReadOverpassFile(path string) (overpass.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return overpass.Result{}, eris.Wrap(err, "overpass: open file")
	}
	defer f.Close() //nolint:errcheck
	return DecodeOverpass(f)
}
