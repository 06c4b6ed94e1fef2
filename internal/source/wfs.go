package source

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/sells-group/school-risk/internal/model"
)

// WFSOptions configures the WFS adapter.
type WFSOptions struct {
	URL               string
	SchoolsTypeName   string
	RiskZonesTypeName string
	NameProperties    []string
}

// WFS fetches official schools and risk zones from a WFS server as GeoJSON.
type WFS struct {
	client *Client
	opts   WFSOptions
}

// NewWFS creates a WFS adapter.
func NewWFS(client *Client, opts WFSOptions) *WFS {
	return &WFS{client: client, opts: opts}
}

// Available reports whether a server URL is configured.
func (w *WFS) Available() bool {
	return w.opts.URL != ""
}

// GetFeatureURL builds the GetFeature request for typeName.
func (w *WFS) GetFeatureURL(typeName string) (string, error) {
	u, err := url.Parse(w.opts.URL)
	if err != nil {
		return "", eris.Wrap(err, "wfs: parse url")
	}
	q := u.Query()
	q.Set("service", "WFS")
	q.Set("version", "2.0.0")
	q.Set("request", "GetFeature")
	q.Set("typeName", typeName)
	q.Set("outputFormat", "application/json")
	q.Set("srsName", "EPSG:4326")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchSchools fetches the official school layer.
func (w *WFS) FetchSchools(ctx context.Context) ([]model.School, error) {
	if w.opts.SchoolsTypeName == "" {
		return nil, eris.New("wfs: schools type name not configured")
	}
	u, err := w.GetFeatureURL(w.opts.SchoolsTypeName)
	if err != nil {
		return nil, err
	}
	body, err := w.client.Get(ctx, u)
	if err != nil {
		return nil, eris.Wrap(err, "wfs: fetch schools")
	}
	defer body.Close() //nolint:errcheck

	schools, err := DecodeSchools(body, model.ProvenanceOfficial, w.opts.NameProperties)
	if err != nil {
		return nil, eris.Wrap(err, "wfs: schools")
	}
	return schools, nil
}

// FetchRiskZones fetches the risk zone layer.
func (w *WFS) FetchRiskZones(ctx context.Context) ([]model.Feature, error) {
	if w.opts.RiskZonesTypeName == "" {
		return nil, eris.New("wfs: risk zones type name not configured")
	}
	u, err := w.GetFeatureURL(w.opts.RiskZonesTypeName)
	if err != nil {
		return nil, err
	}
	body, err := w.client.Get(ctx, u)
	if err != nil {
		return nil, eris.Wrap(err, "wfs: fetch risk zones")
	}
	defer body.Close() //nolint:errcheck

	features, err := DecodeFeatures(body, model.CategoryRiskZones, w.opts.NameProperties)
	if err != nil {
		return nil, eris.Wrap(err, "wfs: risk zones")
	}
	return features, nil
}
