package layers

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/school-risk/internal/model"
	"github.com/sells-group/school-risk/internal/source"
)

// WFSSchools is the official school layer.
func WFSSchools(w *source.WFS) Layer {
	return NewLayer("wfs_schools", RolePrimarySchools, model.CategorySchools, func(ctx context.Context) (Payload, error) {
		schools, err := w.FetchSchools(ctx)
		return Payload{Schools: schools}, err
	})
}

// WFSRiskZones is the risk zone layer.
func WFSRiskZones(w *source.WFS) Layer {
	return NewLayer("wfs_risk_zones", RoleFeatures, model.CategoryRiskZones, func(ctx context.Context) (Payload, error) {
		features, err := w.FetchRiskZones(ctx)
		return Payload{Features: features}, err
	})
}

// OverpassSchools is the community school layer.
func OverpassSchools(o *source.Overpass) Layer {
	return NewLayer("overpass_schools", RoleSecondarySchools, model.CategorySchools, func(ctx context.Context) (Payload, error) {
		schools, err := o.FetchSchools(ctx)
		return Payload{Schools: schools}, err
	})
}

// OverpassFeatures is the Overpass layer of category c.
func OverpassFeatures(o *source.Overpass, c model.Category) Layer {
	return NewLayer("overpass_"+string(c), RoleFeatures, c, func(ctx context.Context) (Payload, error) {
		features, err := o.FetchFeatures(ctx, c)
		return Payload{Features: features}, err
	})
}

// ProviderRegistry registers every provider layer that is configured: WFS
// layers when a server URL and type name are set, Overpass layers when a
// bounding box is set.
func ProviderRegistry(w *source.WFS, wfsOpts source.WFSOptions, o *source.Overpass) *Registry {
	reg := NewRegistry()
	if w != nil && w.Available() {
		if wfsOpts.SchoolsTypeName != "" {
			reg.Register(WFSSchools(w))
		}
		if wfsOpts.RiskZonesTypeName != "" {
			reg.Register(WFSRiskZones(w))
		}
	}
	if o != nil && o.Available() {
		reg.Register(OverpassSchools(o))
		for _, c := range []model.Category{model.CategoryHospitals, model.CategoryPolice, model.CategoryFireStations} {
			reg.Register(OverpassFeatures(o, c))
		}
	}
	return reg
}

// FileLayer reads a layer from a local file: ".geojson" files are GeoJSON
// FeatureCollections, ".json" files are saved Overpass responses.
func FileLayer(name string, role Role, c model.Category, path string) Layer {
	return NewLayer(name, role, c, func(ctx context.Context) (Payload, error) {
		if err := ctx.Err(); err != nil {
			return Payload{}, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".geojson":
			return readGeoJSONFile(path, role, c)
		case ".json":
			res, err := source.ReadOverpassFile(path)
			if err != nil {
				return Payload{}, err
			}
			if role.IsSchools() {
				return Payload{Schools: source.SchoolsFromResult(res)}, nil
			}
			return Payload{Features: source.FeaturesFromResult(res, c)}, nil
		default:
			return Payload{}, eris.Errorf("layers: unsupported file type %q", path)
		}
	})
}

func readGeoJSONFile(path string, role Role, c model.Category) (Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return Payload{}, eris.Wrap(err, "layers: open file")
	}
	defer f.Close() //nolint:errcheck

	if role.IsSchools() {
		schools, err := source.DecodeSchools(f, role.Provenance(), nil)
		return Payload{Schools: schools}, err
	}
	features, err := source.DecodeFeatures(f, c, nil)
	return Payload{Features: features}, err
}

// dirEntries are the file base names DirRegistry looks for.
var dirEntries = []struct {
	base     string
	role     Role
	category model.Category
}{
	{"official_schools", RolePrimarySchools, model.CategorySchools},
	{"community_schools", RoleSecondarySchools, model.CategorySchools},
	{"hospitals", RoleFeatures, model.CategoryHospitals},
	{"police", RoleFeatures, model.CategoryPolice},
	{"fire_stations", RoleFeatures, model.CategoryFireStations},
	{"risk_zones", RoleFeatures, model.CategoryRiskZones},
}

// DirRegistry registers the layer files present in dir. For each layer
// <base>.geojson is preferred over <base>.json.
func DirRegistry(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, eris.Wrap(err, "layers: stat dir")
	}
	if !info.IsDir() {
		return nil, eris.Errorf("layers: %s is not a directory", dir)
	}

	reg := NewRegistry()
	for _, e := range dirEntries {
		for _, ext := range []string{".geojson", ".json"} {
			path := filepath.Join(dir, e.base+ext)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			reg.Register(FileLayer("file_"+e.base, e.role, e.category, path))
			break
		}
	}
	return reg, nil
}
