package layers

import (
	"bytes"
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/school-risk/internal/analysis"
	"github.com/sells-group/school-risk/internal/model"
	"github.com/sells-group/school-risk/internal/school"
	"github.com/sells-group/school-risk/internal/source"
)

// ErrNoLayers is returned when the registry has nothing to load.
var ErrNoLayers = eris.New("layers: no layers configured")

// Cache stores encoded layer payloads. store.Store satisfies it.
type Cache interface {
	GetCachedLayer(ctx context.Context, name string) ([]byte, error)
	SetCachedLayer(ctx context.Context, name string, data []byte, ttl time.Duration) error
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	Concurrency int
	CacheTTL    time.Duration
}

// LoadOpts controls a single load.
type LoadOpts struct {
	// Refresh skips cache reads. Fresh payloads are still written back.
	Refresh bool
}

// Loader fetches every registered layer in parallel, merges the two school
// collections and freezes the feature layers into a snapshot.
type Loader struct {
	reg    *Registry
	linker *school.Linker
	cache  Cache
	opts   LoaderOptions
}

// NewLoader creates a Loader. cache may be nil.
func NewLoader(reg *Registry, linker *school.Linker, cache Cache, opts LoaderOptions) *Loader {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if linker == nil {
		linker = school.NewLinker(school.DefaultOptions())
	}
	return &Loader{reg: reg, linker: linker, cache: cache, opts: opts}
}

type layerResult struct {
	payload Payload
	err     error
	cached  bool
}

// Load fetches all layers. A failed layer is logged and left out: the state
// is published with the remaining layers and the failure listed in
// State.Failed. Only an empty registry or a cancelled context fail the load.
func (l *Loader) Load(ctx context.Context, opts LoadOpts) (*State, error) {
	log := zap.L().With(zap.String("component", "layers.loader"))
	all := l.reg.All()
	if len(all) == 0 {
		return nil, ErrNoLayers
	}

	start := time.Now()
	results := make([]layerResult, len(all))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)

	for i, layer := range all {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			lLog := log.With(zap.String("layer", layer.Name()), zap.String("role", string(layer.Role())))
			res := l.fetch(gctx, layer, opts)
			if res.err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				lLog.Warn("layer failed", zap.Error(res.err))
				failed.Add(1)
			} else {
				lLog.Debug("layer loaded", zap.Int("count", res.payload.Len()), zap.Bool("cached", res.cached))
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	state := l.assemble(all, results)
	log.Info("layers loaded",
		zap.Int("layers", len(all)),
		zap.Int64("failed", failed.Load()),
		zap.Int("schools", len(state.Schools)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return state, nil
}

func (l *Loader) fetch(ctx context.Context, layer Layer, opts LoadOpts) layerResult {
	if l.cache != nil && !opts.Refresh {
		if p, ok := l.readCache(ctx, layer); ok {
			return layerResult{payload: p, cached: true}
		}
	}

	p, err := layer.Fetch(ctx)
	if err != nil {
		return layerResult{err: eris.Wrapf(err, "layers: fetch %s", layer.Name())}
	}
	if l.cache != nil && l.opts.CacheTTL > 0 {
		l.writeCache(ctx, layer, p)
	}
	return layerResult{payload: p}
}

func (l *Loader) readCache(ctx context.Context, layer Layer) (Payload, bool) {
	data, err := l.cache.GetCachedLayer(ctx, layer.Name())
	if err != nil {
		zap.L().Warn("layers: cache read failed", zap.String("layer", layer.Name()), zap.Error(err))
		return Payload{}, false
	}
	if data == nil {
		return Payload{}, false
	}
	p, err := decodePayload(layer, data)
	if err != nil {
		zap.L().Warn("layers: cached payload unreadable", zap.String("layer", layer.Name()), zap.Error(err))
		return Payload{}, false
	}
	return p, true
}

func (l *Loader) writeCache(ctx context.Context, layer Layer, p Payload) {
	data, err := encodePayload(layer, p)
	if err == nil {
		err = l.cache.SetCachedLayer(ctx, layer.Name(), data, l.opts.CacheTTL)
	}
	if err != nil {
		zap.L().Warn("layers: cache write failed", zap.String("layer", layer.Name()), zap.Error(err))
	}
}

// encodePayload stores payloads as GeoJSON so cached and fresh layers go
// through the same decoder.
func encodePayload(layer Layer, p Payload) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if layer.Role().IsSchools() {
		err = source.EncodeSchools(&buf, p.Schools)
	} else {
		err = source.EncodeFeatures(&buf, p.Features)
	}
	return buf.Bytes(), err
}

func decodePayload(layer Layer, data []byte) (Payload, error) {
	r := bytes.NewReader(data)
	if layer.Role().IsSchools() {
		schools, err := source.DecodeSchools(r, layer.Role().Provenance(), nil)
		return Payload{Schools: schools}, err
	}
	features, err := source.DecodeFeatures(r, layer.Category(), nil)
	return Payload{Features: features}, err
}

// assemble combines the per-layer results in registration order.
func (l *Loader) assemble(all []Layer, results []layerResult) *State {
	state := &State{
		Counts:   make(map[string]int, len(all)),
		LoadedAt: time.Now().UTC(),
	}
	var primary, secondary []model.School
	features := make(map[model.Category][]model.Feature)

	for i, layer := range all {
		res := results[i]
		if res.err != nil {
			state.Failed = append(state.Failed, layer.Name())
			continue
		}
		state.Counts[layer.Name()] = res.payload.Len()
		switch layer.Role() {
		case RolePrimarySchools:
			primary = append(primary, res.payload.Schools...)
		case RoleSecondarySchools:
			secondary = append(secondary, res.payload.Schools...)
		default:
			features[layer.Category()] = append(features[layer.Category()], res.payload.Features...)
		}
	}

	state.Schools = l.linker.Merge(primary, secondary)
	state.Snapshot = analysis.NewSnapshot(features)
	return state
}
