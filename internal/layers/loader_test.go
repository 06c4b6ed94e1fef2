package layers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/school-risk/internal/geo"
	"github.com/sells-group/school-risk/internal/model"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) GetCachedLayer(_ context.Context, name string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[name], nil
}

func (c *memCache) SetCachedLayer(_ context.Context, name string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = data
	c.sets++
	return nil
}

var origin = geo.Point{Lat: -33.4378, Lng: -70.6504}

func testSchool(id, name string, p geo.Point, prov model.Provenance) model.School {
	return model.School{ID: id, Name: name, Polygon: geo.Square(p, geo.DefaultSquareHalfSideDeg), Provenance: prov}
}

func testFeature(id string, c model.Category, p geo.Point) model.Feature {
	return model.Feature{ID: id, Name: id, Category: c, Point: &p}
}

// countingLayer counts fetches and returns payload or err.
func countingLayer(name string, role Role, c model.Category, payload Payload, err error, calls *atomic.Int64) Layer {
	return NewLayer(name, role, c, func(context.Context) (Payload, error) {
		calls.Add(1)
		return payload, err
	})
}

func testRegistry(calls *atomic.Int64) *Registry {
	far := geo.Point{Lat: origin.Lat + 0.05, Lng: origin.Lng}
	reg := NewRegistry()
	reg.Register(countingLayer("official", RolePrimarySchools, model.CategorySchools, Payload{Schools: []model.School{
		testSchool("o1", "Liceo Andrés Bello", origin, model.ProvenanceOfficial),
		testSchool("o2", "Escuela Chile", far, model.ProvenanceOfficial),
	}}, nil, calls))
	reg.Register(countingLayer("community", RoleSecondarySchools, model.CategorySchools, Payload{Schools: []model.School{
		testSchool("c1", "Colegio Nuevo", geo.Point{Lat: origin.Lat - 0.05, Lng: origin.Lng}, model.ProvenanceCommunity),
	}}, nil, calls))
	reg.Register(countingLayer("hospitals", RoleFeatures, model.CategoryHospitals, Payload{Features: []model.Feature{
		testFeature("h1", model.CategoryHospitals, origin),
		testFeature("h2", model.CategoryHospitals, far),
	}}, nil, calls))
	reg.Register(countingLayer("police", RoleFeatures, model.CategoryPolice, Payload{}, errors.New("overpass: 504"), calls))
	return reg
}

func TestLoader_Load(t *testing.T) {
	var calls atomic.Int64
	state, err := NewLoader(testRegistry(&calls), nil, nil, LoaderOptions{}).Load(context.Background(), LoadOpts{})
	require.NoError(t, err)

	require.Len(t, state.Schools, 3)
	assert.Equal(t, "o1", state.Schools[0].ID)
	assert.Equal(t, "o2", state.Schools[1].ID)
	assert.Equal(t, "c1", state.Schools[2].ID)

	assert.Equal(t, 2, state.Snapshot.Len(model.CategoryHospitals))
	assert.False(t, state.Snapshot.Has(model.CategoryPolice))
	assert.Equal(t, []string{"police"}, state.Failed)
	assert.Equal(t, map[string]int{"official": 2, "community": 1, "hospitals": 2}, state.Counts)
	assert.False(t, state.LoadedAt.IsZero())
	assert.Equal(t, int64(4), calls.Load())
}

func TestLoader_FeatureLayersOfOneCategoryConcatenate(t *testing.T) {
	var calls atomic.Int64
	reg := NewRegistry()
	reg.Register(countingLayer("a", RoleFeatures, model.CategoryFireStations, Payload{Features: []model.Feature{testFeature("f1", model.CategoryFireStations, origin)}}, nil, &calls))
	reg.Register(countingLayer("b", RoleFeatures, model.CategoryFireStations, Payload{Features: []model.Feature{testFeature("f2", model.CategoryFireStations, origin)}}, nil, &calls))

	state, err := NewLoader(reg, nil, nil, LoaderOptions{Concurrency: 1}).Load(context.Background(), LoadOpts{})
	require.NoError(t, err)
	fs := state.Snapshot.Features(model.CategoryFireStations)
	require.Len(t, fs, 2)
	assert.Equal(t, "f1", fs[0].ID)
	assert.Equal(t, "f2", fs[1].ID)
	assert.Empty(t, state.Schools)
}

func TestLoader_NoLayers(t *testing.T) {
	_, err := NewLoader(NewRegistry(), nil, nil, LoaderOptions{}).Load(context.Background(), LoadOpts{})
	assert.ErrorIs(t, err, ErrNoLayers)
}

func TestLoader_Cancelled(t *testing.T) {
	var calls atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(testRegistry(&calls), nil, nil, LoaderOptions{}).Load(ctx, LoadOpts{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoader_Cache(t *testing.T) {
	var calls atomic.Int64
	cache := newMemCache()
	loader := NewLoader(testRegistry(&calls), nil, cache, LoaderOptions{CacheTTL: time.Hour})
	ctx := context.Background()

	first, err := loader.Load(ctx, LoadOpts{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), calls.Load())
	assert.Equal(t, 3, cache.sets)

	second, err := loader.Load(ctx, LoadOpts{})
	require.NoError(t, err)
	// Only the failed layer is fetched again.
	assert.Equal(t, int64(5), calls.Load())
	require.Len(t, second.Schools, len(first.Schools))
	for i := range first.Schools {
		assert.Equal(t, first.Schools[i].ID, second.Schools[i].ID)
		assert.Equal(t, first.Schools[i].Name, second.Schools[i].Name)
		assert.Equal(t, first.Schools[i].Provenance, second.Schools[i].Provenance)
		assert.Equal(t, geo.ExteriorRing(first.Schools[i].Polygon), geo.ExteriorRing(second.Schools[i].Polygon))
	}
	hospitals := second.Snapshot.Features(model.CategoryHospitals)
	require.Len(t, hospitals, 2)
	require.NotNil(t, hospitals[0].Point)
	assert.Equal(t, origin, *hospitals[0].Point)

	_, err = loader.Load(ctx, LoadOpts{Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, int64(9), calls.Load())
	assert.Equal(t, 6, cache.sets)
}

func TestLoader_UnreadableCacheEntryIsRefetched(t *testing.T) {
	var calls atomic.Int64
	cache := newMemCache()
	cache.entries["hospitals"] = []byte("not geojson")

	reg := NewRegistry()
	reg.Register(countingLayer("hospitals", RoleFeatures, model.CategoryHospitals, Payload{Features: []model.Feature{testFeature("h1", model.CategoryHospitals, origin)}}, nil, &calls))

	state, err := NewLoader(reg, nil, cache, LoaderOptions{CacheTTL: time.Hour}).Load(context.Background(), LoadOpts{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 1, state.Snapshot.Len(model.CategoryHospitals))
}

func TestLoader_NoCacheWritesWithoutTTL(t *testing.T) {
	var calls atomic.Int64
	cache := newMemCache()
	_, err := NewLoader(testRegistry(&calls), nil, cache, LoaderOptions{}).Load(context.Background(), LoadOpts{})
	require.NoError(t, err)
	assert.Zero(t, cache.sets)
}
