// Package local implements engine.Engine over in-memory grids. It backs
// offline runs (boundaries loaded from a reference shapefile, synthetic or
// loaded data layers) and serves as the fixture engine for pipeline tests.
package local

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/reachmap/access-cli/internal/engine"
)

// DefaultNativeScaleM matches the 30 arc-second population dataset the
// pipeline reconciles against.
const DefaultNativeScaleM = 927.7

// Export records one submitted asset-export job.
type Export struct {
	TaskID      string
	AssetID     string
	Description string
	Grid        engine.GridSpec
}

// Engine is the in-memory engine.Engine implementation.
type Engine struct {
	mu           sync.RWMutex
	boundaries   map[string]*engine.Boundary // keyed by folded name
	roads        map[string][]engine.RoadFeature
	landCover    func(lon, lat float64) int
	slope        func(lon, lat float64) float64
	population   func(lon, lat float64) float64
	nativeScaleM float64
	exports      []Export
}

// New returns an empty local engine. Until layers are registered, land cover
// is uniform cropland (class 40), terrain is flat and population is zero.
func New() *Engine {
	return &Engine{
		boundaries:   make(map[string]*engine.Boundary),
		roads:        make(map[string][]engine.RoadFeature),
		landCover:    func(lon, lat float64) int { return 40 },
		slope:        func(lon, lat float64) float64 { return 0 },
		population:   func(lon, lat float64) float64 { return 0 },
		nativeScaleM: DefaultNativeScaleM,
	}
}

// AddBoundary registers a boundary under its folded display name.
func (e *Engine) AddBoundary(b *engine.Boundary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.boundaries[engine.FoldName(b.Name)] = b
}

// SetRoads registers the feature set of a named road dataset.
func (e *Engine) SetRoads(dataset string, features []engine.RoadFeature) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roads[dataset] = features
}

// SetLandCoverFunc overrides the land-cover class sampler.
func (e *Engine) SetLandCoverFunc(fn func(lon, lat float64) int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.landCover = fn
}

// SetSlopeFunc overrides the terrain slope sampler (degrees).
func (e *Engine) SetSlopeFunc(fn func(lon, lat float64) float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slope = fn
}

// SetPopulationFunc overrides the population sampler (persons per native cell).
func (e *Engine) SetPopulationFunc(fn func(lon, lat float64) float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.population = fn
}

// SetNativeScale overrides the population dataset's native pixel scale.
func (e *Engine) SetNativeScale(scaleM float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nativeScaleM = scaleM
}

// NativeScale returns the population dataset's native pixel scale in meters.
func (e *Engine) NativeScale() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nativeScaleM
}

// Exports returns the asset-export jobs submitted so far.
func (e *Engine) Exports() []Export {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Export, len(e.exports))
	copy(out, e.exports)
	return out
}

// Boundary implements engine.Engine.
func (e *Engine) Boundary(_ context.Context, name string) (*engine.Boundary, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.boundaries[engine.FoldName(name)]
	if !ok {
		return nil, eris.Wrapf(engine.ErrBoundaryNotFound, "local: boundary %q", name)
	}
	return b, nil
}

// LandCover implements engine.Engine.
func (e *Engine) LandCover(_ context.Context, b *engine.Boundary, grid engine.GridSpec) (*engine.Raster, error) {
	e.mu.RLock()
	sample := e.landCover
	e.mu.RUnlock()
	return e.sampleLayer(b, grid, func(lon, lat float64) float64 {
		return float64(sample(lon, lat))
	}), nil
}

// Slope implements engine.Engine.
func (e *Engine) Slope(_ context.Context, b *engine.Boundary, grid engine.GridSpec) (*engine.Raster, error) {
	e.mu.RLock()
	sample := e.slope
	e.mu.RUnlock()
	return e.sampleLayer(b, grid, sample), nil
}

// Population implements engine.Engine. The raster is clipped to the boundary
// and reports the dataset's native scale on its grid tag.
func (e *Engine) Population(_ context.Context, b *engine.Boundary) (*engine.Raster, error) {
	e.mu.RLock()
	sample := e.population
	native := e.nativeScaleM
	e.mu.RUnlock()

	grid := engine.GridSpec{CRS: "EPSG:4326", ScaleM: native}
	return e.sampleLayer(b, grid, sample), nil
}

// Roads implements engine.Engine. A dataset that is not registered, or whose
// features nowhere touch the boundary, yields ErrNoRoadData so the caller's
// dataset waterfall can move on.
func (e *Engine) Roads(_ context.Context, dataset string, b *engine.Boundary) ([]engine.RoadFeature, error) {
	e.mu.RLock()
	features, ok := e.roads[dataset]
	e.mu.RUnlock()
	if !ok {
		return nil, eris.Wrapf(engine.ErrNoRoadData, "local: dataset %q", dataset)
	}

	bbox := b.BBox()
	var hits []engine.RoadFeature
	for _, f := range features {
		if f.Line == nil {
			continue
		}
		if bboxOverlaps(bbox, f.Line.Bounds()) {
			hits = append(hits, f)
		}
	}
	if len(hits) == 0 {
		return nil, eris.Wrapf(engine.ErrNoRoadData, "local: dataset %q", dataset)
	}
	return hits, nil
}

// ExportAsset implements engine.Engine. Jobs are recorded, never executed:
// the contract ends at submission.
func (e *Engine) ExportAsset(_ context.Context, r *engine.Raster, assetID, description string) (string, error) {
	taskID := uuid.NewString()
	e.mu.Lock()
	e.exports = append(e.exports, Export{
		TaskID:      taskID,
		AssetID:     assetID,
		Description: description,
		Grid:        r.Grid,
	})
	e.mu.Unlock()

	zap.L().Info("local engine: export submitted",
		zap.String("asset_id", assetID),
		zap.String("task_id", taskID),
	)
	return taskID, nil
}

// sampleLayer builds a boundary-clipped raster on the frame of (b, grid) by
// evaluating fn at each pixel center inside the boundary.
func (e *Engine) sampleLayer(b *engine.Boundary, grid engine.GridSpec, fn func(lon, lat float64) float64) *engine.Raster {
	r := newFrame(b, grid)
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			lon, lat := r.CellCenter(col, row)
			if b.Contains(lon, lat) {
				r.Set(col, row, fn(lon, lat))
			}
		}
	}
	return r
}

func bboxOverlaps(a, b *geom.Bounds) bool {
	return a.Min(0) <= b.Max(0) && b.Min(0) <= a.Max(0) &&
		a.Min(1) <= b.Max(1) && b.Min(1) <= a.Max(1)
}
