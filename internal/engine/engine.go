// Package engine defines the narrow capability interface the accessibility
// pipeline needs from a geospatial compute backend, together with the grid,
// raster and boundary value types shared by every stage of an analysis run.
//
// The pipeline never talks to a raster backend directly; it composes calls
// against this interface. The in-memory implementation in engine/local serves
// offline runs and tests, and a remote adapter can implement the same surface
// without touching the pipeline packages.
package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Sentinel errors for precondition failures. Callers match with eris.Is.
var (
	// ErrBoundaryNotFound indicates the reference dataset has no boundary
	// under the requested name.
	ErrBoundaryNotFound = eris.New("engine: boundary not found")

	// ErrNoRoadData indicates a road dataset has no features intersecting
	// the boundary. Used by the dataset waterfall to move on to the next
	// candidate.
	ErrNoRoadData = eris.New("engine: no road features intersect boundary")
)

// RoadFeature is a single road segment with its route-type class.
// RouteType follows the GRIP4 GP_RTP convention: 1 highway, 2 primary,
// 3 secondary, 4 tertiary, 5 local.
type RoadFeature struct {
	RouteType int
	Line      *geom.LineString
}

// Point is a WGS84 coordinate pair.
type Point struct {
	Lon float64
	Lat float64
}

// ResampleMethod selects how Resample moves a raster between grids.
type ResampleMethod int

const (
	// ResampleSum aggregates blocks of source pixels into each target pixel
	// by unweighted addition. Used for population counts, where interpolation
	// would invent or destroy people.
	ResampleSum ResampleMethod = iota

	// ResampleNearest samples the source at each target pixel center.
	ResampleNearest
)

// SumOptions controls RegionSum behavior.
type SumOptions struct {
	// ScaleM is the pixel scale the sum is evaluated at. Zero means the
	// raster's own scale.
	ScaleM float64

	// BestEffort lets the backend degrade resolution rather than fail when
	// the region exceeds its tractability limits.
	BestEffort bool
}

// Engine is the set of raster/vector primitives the pipeline requires.
// All methods are safe for concurrent use.
type Engine interface {
	// Boundary looks up a country boundary by its name in the reference
	// dataset. Returns ErrBoundaryNotFound when absent.
	Boundary(ctx context.Context, name string) (*Boundary, error)

	// LandCover returns the land-cover classification raster for the
	// boundary, resampled onto the given grid. Pixel values are class codes.
	LandCover(ctx context.Context, b *Boundary, grid GridSpec) (*Raster, error)

	// Slope returns terrain slope in degrees on the given grid, derived from
	// the elevation model reprojected to that grid.
	Slope(ctx context.Context, b *Boundary, grid GridSpec) (*Raster, error)

	// Roads returns the road features of the named dataset that intersect
	// the boundary. Returns ErrNoRoadData when the dataset does not cover
	// the boundary at all.
	Roads(ctx context.Context, dataset string, b *Boundary) ([]RoadFeature, error)

	// RasterizeLines burns line features onto the grid. Result pixels are 1
	// where any line crosses the pixel and masked elsewhere.
	RasterizeLines(ctx context.Context, lines []*geom.LineString, b *Boundary, grid GridSpec) (*Raster, error)

	// RasterizePoints burns buffered points onto the grid. Each point is
	// buffered by bufferM meters before rasterization so a source pixel
	// survives regardless of point/pixel alignment.
	RasterizePoints(ctx context.Context, pts []Point, bufferM float64, b *Boundary, grid GridSpec) (*Raster, error)

	// CostDistance computes, per pixel, the minimum accumulated cost in
	// cost-units from any nonzero pixel of sources, walking over cost (a
	// per-meter cost raster). Propagation stops at maxDistanceM meters of
	// traversed distance; pixels beyond it are masked.
	CostDistance(ctx context.Context, cost, sources *Raster, maxDistanceM float64) (*Raster, error)

	// Population returns the population-count raster clipped to the boundary
	// at the population dataset's native resolution. The raster's grid
	// reports the native scale.
	Population(ctx context.Context, b *Boundary) (*Raster, error)

	// Resample moves a raster onto another grid with the given method.
	Resample(ctx context.Context, r *Raster, grid GridSpec, method ResampleMethod) (*Raster, error)

	// RegionSum sums the raster's valid pixels whose centers fall inside
	// region. The region is any polygonal geometry in WGS84.
	RegionSum(ctx context.Context, r *Raster, region geom.T, opts SumOptions) (float64, error)

	// ExportAsset submits an asynchronous export of the raster under the
	// given asset identifier and returns the export task id. It does not
	// wait for completion.
	ExportAsset(ctx context.Context, r *Raster, assetID, description string) (string, error)
}
