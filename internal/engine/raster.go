package engine

import (
	"math"

	"github.com/rotisserie/eris"
)

// GridSpec identifies the projection and pixel scale shared by every raster
// layer in one analysis run. Layers are never combined across mismatched
// grids; see Raster.SameGrid.
type GridSpec struct {
	// CRS is the projection identifier, e.g. "EPSG:32633".
	CRS string

	// ScaleM is the pixel edge length in meters.
	ScaleM float64
}

// Transform is the affine geotransform of a raster frame in WGS84 degrees.
// Pixel (col, row) has its center at
//
//	lon = MinLon + (col+0.5)*CellLon
//	lat = MaxLat - (row+0.5)*CellLat
type Transform struct {
	MinLon  float64
	MaxLat  float64
	CellLon float64
	CellLat float64
}

// Raster is a single-band masked grid tagged with the GridSpec it was
// computed on. The tag is mandatory: downstream cost-distance propagation
// assumes the declared scale, so an untagged or mistagged surface corrupts
// every derived statistic.
type Raster struct {
	Grid      GridSpec
	Transform Transform
	Width     int
	Height    int

	// Values holds pixel values in row-major order, len Width*Height.
	Values []float64

	// Valid is the parallel mask. A false entry means the pixel is
	// undefined (masked), not zero.
	Valid []bool
}

// NewRaster allocates a fully-masked raster on the given frame.
func NewRaster(grid GridSpec, tr Transform, width, height int) *Raster {
	return &Raster{
		Grid:      grid,
		Transform: tr,
		Width:     width,
		Height:    height,
		Values:    make([]float64, width*height),
		Valid:     make([]bool, width*height),
	}
}

// Clone returns a deep copy sharing no storage with r.
func (r *Raster) Clone() *Raster {
	out := NewRaster(r.Grid, r.Transform, r.Width, r.Height)
	copy(out.Values, r.Values)
	copy(out.Valid, r.Valid)
	return out
}

// Idx returns the flat index of (col, row).
func (r *Raster) Idx(col, row int) int { return row*r.Width + col }

// At returns the value and validity of (col, row).
func (r *Raster) At(col, row int) (float64, bool) {
	i := r.Idx(col, row)
	return r.Values[i], r.Valid[i]
}

// Set assigns a valid value at (col, row).
func (r *Raster) Set(col, row int, v float64) {
	i := r.Idx(col, row)
	r.Values[i] = v
	r.Valid[i] = true
}

// Mask marks (col, row) undefined.
func (r *Raster) Mask(col, row int) {
	r.Valid[r.Idx(col, row)] = false
}

// SameGrid reports whether two rasters carry the same projection and scale.
func (r *Raster) SameGrid(other *Raster) bool {
	return r.Grid.CRS == other.Grid.CRS && r.Grid.ScaleM == other.Grid.ScaleM
}

// SameFrame reports whether two rasters share grid, transform and shape, and
// can therefore be combined pixel-by-pixel.
func (r *Raster) SameFrame(other *Raster) bool {
	return r.SameGrid(other) &&
		r.Transform == other.Transform &&
		r.Width == other.Width && r.Height == other.Height
}

// CellCenter returns the WGS84 center of pixel (col, row).
func (r *Raster) CellCenter(col, row int) (lon, lat float64) {
	lon = r.Transform.MinLon + (float64(col)+0.5)*r.Transform.CellLon
	lat = r.Transform.MaxLat - (float64(row)+0.5)*r.Transform.CellLat
	return lon, lat
}

// CellAt returns the pixel containing the WGS84 coordinate, and whether it
// falls inside the frame.
func (r *Raster) CellAt(lon, lat float64) (col, row int, ok bool) {
	col = int(math.Floor((lon - r.Transform.MinLon) / r.Transform.CellLon))
	row = int(math.Floor((r.Transform.MaxLat - lat) / r.Transform.CellLat))
	if col < 0 || col >= r.Width || row < 0 || row >= r.Height {
		return 0, 0, false
	}
	return col, row, true
}

// SampleAt returns the value of the pixel containing the coordinate.
// The second return is false outside the frame or on a masked pixel.
func (r *Raster) SampleAt(lon, lat float64) (float64, bool) {
	col, row, ok := r.CellAt(lon, lat)
	if !ok {
		return 0, false
	}
	return r.At(col, row)
}

// ValidCount returns the number of unmasked pixels.
func (r *Raster) ValidCount() int {
	n := 0
	for _, v := range r.Valid {
		if v {
			n++
		}
	}
	return n
}

// CheckSameFrame errors when layers cannot be combined pixel-by-pixel.
func CheckSameFrame(op string, a, b *Raster) error {
	if a == nil || b == nil {
		return eris.Errorf("%s: nil raster", op)
	}
	if !a.SameFrame(b) {
		return eris.Errorf("%s: grid mismatch: %s@%.0fm %dx%d vs %s@%.0fm %dx%d",
			op, a.Grid.CRS, a.Grid.ScaleM, a.Width, a.Height,
			b.Grid.CRS, b.Grid.ScaleM, b.Width, b.Height)
	}
	return nil
}
