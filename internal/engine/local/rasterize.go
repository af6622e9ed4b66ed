package local

import (
	"context"
	"math"

	"github.com/twpayne/go-geom"

	"github.com/reachmap/access-cli/internal/engine"
)

// RasterizeLines implements engine.Engine. Pixels crossed by any line are 1;
// all other pixels stay masked.
func (e *Engine) RasterizeLines(_ context.Context, lines []*geom.LineString, b *engine.Boundary, grid engine.GridSpec) (*engine.Raster, error) {
	r := newFrame(b, grid)
	for _, line := range lines {
		if line == nil {
			continue
		}
		coords := line.FlatCoords()
		stride := line.Stride()
		n := len(coords) / stride
		for i := 0; i+1 < n; i++ {
			burnSegment(r,
				coords[i*stride], coords[i*stride+1],
				coords[(i+1)*stride], coords[(i+1)*stride+1])
		}
	}
	return r, nil
}

// RasterizePoints implements engine.Engine. Each point is buffered by bufferM
// meters before burning, so a source pixel survives rasterization regardless
// of how the point aligns with the pixel lattice.
func (e *Engine) RasterizePoints(_ context.Context, pts []engine.Point, bufferM float64, b *engine.Boundary, grid engine.GridSpec) (*engine.Raster, error) {
	r := newFrame(b, grid)
	_, centerLat := b.Centroid()
	lonM, latM := engine.MetersPerDegree(centerLat)
	radLon := bufferM / lonM
	radLat := bufferM / latM

	for _, p := range pts {
		// Burn every pixel whose center lies within the buffer ellipse,
		// plus the pixel containing the point itself.
		if col, row, ok := r.CellAt(p.Lon, p.Lat); ok {
			r.Set(col, row, 1)
		}
		minCol, minRow, okMin := r.CellAt(p.Lon-radLon, p.Lat+radLat)
		maxCol, maxRow, okMax := r.CellAt(p.Lon+radLon, p.Lat-radLat)
		if !okMin || !okMax {
			minCol, minRow = clampCell(r, p.Lon-radLon, p.Lat+radLat)
			maxCol, maxRow = clampCell(r, p.Lon+radLon, p.Lat-radLat)
		}
		for row := minRow; row <= maxRow; row++ {
			for col := minCol; col <= maxCol; col++ {
				lon, lat := r.CellCenter(col, row)
				dx := (lon - p.Lon) / radLon
				dy := (lat - p.Lat) / radLat
				if dx*dx+dy*dy <= 1 {
					r.Set(col, row, 1)
				}
			}
		}
	}
	return r, nil
}

// burnSegment marks every pixel along the segment using DDA stepping at
// half-cell resolution.
func burnSegment(r *engine.Raster, lon1, lat1, lon2, lat2 float64) {
	stepLon := r.Transform.CellLon / 2
	stepLat := r.Transform.CellLat / 2
	steps := math.Max(math.Abs(lon2-lon1)/stepLon, math.Abs(lat2-lat1)/stepLat)
	n := int(math.Ceil(steps))
	if n < 1 {
		n = 1
	}

	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		lon := lon1 + t*(lon2-lon1)
		lat := lat1 + t*(lat2-lat1)
		if col, row, ok := r.CellAt(lon, lat); ok {
			r.Set(col, row, 1)
		}
	}
}

// clampCell maps a coordinate to the nearest in-frame pixel.
func clampCell(r *engine.Raster, lon, lat float64) (col, row int) {
	col = int(math.Floor((lon - r.Transform.MinLon) / r.Transform.CellLon))
	row = int(math.Floor((r.Transform.MaxLat - lat) / r.Transform.CellLat))
	if col < 0 {
		col = 0
	}
	if col >= r.Width {
		col = r.Width - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= r.Height {
		row = r.Height - 1
	}
	return col, row
}
