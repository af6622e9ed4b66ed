package local

import (
	"math"

	"github.com/reachmap/access-cli/internal/engine"
)

// newFrame fits a raster frame to the boundary's bounding box at the grid's
// pixel scale. The fit is a pure function of (boundary bbox, scale), so every
// layer produced for the same boundary and grid shares one frame and can be
// combined pixel-by-pixel.
func newFrame(b *engine.Boundary, grid engine.GridSpec) *engine.Raster {
	bbox := b.BBox()
	_, centerLat := b.Centroid()
	lonM, latM := engine.MetersPerDegree(centerLat)

	cellLon := grid.ScaleM / lonM
	cellLat := grid.ScaleM / latM

	// Pad one cell on each side so buffered features at the edge survive.
	minLon := bbox.Min(0) - cellLon
	maxLon := bbox.Max(0) + cellLon
	minLat := bbox.Min(1) - cellLat
	maxLat := bbox.Max(1) + cellLat

	width := int(math.Ceil((maxLon - minLon) / cellLon))
	height := int(math.Ceil((maxLat - minLat) / cellLat))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	tr := engine.Transform{
		MinLon:  minLon,
		MaxLat:  maxLat,
		CellLon: cellLon,
		CellLat: cellLat,
	}
	return engine.NewRaster(grid, tr, width, height)
}
