package local

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/reachmap/access-cli/internal/engine"
)

// Resample implements engine.Engine. The target frame covers the source
// raster's geographic extent at the target grid's scale.
func (e *Engine) Resample(_ context.Context, r *engine.Raster, grid engine.GridSpec, method engine.ResampleMethod) (*engine.Raster, error) {
	out := resampleFrame(r, grid)

	switch method {
	case engine.ResampleSum:
		// Unweighted mass-preserving aggregation: each valid source pixel
		// contributes its full value to the target pixel containing its
		// center. Nothing is interpolated, so total mass is conserved.
		for row := 0; row < r.Height; row++ {
			for col := 0; col < r.Width; col++ {
				v, ok := r.At(col, row)
				if !ok {
					continue
				}
				lon, lat := r.CellCenter(col, row)
				tc, tr, inside := out.CellAt(lon, lat)
				if !inside {
					continue
				}
				i := out.Idx(tc, tr)
				out.Values[i] += v
				out.Valid[i] = true
			}
		}
	case engine.ResampleNearest:
		for row := 0; row < out.Height; row++ {
			for col := 0; col < out.Width; col++ {
				lon, lat := out.CellCenter(col, row)
				if v, ok := r.SampleAt(lon, lat); ok {
					out.Set(col, row, v)
				}
			}
		}
	default:
		return nil, eris.Errorf("local: unknown resample method %d", method)
	}
	return out, nil
}

// RegionSum implements engine.Engine by summing valid pixels whose centers
// lie inside the region. The local backend has no tractability limit, so the
// best-effort flag and explicit scale are accepted and ignored.
func (e *Engine) RegionSum(ctx context.Context, r *engine.Raster, region geom.T, _ engine.SumOptions) (float64, error) {
	if region == nil {
		return 0, eris.New("local: region sum: nil region")
	}
	var sum float64
	for row := 0; row < r.Height; row++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for col := 0; col < r.Width; col++ {
			v, ok := r.At(col, row)
			if !ok {
				continue
			}
			lon, lat := r.CellCenter(col, row)
			if engine.GeometryContains(region, lon, lat) {
				sum += v
			}
		}
	}
	return sum, nil
}

// resampleFrame fits a target frame over the source raster's extent at the
// target scale, preserving the source's meters-per-degree ratio.
func resampleFrame(r *engine.Raster, grid engine.GridSpec) *engine.Raster {
	ratio := grid.ScaleM / r.Grid.ScaleM
	cellLon := r.Transform.CellLon * ratio
	cellLat := r.Transform.CellLat * ratio

	spanLon := float64(r.Width) * r.Transform.CellLon
	spanLat := float64(r.Height) * r.Transform.CellLat

	width := int(spanLon/cellLon) + 1
	height := int(spanLat/cellLat) + 1

	tr := engine.Transform{
		MinLon:  r.Transform.MinLon,
		MaxLat:  r.Transform.MaxLat,
		CellLon: cellLon,
		CellLat: cellLat,
	}
	return engine.NewRaster(grid, tr, width, height)
}
