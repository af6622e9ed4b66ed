// Package coverage reconciles accessibility with population: how many people
// live within each travel-time threshold of a facility, against a denominator
// fixed at the population dataset's native resolution.
package coverage

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reachmap/access-cli/internal/config"
	"github.com/reachmap/access-cli/internal/engine"
	"github.com/reachmap/access-cli/internal/model"
)

// Reconciler computes coverage statistics against a compute engine.
type Reconciler struct {
	eng engine.Engine
	cfg config.CoverageConfig
}

// NewReconciler creates a coverage reconciler.
func NewReconciler(eng engine.Engine, cfg config.CoverageConfig) *Reconciler {
	return &Reconciler{eng: eng, cfg: cfg}
}

// Stats reconciles an accessibility raster with population. The total is
// summed at the population dataset's native resolution and never changes
// afterwards; the per-threshold numerators come from a conservative
// (sum-aggregated) population grid whose resolution is the nearest integer
// multiple of the native scale. Large countries go through the tiling
// fallback, which must produce the same sums as the direct path.
func (r *Reconciler) Stats(ctx context.Context, bd *engine.Boundary, acc *engine.Raster, thresholds []int) (*model.CoverageStats, error) {
	pop, err := r.eng.Population(ctx, bd)
	if err != nil {
		return nil, eris.Wrap(err, "coverage: population")
	}
	native := pop.Grid.ScaleM

	total, err := r.eng.RegionSum(ctx, pop, bd.Geometry, engine.SumOptions{
		ScaleM:     native,
		BestEffort: true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "coverage: native total")
	}

	analysisScale := acc.Grid.ScaleM
	k := int(math.Round(analysisScale / native))
	if k < 1 {
		k = 1
	}
	reconScale := float64(k) * native
	match := math.Abs(reconScale-analysisScale) <= r.cfg.ResolutionToleranceM

	agg, err := r.eng.Resample(ctx, pop, engine.GridSpec{CRS: acc.Grid.CRS, ScaleM: reconScale}, engine.ResampleSum)
	if err != nil {
		return nil, eris.Wrap(err, "coverage: aggregate population")
	}

	// When the conservative grid lands outside the tolerance, move the mass
	// once more onto the analysis scale so the join and the travel-time
	// surface agree on pixel footprints. Sum aggregation both times, so no
	// people are invented or destroyed.
	coverageScale := reconScale
	if !match {
		zap.L().Warn("reconciliation resolution diverges from analysis grid, reprojecting",
			zap.String("country", bd.Name),
			zap.Float64("analysis_m", analysisScale),
			zap.Float64("reconciliation_m", reconScale),
			zap.Float64("tolerance_m", r.cfg.ResolutionToleranceM),
		)
		agg, err = r.eng.Resample(ctx, agg, engine.GridSpec{CRS: acc.Grid.CRS, ScaleM: analysisScale}, engine.ResampleSum)
		if err != nil {
			return nil, eris.Wrap(err, "coverage: reproject population")
		}
		coverageScale = analysisScale
	}

	var aggTotal float64
	for i, valid := range agg.Valid {
		if valid {
			aggTotal += agg.Values[i]
		}
	}

	lossPct := 0.0
	if total > 0 {
		lossPct = (total - aggTotal) / total * 100
	}

	tiled := bd.AreaKm2() > r.cfg.TilingAreaKm2
	var popWithin map[int]float64
	if tiled {
		popWithin = r.sumTiled(bd, agg, acc, thresholds)
	} else {
		popWithin = sumRegion(agg, acc, thresholds, nil)
	}

	stats := &model.CoverageStats{
		Country:                   bd.Name,
		TotalPopulation:           int64(math.Round(total)),
		AnalysisResolutionM:       analysisScale,
		ReconciliationResolutionM: reconScale,
		KFactor:                   k,
		CoverageScaleUsedM:        coverageScale,
		ResolutionMatch:           match,
		PopulationLossPct:         lossPct,
		Tiled:                     tiled,
		PopWithin:                 make(map[int]int64, len(thresholds)),
		CoveragePct:               make(map[int]float64, len(thresholds)),
	}
	for _, t := range thresholds {
		within := popWithin[t]
		stats.PopWithin[t] = int64(math.Round(within))
		if total > 0 {
			stats.CoveragePct[t] = math.Round(within/total*100*100) / 100
		}
	}

	zap.L().Info("coverage reconciled",
		zap.String("country", bd.Name),
		zap.Int64("total_population", stats.TotalPopulation),
		zap.Int("k_factor", k),
		zap.Float64("population_loss_pct", lossPct),
		zap.Bool("tiled", tiled),
	)
	return stats, nil
}

// tileBounds is a lon/lat window; nil means unbounded.
type tileBounds struct {
	minLon, minLat, maxLon, maxLat float64
}

func (tb *tileBounds) contains(lon, lat float64) bool {
	return lon >= tb.minLon && lon < tb.maxLon && lat >= tb.minLat && lat < tb.maxLat
}

// sumRegion accumulates aggregated population per threshold over the pixels
// whose center falls in bounds (all pixels when bounds is nil). A pixel
// counts toward a threshold when the accessibility surface is defined at its
// center and at most the threshold.
func sumRegion(agg, acc *engine.Raster, thresholds []int, bounds *tileBounds) map[int]float64 {
	out := make(map[int]float64, len(thresholds))
	for row := 0; row < agg.Height; row++ {
		for col := 0; col < agg.Width; col++ {
			v, valid := agg.At(col, row)
			if !valid || v == 0 {
				continue
			}
			lon, lat := agg.CellCenter(col, row)
			if bounds != nil && !bounds.contains(lon, lat) {
				continue
			}
			minutes, ok := acc.SampleAt(lon, lat)
			if !ok {
				continue
			}
			for _, t := range thresholds {
				if minutes <= float64(t) {
					out[t] += v
				}
			}
		}
	}
	return out
}

// sumTiled partitions the boundary bbox into fixed-degree tiles and sums per
// tile. Tiles partition the plane on multiples of the tile size, so every
// pixel center lands in exactly one tile and the union equals the direct sum.
func (r *Reconciler) sumTiled(bd *engine.Boundary, agg, acc *engine.Raster, thresholds []int) map[int]float64 {
	size := r.cfg.TileSizeDeg
	bbox := bd.BBox()
	lon0 := math.Floor(bbox.Min(0)/size) * size
	lat0 := math.Floor(bbox.Min(1)/size) * size

	out := make(map[int]float64, len(thresholds))
	tiles := 0
	for lat := lat0; lat < bbox.Max(1); lat += size {
		for lon := lon0; lon < bbox.Max(0); lon += size {
			tb := &tileBounds{minLon: lon, minLat: lat, maxLon: lon + size, maxLat: lat + size}
			part := sumRegion(agg, acc, thresholds, tb)
			for t, v := range part {
				out[t] += v
			}
			tiles++
		}
	}
	zap.L().Debug("tiled aggregation",
		zap.String("country", bd.Name),
		zap.Int("tiles", tiles),
		zap.Float64("tile_size_deg", size),
	)
	return out
}
