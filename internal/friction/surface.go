package friction

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/reachmap/access-cli/internal/config"
	"github.com/reachmap/access-cli/internal/engine"
)

// slopePenaltyPerDegree increases friction by 5% per degree of slope.
const slopePenaltyPerDegree = 0.05

// Surface is the finished travel-cost raster for one country, in minutes per
// meter on the analysis grid, plus provenance of its road overlay.
type Surface struct {
	Friction *engine.Raster

	// RoadDataset names the dataset that supplied the overlay; empty when
	// RoadFallback is set.
	RoadDataset  string
	RoadFallback bool
}

// Builder constructs friction surfaces against a compute engine.
type Builder struct {
	eng engine.Engine
	cfg config.AnalysisConfig
}

// NewBuilder creates a friction surface builder.
func NewBuilder(eng engine.Engine, cfg config.AnalysisConfig) *Builder {
	return &Builder{eng: eng, cfg: cfg}
}

// Build computes the friction surface for a boundary on the given grid:
// land-cover walking speeds, then road tiers overwritten slowest-first so a
// pixel carrying several classes keeps the fastest, then the slope penalty.
// Every layer is computed on the same grid; a mismatch is an error, never a
// silent reprojection.
func (b *Builder) Build(ctx context.Context, bd *engine.Boundary, grid engine.GridSpec) (*Surface, error) {
	lc, err := b.eng.LandCover(ctx, bd, grid)
	if err != nil {
		return nil, eris.Wrap(err, "friction: land cover")
	}

	base := landCoverFriction(lc)

	features, dataset, err := b.findRoads(ctx, bd)
	if err != nil {
		return nil, err
	}

	surface := &Surface{
		Friction:     base,
		RoadDataset:  dataset,
		RoadFallback: features == nil,
	}

	if features != nil {
		if err := b.overlayRoads(ctx, base, features, bd, grid); err != nil {
			return nil, err
		}
	}

	slope, err := b.eng.Slope(ctx, bd, grid)
	if err != nil {
		return nil, eris.Wrap(err, "friction: slope")
	}
	if err := applySlopePenalty(base, slope); err != nil {
		return nil, err
	}

	zap.L().Debug("friction surface built",
		zap.String("country", bd.Name),
		zap.Float64("scale_m", grid.ScaleM),
		zap.Int("valid_pixels", base.ValidCount()),
		zap.Bool("road_fallback", surface.RoadFallback),
	)
	return surface, nil
}

// landCoverFriction converts a class raster to friction in min/m. Impassable
// and unknown classes stay masked.
func landCoverFriction(lc *engine.Raster) *engine.Raster {
	out := engine.NewRaster(lc.Grid, lc.Transform, lc.Width, lc.Height)
	for i, valid := range lc.Valid {
		if !valid {
			continue
		}
		kmh, ok := SpeedForClass(int(lc.Values[i]))
		if !ok {
			continue
		}
		out.Values[i] = FrictionFromKmh(kmh)
		out.Valid[i] = true
	}
	return out
}

// overlayRoads burns the road tiers into the friction surface. Tiers are
// applied minor, medium, major: later writes win, so the fastest class
// present at a pixel sets its friction.
func (b *Builder) overlayRoads(ctx context.Context, base *engine.Raster, features []engine.RoadFeature, bd *engine.Boundary, grid engine.GridSpec) error {
	rt := classifyRoads(features)
	zap.L().Debug("road tiers classified",
		zap.String("country", bd.Name),
		zap.Int("major", len(rt.Major)),
		zap.Int("medium", len(rt.Medium)),
		zap.Int("minor", len(rt.Minor)),
	)

	tiers := []struct {
		name  string
		lines []*geom.LineString
		kmh   float64
	}{
		{"minor", rt.Minor, b.cfg.MinorRoadKmh},
		{"medium", rt.Medium, b.cfg.MediumRoadKmh},
		{"major", rt.Major, b.cfg.MajorRoadKmh},
	}
	for _, tier := range tiers {
		if len(tier.lines) == 0 {
			continue
		}
		burned, err := b.eng.RasterizeLines(ctx, tier.lines, bd, grid)
		if err != nil {
			return eris.Wrapf(err, "friction: rasterize %s roads", tier.name)
		}
		if err := engine.CheckSameFrame("friction: road overlay", base, burned); err != nil {
			return err
		}
		f := FrictionFromKmh(tier.kmh)
		for i, hit := range burned.Valid {
			if hit && burned.Values[i] > 0 {
				base.Values[i] = f
				base.Valid[i] = true
			}
		}
	}
	return nil
}

// applySlopePenalty multiplies friction by (1 + slope × 0.05) in place.
// Pixels without slope data keep their unpenalized friction.
func applySlopePenalty(base, slope *engine.Raster) error {
	if err := engine.CheckSameFrame("friction: slope penalty", base, slope); err != nil {
		return err
	}
	for i, valid := range base.Valid {
		if !valid || !slope.Valid[i] {
			continue
		}
		base.Values[i] *= 1 + slope.Values[i]*slopePenaltyPerDegree
	}
	return nil
}
