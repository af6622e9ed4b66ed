// Package access turns a friction surface and facility locations into a
// travel-time raster: minutes to the nearest facility, per pixel.
package access

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reachmap/access-cli/internal/config"
	"github.com/reachmap/access-cli/internal/engine"
	"github.com/reachmap/access-cli/internal/model"
)

// ErrNoFacilities indicates a country has no facility with usable
// coordinates. A precondition failure, never retried.
var ErrNoFacilities = eris.New("access: no facilities with valid coordinates")

// Computer runs cost-distance accessibility against a compute engine.
type Computer struct {
	eng engine.Engine
	cfg config.AnalysisConfig
}

// NewComputer creates an accessibility computer.
func NewComputer(eng engine.Engine, cfg config.AnalysisConfig) *Computer {
	return &Computer{eng: eng, cfg: cfg}
}

// Compute returns travel time in minutes to the nearest facility for every
// reachable pixel of the analysis grid. Pixels beyond the travel-time cap or
// the search radius are masked. The friction raster must be on the analysis
// grid; data gaps in it are filled with the fallback friction so propagation
// is never blocked by missing coverage.
func (c *Computer) Compute(ctx context.Context, bd *engine.Boundary, friction *engine.Raster, facilities []model.Facility) (*engine.Raster, error) {
	if len(facilities) == 0 {
		return nil, eris.Wrapf(ErrNoFacilities, "access: %s", bd.Name)
	}

	scale := friction.Grid.ScaleM
	if scale <= 0 {
		scale = c.cfg.DefaultScaleM
		zap.L().Warn("friction surface missing nominal scale, using default",
			zap.String("country", bd.Name),
			zap.Float64("default_scale_m", scale),
		)
	}

	pts := make([]engine.Point, 0, len(facilities))
	for _, f := range facilities {
		pts = append(pts, engine.Point{Lon: f.Longitude, Lat: f.Latitude})
	}

	// Buffer each facility by 1.5 pixels so its source pixel survives any
	// point/pixel alignment.
	bufferM := c.cfg.BufferPixels * scale
	sources, err := c.eng.RasterizePoints(ctx, pts, bufferM, bd, friction.Grid)
	if err != nil {
		return nil, eris.Wrap(err, "access: rasterize facilities")
	}
	if err := engine.CheckSameFrame("access: sources", friction, sources); err != nil {
		return nil, err
	}

	cost := secondsPerMeter(friction, c.cfg.FallbackFriction)

	acc, err := c.eng.CostDistance(ctx, cost, sources, c.cfg.MaxSearchKm*1000)
	if err != nil {
		return nil, eris.Wrap(err, "access: cost distance")
	}

	reachable := 0
	for i, valid := range acc.Valid {
		if !valid {
			continue
		}
		minutes := acc.Values[i] / 60
		if minutes > c.cfg.MaxTimeMinutes {
			acc.Valid[i] = false
			continue
		}
		acc.Values[i] = minutes
		reachable++
	}

	zap.L().Info("accessibility computed",
		zap.String("country", bd.Name),
		zap.Int("facilities", len(facilities)),
		zap.Float64("buffer_m", bufferM),
		zap.Int("reachable_pixels", reachable),
	)
	return acc, nil
}

// secondsPerMeter converts a friction raster from min/m to sec/m, filling
// masked pixels inside the frame with the fallback friction.
func secondsPerMeter(friction *engine.Raster, fallback float64) *engine.Raster {
	out := friction.Clone()
	for i, valid := range out.Valid {
		if valid {
			out.Values[i] *= 60
		} else {
			out.Values[i] = fallback * 60
			out.Valid[i] = true
		}
	}
	return out
}
