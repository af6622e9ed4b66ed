// Package planner derives the per-country analysis plan: pixel scale from
// boundary area and a metric projection from the boundary centroid.
package planner

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reachmap/access-cli/internal/engine"
	"github.com/reachmap/access-cli/internal/model"
)

// Area tier cutoffs in km² and the pixel scale each tier fixes.
const (
	largeAreaKm2  = 2_000_000
	mediumAreaKm2 = 200_000

	largeScaleM  = 8000
	mediumScaleM = 6000
	smallScaleM  = 4000
)

// Plan is the resolved analysis parameters for one country. All raster
// layers of the run are computed on Grid.
type Plan struct {
	Country  string
	Tier     model.SizeTier
	AreaKm2  float64
	Grid     engine.GridSpec
	UTMZone  int
	Southern bool
}

// New derives the plan for a boundary. Scale follows the area tier and the
// projection is the UTM zone of the boundary centroid. A degenerate boundary
// (zero or undefined area) cannot be planned and fails the country.
func New(b *engine.Boundary) (Plan, error) {
	area := b.AreaKm2()
	if area <= 0 || math.IsNaN(area) || math.IsInf(area, 0) {
		return Plan{}, eris.Errorf("planner: degenerate boundary area %f for %s", area, b.Name)
	}
	tier, scale := tierForArea(area)
	lon, lat := b.Centroid()
	zone, south := utmZone(lon, lat)

	p := Plan{
		Country:  b.Name,
		Tier:     tier,
		AreaKm2:  area,
		Grid:     engine.GridSpec{CRS: epsgForZone(zone, south), ScaleM: scale},
		UTMZone:  zone,
		Southern: south,
	}
	zap.L().Info("analysis plan",
		zap.String("country", p.Country),
		zap.Float64("area_km2", area),
		zap.String("tier", string(tier)),
		zap.Float64("scale_m", scale),
		zap.String("crs", p.Grid.CRS),
	)
	return p, nil
}

func tierForArea(areaKm2 float64) (model.SizeTier, float64) {
	switch {
	case areaKm2 > largeAreaKm2:
		return model.TierLarge, largeScaleM
	case areaKm2 > mediumAreaKm2:
		return model.TierMedium, mediumScaleM
	default:
		return model.TierSmall, smallScaleM
	}
}

// utmZone returns the UTM zone of a WGS84 point and whether it lies in the
// southern hemisphere.
func utmZone(lon, lat float64) (zone int, south bool) {
	zone = int((lon+180)/6) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60 // lon exactly 180
	}
	return zone, lat < 0
}

func epsgForZone(zone int, south bool) string {
	if south {
		return fmt.Sprintf("EPSG:327%02d", zone)
	}
	return fmt.Sprintf("EPSG:326%02d", zone)
}
