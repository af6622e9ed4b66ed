package access

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/reachmap/access-cli/internal/config"
	"github.com/reachmap/access-cli/internal/engine"
	"github.com/reachmap/access-cli/internal/engine/local"
	"github.com/reachmap/access-cli/internal/friction"
	"github.com/reachmap/access-cli/internal/model"
)

func testAnalysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		MaxTimeMinutes:   60,
		MaxSearchKm:      100,
		FallbackFriction: 0.12,
		DefaultScaleM:    6000,
		BufferPixels:     1.5,
		RoadDatasets:     []string{"roads/region-a"},
		MajorRoadKmh:     50,
		MediumRoadKmh:    30,
		MinorRoadKmh:     25,
	}
}

// testSurface builds a 1°×1° equatorial test country with uniform off-road
// friction (cropland, 10 km/h) and returns its friction surface.
func testSurface(t *testing.T, cfg config.AnalysisConfig) (*local.Engine, *engine.Boundary, *engine.Raster) {
	t.Helper()
	eng := local.New()
	mp := geom.NewMultiPolygon(geom.XY)
	_, err := mp.SetCoords([][][]geom.Coord{{{
		{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0},
	}}})
	require.NoError(t, err)
	b := engine.NewBoundary("Testland", mp)
	eng.AddBoundary(b)

	surface, err := friction.NewBuilder(eng, cfg).Build(
		context.Background(), b, engine.GridSpec{CRS: "EPSG:32631", ScaleM: 4000})
	require.NoError(t, err)
	return eng, b, surface.Friction
}

func TestComputeNoFacilities(t *testing.T) {
	cfg := testAnalysisConfig()
	eng, b, fr := testSurface(t, cfg)

	_, err := NewComputer(eng, cfg).Compute(context.Background(), b, fr, nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoFacilities))
}

func TestComputeZeroAtFacility(t *testing.T) {
	cfg := testAnalysisConfig()
	eng, b, fr := testSurface(t, cfg)

	acc, err := NewComputer(eng, cfg).Compute(context.Background(), b, fr, []model.Facility{
		{ID: 1, Name: "Central Clinic", Longitude: 0.5, Latitude: 0.5},
	})
	require.NoError(t, err)

	v, ok := acc.SampleAt(0.5, 0.5)
	require.True(t, ok)
	assert.InDelta(t, 0, v, 1e-9)
}

func TestComputeTimeGrowsWithDistance(t *testing.T) {
	cfg := testAnalysisConfig()
	eng, b, fr := testSurface(t, cfg)

	acc, err := NewComputer(eng, cfg).Compute(context.Background(), b, fr, []model.Facility{
		{ID: 1, Name: "Central Clinic", Longitude: 0.5, Latitude: 0.5},
	})
	require.NoError(t, err)

	near, ok := acc.SampleAt(0.55, 0.5)
	require.True(t, ok)
	far, ok := acc.SampleAt(0.6, 0.5)
	require.True(t, ok)
	assert.Less(t, near, far)

	// ~5.5 km at 10 km/h is ~33 min of walking; the grid path adds overhead
	// but stays in the right ballpark.
	assert.Greater(t, far, near+5.0)
}

func TestComputeCapMasksUnreachable(t *testing.T) {
	cfg := testAnalysisConfig()
	eng, b, fr := testSurface(t, cfg)

	acc, err := NewComputer(eng, cfg).Compute(context.Background(), b, fr, []model.Facility{
		{ID: 1, Name: "Corner Clinic", Longitude: 0.1, Latitude: 0.1},
	})
	require.NoError(t, err)

	// The far corner is ~140 km of walking away; at 10 km/h that is far past
	// the 60-minute cap.
	_, ok := acc.SampleAt(0.95, 0.95)
	assert.False(t, ok)

	v, ok := acc.SampleAt(0.12, 0.1)
	require.True(t, ok)
	assert.LessOrEqual(t, v, cfg.MaxTimeMinutes)
}

func TestComputeSearchRadiusMasks(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.MaxTimeMinutes = 1e9 // cap off: isolate the distance cutoff
	cfg.MaxSearchKm = 10
	eng, b, fr := testSurface(t, cfg)

	acc, err := NewComputer(eng, cfg).Compute(context.Background(), b, fr, []model.Facility{
		{ID: 1, Name: "Central Clinic", Longitude: 0.5, Latitude: 0.5},
	})
	require.NoError(t, err)

	_, ok := acc.SampleAt(0.8, 0.5) // ~33 km out
	assert.False(t, ok)
	_, ok = acc.SampleAt(0.52, 0.5)
	assert.True(t, ok)
}

func TestSecondsPerMeterFallbackFill(t *testing.T) {
	grid := engine.GridSpec{CRS: "EPSG:32631", ScaleM: 4000}
	fr := engine.NewRaster(grid, engine.Transform{MinLon: 0, MaxLat: 1, CellLon: 0.1, CellLat: 0.1}, 2, 1)
	fr.Set(0, 0, 0.006)
	// (1,0) masked: a data gap

	cost := secondsPerMeter(fr, 0.12)
	v, ok := cost.At(0, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.36, v, 1e-12)

	v, ok = cost.At(1, 0)
	require.True(t, ok, "gaps must be filled, not left blocking")
	assert.InDelta(t, 7.2, v, 1e-12)

	// Input untouched.
	_, ok = fr.At(1, 0)
	assert.False(t, ok)
}
