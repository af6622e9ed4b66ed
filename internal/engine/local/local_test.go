package local

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/reachmap/access-cli/internal/engine"
)

func squareBoundary(t *testing.T, name string, minLon, minLat, sizeDeg float64) *engine.Boundary {
	t.Helper()
	mp := geom.NewMultiPolygon(geom.XY)
	_, err := mp.SetCoords([][][]geom.Coord{{{
		{minLon, minLat},
		{minLon + sizeDeg, minLat},
		{minLon + sizeDeg, minLat + sizeDeg},
		{minLon, minLat + sizeDeg},
		{minLon, minLat},
	}}})
	require.NoError(t, err)
	return engine.NewBoundary(name, mp)
}

func testGrid() engine.GridSpec {
	return engine.GridSpec{CRS: "EPSG:32631", ScaleM: 4000}
}

func TestBoundaryLookup(t *testing.T) {
	e := New()
	e.AddBoundary(squareBoundary(t, "Côte d'Ivoire", -8, 4, 6))

	b, err := e.Boundary(context.Background(), "Cote d'Ivoire")
	require.NoError(t, err)
	assert.Equal(t, "Côte d'Ivoire", b.Name)

	_, err = e.Boundary(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.True(t, eris.Is(err, engine.ErrBoundaryNotFound))
}

func TestLandCoverClippedToBoundary(t *testing.T) {
	e := New()
	b := squareBoundary(t, "Testland", 0, 0, 1)
	e.AddBoundary(b)

	lc, err := e.LandCover(context.Background(), b, testGrid())
	require.NoError(t, err)

	// Default class everywhere inside, masked outside.
	v, ok := lc.SampleAt(0.5, 0.5)
	require.True(t, ok)
	assert.Equal(t, 40.0, v)

	_, ok = lc.SampleAt(1.2, 0.5)
	assert.False(t, ok)

	// Some frame padding exists but only boundary pixels are valid.
	assert.Less(t, lc.ValidCount(), lc.Width*lc.Height)
	assert.Positive(t, lc.ValidCount())
}

func TestLayersShareFrame(t *testing.T) {
	e := New()
	b := squareBoundary(t, "Testland", 0, 0, 1)
	e.AddBoundary(b)

	ctx := context.Background()
	lc, err := e.LandCover(ctx, b, testGrid())
	require.NoError(t, err)
	slope, err := e.Slope(ctx, b, testGrid())
	require.NoError(t, err)
	require.NoError(t, engine.CheckSameFrame("test", lc, slope))
}

func TestPopulationNativeScale(t *testing.T) {
	e := New()
	b := squareBoundary(t, "Testland", 0, 0, 1)
	e.AddBoundary(b)
	e.SetPopulationFunc(func(lon, lat float64) float64 { return 3 })

	pop, err := e.Population(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, DefaultNativeScaleM, pop.Grid.ScaleM)

	v, ok := pop.SampleAt(0.5, 0.5)
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestRoadsBBoxFilter(t *testing.T) {
	e := New()
	b := squareBoundary(t, "Testland", 0, 0, 1)
	e.AddBoundary(b)

	inside := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0.2, 0.2}, {0.8, 0.8}})
	outside := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{5, 5}, {6, 6}})

	e.SetRoads("grip/region", []engine.RoadFeature{
		{RouteType: 1, Line: inside},
		{RouteType: 2, Line: outside},
	})

	features, err := e.Roads(context.Background(), "grip/region", b)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, 1, features[0].RouteType)
}

func TestRoadsNoData(t *testing.T) {
	e := New()
	b := squareBoundary(t, "Testland", 0, 0, 1)
	e.AddBoundary(b)

	_, err := e.Roads(context.Background(), "grip/unregistered", b)
	require.Error(t, err)
	assert.True(t, eris.Is(err, engine.ErrNoRoadData))

	far := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{50, 50}, {51, 51}})
	e.SetRoads("grip/far", []engine.RoadFeature{{RouteType: 1, Line: far}})

	_, err = e.Roads(context.Background(), "grip/far", b)
	assert.True(t, eris.Is(err, engine.ErrNoRoadData))
}

func TestExportAssetRecords(t *testing.T) {
	e := New()
	b := squareBoundary(t, "Testland", 0, 0, 1)
	e.AddBoundary(b)

	lc, err := e.LandCover(context.Background(), b, testGrid())
	require.NoError(t, err)

	taskID, err := e.ExportAsset(context.Background(), lc, "projects/p/assets/f/x", "test export")
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)

	exports := e.Exports()
	require.Len(t, exports, 1)
	assert.Equal(t, taskID, exports[0].TaskID)
	assert.Equal(t, "projects/p/assets/f/x", exports[0].AssetID)
	assert.Equal(t, testGrid(), exports[0].Grid)
}
