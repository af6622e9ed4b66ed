package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/reachmap/access-cli/internal/engine"
)

func TestRasterizeLinesBurnsPath(t *testing.T) {
	e := New()
	b := squareBoundary(t, "Testland", 0, 0, 1)
	e.AddBoundary(b)

	road := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0.1, 0.5}, {0.9, 0.5}})

	r, err := e.RasterizeLines(context.Background(), []*geom.LineString{road}, b, testGrid())
	require.NoError(t, err)

	// Every pixel along the horizontal path is burned.
	for _, lon := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		v, ok := r.SampleAt(lon, 0.5)
		require.True(t, ok, "pixel at lon %.1f should be burned", lon)
		assert.Equal(t, 1.0, v)
	}

	// Off the path stays masked.
	_, ok := r.SampleAt(0.5, 0.9)
	assert.False(t, ok)
}

func TestRasterizeLinesContinuousDiagonal(t *testing.T) {
	e := New()
	b := squareBoundary(t, "Testland", 0, 0, 1)
	e.AddBoundary(b)

	road := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0.1, 0.1}, {0.9, 0.9}})

	r, err := e.RasterizeLines(context.Background(), []*geom.LineString{road}, b, testGrid())
	require.NoError(t, err)
	// A diagonal across ~22 cells burns at least a cell per row it crosses.
	assert.GreaterOrEqual(t, r.ValidCount(), 20)
}

func TestRasterizeLinesNilAndEmpty(t *testing.T) {
	e := New()
	b := squareBoundary(t, "Testland", 0, 0, 1)
	e.AddBoundary(b)

	r, err := e.RasterizeLines(context.Background(), []*geom.LineString{nil}, b, testGrid())
	require.NoError(t, err)
	assert.Zero(t, r.ValidCount())
}

func TestRasterizePointsBuffer(t *testing.T) {
	e := New()
	b := squareBoundary(t, "Testland", 0, 0, 1)
	e.AddBoundary(b)

	// 6000 m buffer on a 4000 m grid: the point pixel and its neighbourhood.
	r, err := e.RasterizePoints(context.Background(),
		[]engine.Point{{Lon: 0.5, Lat: 0.5}}, 6000, b, testGrid())
	require.NoError(t, err)

	v, ok := r.SampleAt(0.5, 0.5)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	assert.Greater(t, r.ValidCount(), 1, "buffer covers more than the point pixel")

	// Far away stays masked.
	_, ok = r.SampleAt(0.9, 0.9)
	assert.False(t, ok)
}

func TestRasterizePointsTinyBufferStillBurns(t *testing.T) {
	e := New()
	b := squareBoundary(t, "Testland", 0, 0, 1)
	e.AddBoundary(b)

	// A buffer far below pixel size must still yield a source pixel.
	r, err := e.RasterizePoints(context.Background(),
		[]engine.Point{{Lon: 0.31, Lat: 0.77}}, 1, b, testGrid())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, r.ValidCount(), 1)

	v, ok := r.SampleAt(0.31, 0.77)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestRasterizePointsOutsideFrame(t *testing.T) {
	e := New()
	b := squareBoundary(t, "Testland", 0, 0, 1)
	e.AddBoundary(b)

	// A point far outside the frame burns nothing and does not panic.
	r, err := e.RasterizePoints(context.Background(),
		[]engine.Point{{Lon: 50, Lat: 50}}, 6000, b, testGrid())
	require.NoError(t, err)
	assert.Zero(t, r.ValidCount())
}
