package boundary

import (
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/reachmap/access-cli/internal/engine"
	"github.com/reachmap/access-cli/internal/engine/local"
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

// countingEngine wraps the local engine to count Boundary lookups.
type countingEngine struct {
	*local.Engine

	mu    sync.Mutex
	calls int
}

func (c *countingEngine) Boundary(ctx context.Context, name string) (*engine.Boundary, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Engine.Boundary(ctx, name)
}

func TestResolveDirect(t *testing.T) {
	eng := local.New()
	eng.AddBoundary(squareBoundary(t, "Kenya", 34, -4, 6))

	r := NewResolver(eng)
	b, err := r.Resolve(context.Background(), "Kenya")
	require.NoError(t, err)
	assert.Equal(t, "Kenya", b.Name)
}

func TestResolveAlias(t *testing.T) {
	eng := local.New()
	eng.AddBoundary(squareBoundary(t, "Burma", 92, 10, 10))

	r := NewResolver(eng)
	b, err := r.Resolve(context.Background(), "Myanmar")
	require.NoError(t, err)
	assert.Equal(t, "Burma", b.Name)
}

func TestResolveAliasFallsBackToOriginal(t *testing.T) {
	// The dataset here uses the registry spelling, not the alias.
	eng := local.New()
	eng.AddBoundary(squareBoundary(t, "Czech Republic", 12, 48, 5))

	r := NewResolver(eng)
	b, err := r.Resolve(context.Background(), "Czech Republic")
	require.NoError(t, err)
	assert.Equal(t, "Czech Republic", b.Name)
}

func TestResolveNotFound(t *testing.T) {
	r := NewResolver(local.New())
	_, err := r.Resolve(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.True(t, eris.Is(err, engine.ErrBoundaryNotFound))
}

func TestResolveCaches(t *testing.T) {
	eng := &countingEngine{Engine: local.New()}
	eng.AddBoundary(squareBoundary(t, "Togo", 0, 6, 2))

	r := NewResolver(eng)
	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), "Togo")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, eng.calls)
}

func TestResolveCachesFailures(t *testing.T) {
	eng := &countingEngine{Engine: local.New()}
	r := NewResolver(eng)

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), "Atlantis")
		require.Error(t, err)
	}
	assert.Equal(t, 1, eng.calls)
}

func TestResolveCaseAndAccentInsensitive(t *testing.T) {
	eng := local.New()
	eng.AddBoundary(squareBoundary(t, "Côte d'Ivoire", -8, 4, 6))

	r := NewResolver(eng)
	b, err := r.Resolve(context.Background(), "Cote d'Ivoire")
	require.NoError(t, err)
	assert.Equal(t, "Côte d'Ivoire", b.Name)
}
