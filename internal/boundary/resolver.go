// Package boundary resolves registry country names against the reference
// boundary dataset, bridging the two naming conventions.
package boundary

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reachmap/access-cli/internal/engine"
)

// nameAliases maps registry display names to the names the reference
// boundary dataset uses. Checked before the original name.
var nameAliases = map[string]string{
	"Syrian Arab Republic":         "Syria",
	"Bosnia and Herzegovina":       "Bosnia & Herzegovina",
	"Central African Republic":     "Central African Rep",
	"Congo":                        "Rep of the Congo",
	"Czech Republic":               "Czechia",
	"Republic of Korea":            "Korea, South",
	"Myanmar":                      "Burma",
	"Palestine":                    "West Bank",
	"Trinidad and Tobago":          "Trinidad & Tobago",
	"Tanzania, United Republic of": "Tanzania",
}

// Resolver looks up country boundaries with alias handling and a run-scoped
// cache. A name that failed once fails the same way for the rest of the run.
type Resolver struct {
	eng engine.Engine

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	boundary *engine.Boundary
	err      error
}

// NewResolver creates a resolver backed by the given engine.
func NewResolver(eng engine.Engine) *Resolver {
	return &Resolver{
		eng:   eng,
		cache: make(map[string]*cacheEntry),
	}
}

// Resolve returns the boundary for a registry country name. The alias form is
// tried first when one exists, then the original name. Absence surfaces as
// engine.ErrBoundaryNotFound and is never retried within a run.
func (r *Resolver) Resolve(ctx context.Context, name string) (*engine.Boundary, error) {
	r.mu.Lock()
	if entry, ok := r.cache[name]; ok {
		r.mu.Unlock()
		return entry.boundary, entry.err
	}
	r.mu.Unlock()

	b, err := r.lookup(ctx, name)
	if err != nil {
		err = eris.Wrapf(err, "boundary: resolve %q", name)
	}

	// Context failures are not verdicts about the name.
	if ctx.Err() == nil {
		r.mu.Lock()
		r.cache[name] = &cacheEntry{boundary: b, err: err}
		r.mu.Unlock()
	}
	return b, err
}

func (r *Resolver) lookup(ctx context.Context, name string) (*engine.Boundary, error) {
	if alias, ok := nameAliases[name]; ok {
		b, err := r.eng.Boundary(ctx, alias)
		if err == nil {
			zap.L().Debug("boundary resolved via alias",
				zap.String("name", name),
				zap.String("alias", alias),
			)
			return b, nil
		}
		if !eris.Is(err, engine.ErrBoundaryNotFound) {
			return nil, err
		}
	}
	return r.eng.Boundary(ctx, name)
}
