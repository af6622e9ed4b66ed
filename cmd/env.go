package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/reachmap/access-cli/internal/engine"
	"github.com/reachmap/access-cli/internal/engine/local"
	"github.com/reachmap/access-cli/pkg/registry"
)

// initEngine constructs the compute backend selected by engine.driver.
func initEngine() (engine.Engine, error) {
	switch cfg.Engine.Driver {
	case "local":
		eng := local.New()
		if cfg.Engine.BoundariesPath != "" {
			if _, err := eng.LoadBoundaries(cfg.Engine.BoundariesPath, cfg.Engine.BoundaryNameField); err != nil {
				return nil, err
			}
		}
		return eng, nil
	default:
		return nil, eris.Errorf("unknown engine driver %q", cfg.Engine.Driver)
	}
}

// fetchSnapshot reads the current registry state.
func fetchSnapshot(ctx context.Context) (*registry.Snapshot, error) {
	return registry.New(cfg.Registry).FetchAll(ctx)
}
