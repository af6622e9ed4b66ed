// Package orchestrator runs the per-country analysis pipeline across the
// whole registry: resolve boundary, plan the grid, build friction, compute
// accessibility, export the result. Countries are independent; one failure
// never stops the batch.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reachmap/access-cli/internal/access"
	"github.com/reachmap/access-cli/internal/boundary"
	"github.com/reachmap/access-cli/internal/config"
	"github.com/reachmap/access-cli/internal/coverage"
	"github.com/reachmap/access-cli/internal/engine"
	"github.com/reachmap/access-cli/internal/friction"
	"github.com/reachmap/access-cli/internal/model"
	"github.com/reachmap/access-cli/internal/planner"
)

// Orchestrator coordinates batch analysis runs.
type Orchestrator struct {
	eng      engine.Engine
	resolver *boundary.Resolver
	friction *friction.Builder
	access   *access.Computer
	cfg      *config.Config
}

// New wires an orchestrator from an engine and configuration.
func New(eng engine.Engine, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		eng:      eng,
		resolver: boundary.NewResolver(eng),
		friction: friction.NewBuilder(eng, cfg.Analysis),
		access:   access.NewComputer(eng, cfg.Analysis),
		cfg:      cfg,
	}
}

// Run processes every country in the snapshot and returns the batch summary.
// Worker count follows batch.concurrency; failed countries are retried with
// linear backoff unless the failure is a precondition (missing boundary, no
// usable facilities), which cannot heal within a run.
func (o *Orchestrator) Run(ctx context.Context, countries map[string]model.Country, facilities map[string][]model.Facility) (*model.BatchSummary, error) {
	names := make([]string, 0, len(countries))
	for name := range countries {
		names = append(names, name)
	}
	sort.Strings(names)

	zap.L().Info("batch run starting",
		zap.Int("countries", len(names)),
		zap.Int("concurrency", o.cfg.Batch.Concurrency),
	)

	start := time.Now()
	summary := &model.BatchSummary{}
	var mu sync.Mutex
	processed := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Batch.Concurrency)
	for _, name := range names {
		name := name
		g.Go(func() error {
			result := o.runCountry(ctx, name, facilities[name])

			mu.Lock()
			if result.Success {
				summary.Succeeded = append(summary.Succeeded, result)
			} else {
				summary.Failed = append(summary.Failed, result)
			}
			processed++
			done := processed
			mu.Unlock()

			if o.cfg.Batch.ProgressEvery > 0 && done%o.cfg.Batch.ProgressEvery == 0 {
				o.logProgress(done, len(names), start)
			}
			// Country failures are recorded, not propagated; only
			// cancellation aborts the group.
			return ctx.Err()
		})
	}
	err := g.Wait()
	summary.Elapsed = time.Since(start)

	zap.L().Info("batch run finished",
		zap.Int("succeeded", len(summary.Succeeded)),
		zap.Int("failed", len(summary.Failed)),
		zap.Float64("success_rate_pct", summary.SuccessRate()),
		zap.Duration("elapsed", summary.Elapsed),
	)
	if err != nil {
		return summary, eris.Wrap(err, "orchestrator: batch interrupted")
	}
	return summary, nil
}

// runCountry executes the pipeline for one country with retries. The result
// always comes back; errors are folded into it.
func (o *Orchestrator) runCountry(ctx context.Context, name string, facilities []model.Facility) model.CountryResult {
	attempts := 0
	retryCfg := resilienceConfig(o.cfg.Batch)
	retryCfg.OnRetry = func(attempt int, err error) {
		zap.L().Warn("retrying country",
			zap.String("country", name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	result, err := doWithRecovery(ctx, retryCfg, func(ctx context.Context) (model.CountryResult, error) {
		attempts++
		return o.processCountry(ctx, name, facilities)
	})
	result.Country = name
	result.Attempts = attempts
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		zap.L().Error("country failed",
			zap.String("country", name),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
	}
	return result
}

// processCountry is one attempt of the full pipeline for one country.
func (o *Orchestrator) processCountry(ctx context.Context, name string, facilities []model.Facility) (model.CountryResult, error) {
	var result model.CountryResult

	bd, err := o.resolver.Resolve(ctx, name)
	if err != nil {
		return result, err
	}

	plan, err := planner.New(bd)
	if err != nil {
		return result, err
	}
	result.ResolutionM = plan.Grid.ScaleM
	result.CRS = plan.Grid.CRS
	result.FacilityCount = len(facilities)

	surface, err := o.friction.Build(ctx, bd, plan.Grid)
	if err != nil {
		return result, err
	}
	result.RoadFallback = surface.RoadFallback

	acc, err := o.access.Compute(ctx, bd, surface.Friction, facilities)
	if err != nil {
		return result, err
	}

	assetID := o.assetID(name, plan.Grid.ScaleM)
	taskID, err := o.eng.ExportAsset(ctx, acc, assetID,
		fmt.Sprintf("Travel time to health facilities - %s", name))
	if err != nil {
		return result, eris.Wrap(err, "orchestrator: export")
	}

	result.Success = true
	result.AssetID = assetID
	result.TaskID = taskID
	return result, nil
}

// Stats computes coverage statistics for a single country by re-running the
// analysis stages and reconciling against population. Nothing is read from a
// previous run.
func (o *Orchestrator) Stats(ctx context.Context, name string, facilities []model.Facility) (*model.CoverageStats, error) {
	bd, err := o.resolver.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	plan, err := planner.New(bd)
	if err != nil {
		return nil, err
	}

	surface, err := o.friction.Build(ctx, bd, plan.Grid)
	if err != nil {
		return nil, err
	}
	acc, err := o.access.Compute(ctx, bd, surface.Friction, facilities)
	if err != nil {
		return nil, err
	}

	rec := coverage.NewReconciler(o.eng, o.cfg.Coverage)
	return rec.Stats(ctx, bd, acc, o.cfg.Analysis.Thresholds)
}

func (o *Orchestrator) assetID(country string, scaleM float64) string {
	return fmt.Sprintf("projects/%s/assets/%s/%s_travel_time_%dm",
		o.cfg.Engine.Project,
		o.cfg.Engine.AssetFolder,
		model.AssetCountryName(country),
		int(scaleM),
	)
}

func (o *Orchestrator) logProgress(done, total int, start time.Time) {
	elapsed := time.Since(start)
	rate := float64(done) / elapsed.Seconds()
	var eta time.Duration
	if rate > 0 {
		eta = time.Duration(float64(total-done)/rate) * time.Second
	}
	zap.L().Info("batch progress",
		zap.Int("done", done),
		zap.Int("total", total),
		zap.Float64("countries_per_sec", rate),
		zap.Duration("eta", eta),
	)
}
