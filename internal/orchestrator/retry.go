package orchestrator

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reachmap/access-cli/internal/access"
	"github.com/reachmap/access-cli/internal/config"
	"github.com/reachmap/access-cli/internal/engine"
	"github.com/reachmap/access-cli/internal/model"
	"github.com/reachmap/access-cli/internal/resilience"
)

// resilienceConfig maps batch retry settings onto the retry helper: linear
// backoff (5s, 10s, 15s, …) and no retry on precondition failures, which stay
// true for the whole run.
func resilienceConfig(cfg config.BatchConfig) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    cfg.MaxRetries + 1,
		InitialBackoff: time.Duration(cfg.RetryBackoffSecs) * time.Second,
		MaxBackoff:     5 * time.Minute,
		Strategy:       resilience.StrategyLinear,
		ShouldRetry:    shouldRetryCountry,
	}
}

func shouldRetryCountry(err error) bool {
	if eris.Is(err, engine.ErrBoundaryNotFound) || eris.Is(err, access.ErrNoFacilities) {
		return false
	}
	return true
}

// doWithRecovery runs one country through the retry loop, converting panics
// in pipeline code into ordinary failures so a bad country cannot take down
// the batch.
func doWithRecovery(ctx context.Context, cfg resilience.RetryConfig, fn func(ctx context.Context) (model.CountryResult, error)) (model.CountryResult, error) {
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (result model.CountryResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = eris.Errorf("orchestrator: panic: %v", r)
			}
		}()
		return fn(ctx)
	})
}
