// Package model holds the domain types shared across the accessibility
// pipeline: countries, facilities, analysis grids and run results.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Country is a registry country with qualifying health facilities.
// The boundary geometry is resolved lazily per run and never stored here.
type Country struct {
	Name string `json:"name"`
	ISO  string `json:"iso,omitempty"`
}

// Facility is a health-facility point location owned by exactly one country.
// Facilities with invalid or missing coordinates are dropped at ingestion and
// never constructed.
type Facility struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SizeTier is the country size class that fixes the analysis pixel scale.
type SizeTier string

const (
	TierLarge  SizeTier = "large"  // > 2,000,000 km²
	TierMedium SizeTier = "medium" // 200,000 – 2,000,000 km²
	TierSmall  SizeTier = "small"  // < 200,000 km²
)

// CoverageStats is the derived coverage artifact for one country. It is
// recomputed per request and never cached.
type CoverageStats struct {
	Country string `json:"country"`

	// TotalPopulation is the fixed denominator: population summed at the
	// population dataset's native resolution.
	TotalPopulation int64 `json:"total_population"`

	AnalysisResolutionM       float64 `json:"analysis_resolution"`
	ReconciliationResolutionM float64 `json:"reconciliation_resolution"`
	KFactor                   int     `json:"k_factor"`
	CoverageScaleUsedM        float64 `json:"coverage_scale_used"`

	// ResolutionMatch reports whether the conservative resolution was close
	// enough (within tolerance) to reuse for the coverage join.
	ResolutionMatch bool `json:"resolution_match"`

	// PopulationLossPct is the aggregation quality check: how much of the
	// native-resolution total went missing in the conservative aggregation.
	// Informational only.
	PopulationLossPct float64 `json:"population_loss_pct"`

	// Tiled reports whether the tiling fallback computed the sums.
	Tiled bool `json:"tiled"`

	// PopWithin and CoveragePct are keyed by threshold minutes.
	PopWithin   map[int]int64   `json:"-"`
	CoveragePct map[int]float64 `json:"-"`
}

// Flatten renders the stats as the flat key set consumed by callers:
// pop_within_<t>min and coverage_<t>min per threshold.
func (s *CoverageStats) Flatten() map[string]any {
	out := map[string]any{
		"country":                   s.Country,
		"total_population":          s.TotalPopulation,
		"analysis_resolution":       s.AnalysisResolutionM,
		"reconciliation_resolution": s.ReconciliationResolutionM,
		"k_factor":                  s.KFactor,
		"coverage_scale_used":       s.CoverageScaleUsedM,
	}
	thresholds := make([]int, 0, len(s.PopWithin))
	for t := range s.PopWithin {
		thresholds = append(thresholds, t)
	}
	sort.Ints(thresholds)
	for _, t := range thresholds {
		out[fmt.Sprintf("pop_within_%dmin", t)] = s.PopWithin[t]
		out[fmt.Sprintf("coverage_%dmin", t)] = s.CoveragePct[t]
	}
	return out
}

// CountryResult is the batch outcome for one country. Exactly one of the
// succeeded/failed collections owns each result for the duration of a run.
type CountryResult struct {
	Country       string  `json:"country"`
	Success       bool    `json:"success"`
	AssetID       string  `json:"asset_id,omitempty"`
	TaskID        string  `json:"task_id,omitempty"`
	Error         string  `json:"error,omitempty"`
	ResolutionM   float64 `json:"resolution,omitempty"`
	CRS           string  `json:"crs,omitempty"`
	FacilityCount int     `json:"facility_count,omitempty"`
	RoadFallback  bool    `json:"road_fallback,omitempty"`
	Attempts      int     `json:"attempts,omitempty"`
}

// BatchSummary aggregates one orchestrator invocation. The collections are
// discarded with the summary when the run ends.
type BatchSummary struct {
	Succeeded []CountryResult `json:"succeeded"`
	Failed    []CountryResult `json:"failed"`
	Elapsed   time.Duration   `json:"elapsed"`
}

// SuccessRate returns the fraction of processed countries that succeeded,
// in percent.
func (s *BatchSummary) SuccessRate() float64 {
	total := len(s.Succeeded) + len(s.Failed)
	if total == 0 {
		return 0
	}
	return float64(len(s.Succeeded)) / float64(total) * 100
}

// AssetCountryName sanitizes a country display name for use in asset ids.
func AssetCountryName(name string) string {
	repl := strings.NewReplacer(" ", "_", ",", "", ".", "", "(", "", ")", "")
	return repl.Replace(name)
}
