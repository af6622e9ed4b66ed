package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/reachmap/access-cli/internal/model"
	"github.com/reachmap/access-cli/internal/orchestrator"
)

var (
	batchCountries   string
	batchConcurrency int
	batchLimit       int
	batchJSON        bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run accessibility analysis for every registry country",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchConcurrency > 0 {
			cfg.Batch.Concurrency = batchConcurrency
		}

		eng, err := initEngine()
		if err != nil {
			return eris.Wrap(err, "batch")
		}

		snap, err := fetchSnapshot(ctx)
		if err != nil {
			return eris.Wrap(err, "batch")
		}

		countries := snap.Countries
		if batchCountries != "" {
			countries = filterCountries(countries, batchCountries)
			if len(countries) == 0 {
				return eris.Errorf("no registry country matches %q", batchCountries)
			}
		}
		if batchLimit > 0 {
			countries = limitCountries(countries, batchLimit)
		}

		summary, err := orchestrator.New(eng, cfg).Run(ctx, countries, snap.Facilities)
		if summary != nil {
			printSummary(summary)
		}
		return err
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchCountries, "countries", "", "comma-separated country names (default: all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "override batch.concurrency")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "process at most N countries, alphabetically (default: all)")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "output the summary as JSON")
	rootCmd.AddCommand(batchCmd)
}

func filterCountries(all map[string]model.Country, list string) map[string]model.Country {
	out := make(map[string]model.Country)
	for _, raw := range strings.Split(list, ",") {
		name := strings.TrimSpace(raw)
		if c, ok := all[name]; ok {
			out[name] = c
		}
	}
	return out
}

// limitCountries keeps the first n countries in alphabetical order, matching
// the order the orchestrator processes them in.
func limitCountries(all map[string]model.Country, n int) map[string]model.Country {
	if len(all) <= n {
		return all
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]model.Country, n)
	for _, name := range names[:n] {
		out[name] = all[name]
	}
	return out
}

func printSummary(s *model.BatchSummary) {
	if batchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(s)
		return
	}

	fmt.Printf("\nProcessed %d countries in %s (%.1f%% success)\n",
		len(s.Succeeded)+len(s.Failed), s.Elapsed.Round(time.Second), s.SuccessRate())
	for _, r := range s.Succeeded {
		fmt.Printf("  ok   %-35s %4.0fm  %s\n", r.Country, r.ResolutionM, r.AssetID)
	}
	for _, r := range s.Failed {
		fmt.Printf("  FAIL %-35s %s\n", r.Country, r.Error)
	}
}
