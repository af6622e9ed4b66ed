package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/reachmap/access-cli/internal/orchestrator"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage <country>",
	Short: "Compute population coverage statistics for one country",
	Long:  "Re-runs the analysis stages for the named country and reports how much of its population lives within each travel-time threshold of a facility.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]

		eng, err := initEngine()
		if err != nil {
			return eris.Wrap(err, "coverage")
		}

		snap, err := fetchSnapshot(ctx)
		if err != nil {
			return eris.Wrap(err, "coverage")
		}
		if _, ok := snap.Countries[name]; !ok {
			return eris.Errorf("country %q not found in registry", name)
		}

		stats, err := orchestrator.New(eng, cfg).Stats(ctx, name, snap.Facilities[name])
		if err != nil {
			return eris.Wrapf(err, "coverage %s", name)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats.Flatten())
	},
}

func init() {
	rootCmd.AddCommand(coverageCmd)
}
