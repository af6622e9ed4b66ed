package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var countriesJSON bool

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List registry countries with qualifying facilities",
	RunE: func(cmd *cobra.Command, _ []string) error {
		snap, err := fetchSnapshot(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "countries")
		}

		names := make([]string, 0, len(snap.Countries))
		for name := range snap.Countries {
			names = append(names, name)
		}
		sort.Strings(names)

		if countriesJSON {
			type row struct {
				Name       string `json:"name"`
				ISO        string `json:"iso,omitempty"`
				Facilities int    `json:"facilities"`
			}
			rows := make([]row, 0, len(names))
			for _, name := range names {
				rows = append(rows, row{
					Name:       name,
					ISO:        snap.Countries[name].ISO,
					Facilities: len(snap.Facilities[name]),
				})
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "COUNTRY\tISO\tFACILITIES")
		total := 0
		for _, name := range names {
			n := len(snap.Facilities[name])
			total += n
			fmt.Fprintf(w, "%s\t%s\t%d\n", name, snap.Countries[name].ISO, n)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d countries, %d facilities\n", len(names), total)
		return nil
	},
}

func init() {
	countriesCmd.Flags().BoolVar(&countriesJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(countriesCmd)
}
