package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/redwren/redwrenlib/model"
)

var inspectJSON bool

type sensorSummary struct {
	Sensor string           `json:"sensor"`
	Models int              `json:"models"`
	Params model.Parameters `json:"params"`
}

type fileSummary struct {
	Path    string          `json:"path"`
	Version string          `json:"version"`
	Sensors []sensorSummary `json:"sensors"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the contents of a gesture file",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		s := newStore()
		if err := s.Read(); err != nil {
			return err
		}

		summary := fileSummary{Path: s.Path(), Version: s.Version().String()}
		data := s.GestureData()
		for _, label := range s.Keys() {
			entry := data[label]
			summary.Sensors = append(summary.Sensors, sensorSummary{
				Sensor: label,
				Models: len(entry.Sets),
				Params: entry.Params,
			})
		}

		if inspectJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		fmt.Printf("%s (version %s)\n", summary.Path, summary.Version)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SENSOR\tMODELS\tCOMPONENTS\tSEED\tTHRESHOLD")
		for _, row := range summary.Sensors {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%g\n",
				row.Sensor, row.Models, row.Params.NComponents, row.Params.RandomState, row.Params.Threshold)
		}
		return w.Flush()
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(inspectCmd)
}
