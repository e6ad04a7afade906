package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redwren/redwrenlib/model"
)

var appendOverride bool

// componentSetFile is the JSON shape of one fitted component set, as
// exported by the fitting pipeline.
type componentSetFile struct {
	Weights           []float64     `json:"weights"`
	Means             [][]float64   `json:"means"`
	Covariances       [][][]float64 `json:"covariances"`
	PrecisionCholesky [][][]float64 `json:"precision_cholesky"`
}

type modelFile struct {
	Sets []componentSetFile `json:"sets"`
}

var appendCmd = &cobra.Command{
	Use:   "append <sensor> <models.json>",
	Short: "Append fitted models to a sensor group",
	Long: `Append the component sets in models.json to the named sensor's group and
commit the file. By default new sets are merged after the models already on
disk; --override recreates the file with only the appended models.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		label, path := args[0], args[1]

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var mf modelFile
		if err := json.Unmarshal(data, &mf); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if len(mf.Sets) == 0 {
			return fmt.Errorf("%s contains no component sets", path)
		}

		sets := make([]*model.GaussianComponentSet, 0, len(mf.Sets))
		for i, raw := range mf.Sets {
			set, err := model.NewComponentSet(len(raw.Weights),
				raw.Weights, raw.Means, raw.Covariances, raw.PrecisionCholesky)
			if err != nil {
				return fmt.Errorf("set %d: %w", i, err)
			}
			sets = append(sets, set)
		}

		// Write(false) merges after the models already on disk, so the
		// store only ever holds the sets being appended.
		s := newStore()
		if err := s.AppendReading(label, sets...); err != nil {
			return err
		}
		if err := s.Write(appendOverride); err != nil {
			return err
		}
		fmt.Printf("appended %d model(s) to %q in %s\n", len(sets), label, s.Path())
		return nil
	},
}

func init() {
	appendCmd.Flags().BoolVar(&appendOverride, "override", false, "recreate the file instead of merging")
	rootCmd.AddCommand(appendCmd)
}
