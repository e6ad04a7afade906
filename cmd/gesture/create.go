package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createFlags struct {
	version     int
	format      string
	nComponents int
	randomState int64
	threshold   float64
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty gesture file",
	Long: `Create a new gesture file at the configured path, replacing any existing
file. The file carries the schema version header and the default fitting
parameters; sensor models are added later with append.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("version") {
			cfg.Store.Version = createFlags.version
		}
		if cmd.Flags().Changed("format") {
			cfg.Store.Format = createFlags.format
		}
		if cmd.Flags().Changed("n-components") {
			cfg.Store.Defaults.NComponents = createFlags.nComponents
		}
		if cmd.Flags().Changed("random-state") {
			cfg.Store.Defaults.RandomState = createFlags.randomState
		}
		if cmd.Flags().Changed("threshold") {
			cfg.Store.Defaults.Threshold = createFlags.threshold
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		s := newStore()
		if err := s.Create(); err != nil {
			return err
		}
		fmt.Printf("created %s (%s, version %s)\n", s.Path(), cfg.Store.Format, s.Version())
		return nil
	},
}

func init() {
	createCmd.Flags().IntVar(&createFlags.version, "version", 2, "container schema generation (1 or 2)")
	createCmd.Flags().StringVar(&createFlags.format, "format", "container", "file format: container or log")
	createCmd.Flags().IntVar(&createFlags.nComponents, "n-components", 0, "default mixture component count")
	createCmd.Flags().Int64Var(&createFlags.randomState, "random-state", 0, "default fitting seed")
	createCmd.Flags().Float64Var(&createFlags.threshold, "threshold", 0, "default match threshold")
	rootCmd.AddCommand(createCmd)
}
