package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/redwren/redwrenlib/config"
	"github.com/redwren/redwrenlib/store"
)

var (
	cfgPath   string
	storePath string
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "gesture",
	Short:        "Manage gesture model files and evaluate sensor readings",
	SilenceUsage: true,
	Long: `gesture works with versioned gesture model files: containers of fitted
Gaussian mixture models, one group per sensor. It can create and inspect
files, append fitted models, convert between file generations and formats,
evaluate recorded readings for a match, and serve match requests over NATS.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		if cfgPath != "" {
			cfg, err = config.Load(cfgPath)
		} else {
			cfg = config.DefaultConfig()
		}
		if err != nil {
			return err
		}
		if storePath != "" {
			cfg.Store.Path = storePath
		}
		slog.SetDefault(cfg.Logger())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "YAML or JSON config file")
	rootCmd.PersistentFlags().StringVarP(&storePath, "file", "f", "", "gesture file path (overrides config)")
}

func newStore() *store.Store {
	opts := append(cfg.StoreOptions(), store.WithLogger(slog.Default()))
	return store.New(cfg.Store.Path, opts...)
}
