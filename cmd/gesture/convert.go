package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redwren/redwrenlib/container"
	"github.com/redwren/redwrenlib/store"
)

var convertFlags struct {
	fromFormat string
	toFormat   string
	toVersion  int
}

var convertCmd = &cobra.Command{
	Use:   "convert <src> <dst>",
	Short: "Convert a gesture file between formats and schema generations",
	Long: `Read every sensor group from src and write it to dst in the requested
format and schema generation. Converting to version 1 collapses per-sensor
parameters to the defaults; models are carried over unchanged.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		srcPath, dstPath := args[0], args[1]
		for _, f := range []string{convertFlags.fromFormat, convertFlags.toFormat} {
			switch store.Format(f) {
			case store.FormatContainer, store.FormatLog:
			default:
				return fmt.Errorf("unknown format %q, want container or log", f)
			}
		}

		src := store.New(srcPath, store.WithFormat(store.Format(convertFlags.fromFormat)))
		if err := src.Read(); err != nil {
			return err
		}

		dst := store.New(dstPath,
			store.WithFormat(store.Format(convertFlags.toFormat)),
			store.WithVersion(container.Version(convertFlags.toVersion)),
			store.WithDefaults(cfg.Store.Defaults),
		)
		data := src.GestureData()
		for _, label := range src.Keys() {
			entry := data[label]
			if err := dst.AppendReading(label, entry.Sets...); err != nil {
				return err
			}
			if err := dst.SetParameters(label, store.WithParameters(entry.Params)); err != nil {
				return err
			}
		}
		if err := dst.Write(true); err != nil {
			return err
		}
		fmt.Printf("converted %s (%s) to %s (%s, version %s)\n",
			srcPath, src.Version(), dstPath, convertFlags.toFormat, dst.Version())
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertFlags.fromFormat, "from-format", "container", "source format: container or log")
	convertCmd.Flags().StringVar(&convertFlags.toFormat, "to-format", "container", "destination format: container or log")
	convertCmd.Flags().IntVar(&convertFlags.toVersion, "to-version", 2, "destination schema generation (1 or 2)")
	rootCmd.AddCommand(convertCmd)
}
