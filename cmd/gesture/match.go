package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redwren/redwrenlib/match"
	"github.com/redwren/redwrenlib/pkg/timestamp"
)

var matchFlags struct {
	rebase bool
	json   bool
}

// readingsFile is the JSON shape of one recorded gesture attempt.
type readingsFile struct {
	Timestamps []any                `json:"timestamps"`
	Readings   map[string][]float64 `json:"readings"`
}

var matchCmd = &cobra.Command{
	Use:   "match <readings.json>",
	Short: "Evaluate recorded readings against the stored models",
	Long: `Load the gesture file, score the readings in readings.json against each
named sensor's models and report the per-sensor scores and the overall
decision. Timestamps may be float seconds, Unix milliseconds or RFC 3339
strings; --rebase shifts them to start at zero.

Exits non-zero if the readings do not match.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var rf readingsFile
		if err := json.Unmarshal(data, &rf); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		timestamps, err := timestamp.ParseSeries(rf.Timestamps)
		if err != nil {
			return err
		}
		if matchFlags.rebase {
			timestamps = timestamp.Rebase(timestamps)
		}

		s := newStore()
		if err := s.Read(); err != nil {
			return err
		}

		e := match.NewEvaluator(match.WithWorkers(cfg.Evaluator.Workers))
		ok, results, err := e.Evaluate(cmd.Context(), s, timestamps, rf.Readings)
		if err != nil {
			return err
		}

		if matchFlags.json {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(struct {
				Match   bool `json:"match"`
				Results any  `json:"results"`
			}{ok, results}); err != nil {
				return err
			}
		} else {
			for _, label := range s.Keys() {
				r, found := results[label]
				if !found {
					continue
				}
				params, perr := s.GetParameters(label)
				if perr != nil {
					return perr
				}
				fmt.Printf("%s: score=%.4f threshold=%g matched=%t\n",
					label, r.Value, params.Threshold, r.Status)
			}
			fmt.Printf("match: %t\n", ok)
		}

		if !ok {
			return errNoMatch
		}
		return nil
	},
}

var errNoMatch = fmt.Errorf("readings did not match")

func init() {
	matchCmd.Flags().BoolVar(&matchFlags.rebase, "rebase", false, "shift timestamps to start at zero")
	matchCmd.Flags().BoolVar(&matchFlags.json, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(matchCmd)
}
