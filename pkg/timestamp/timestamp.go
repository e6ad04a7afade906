// Package timestamp normalizes the timestamp inputs accepted by the CLI
// and the match service onto the float64-seconds axis the evaluator scores
// on.
//
// Readings arrive with timestamps in whatever shape the producer had on
// hand: float seconds, integer Unix seconds or milliseconds, or RFC 3339
// strings. Parse folds all of them to seconds; Rebase shifts a series so
// it starts at zero, which is the axis gesture models are fitted on.
package timestamp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redwren/redwrenlib/errors"
)

// Unix-millisecond values are far above any plausible seconds value, so a
// magnitude check is enough to tell the two apart.
const millisCutoff = 1e12

// Seconds converts a time.Time to fractional Unix seconds.
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Parse converts one timestamp of flexible type to fractional seconds.
// Numeric values above 1e12 are taken as Unix milliseconds, anything else
// numeric as seconds; strings may be RFC 3339 or a numeric literal.
func Parse(input any) (float64, error) {
	switch v := input.(type) {
	case float64:
		return fromNumber(v), nil
	case float32:
		return fromNumber(float64(v)), nil
	case int:
		return fromNumber(float64(v)), nil
	case int64:
		return fromNumber(float64(v)), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, invalidTimestamp(string(v))
		}
		return fromNumber(f), nil
	case time.Time:
		return Seconds(v), nil
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return Seconds(t), nil
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return fromNumber(f), nil
		}
		return 0, invalidTimestamp(v)
	default:
		return 0, invalidTimestamp(fmt.Sprintf("%v (%T)", input, input))
	}
}

// ParseSeries converts a whole series with Parse, failing on the first bad
// element.
func ParseSeries(inputs []any) ([]float64, error) {
	out := make([]float64, len(inputs))
	for i, in := range inputs {
		f, err := Parse(in)
		if err != nil {
			return nil, errors.New(errors.KindInvalidParameter, "timestamp", "ParseSeries",
				fmt.Sprintf("element %d: %v", i, err))
		}
		out[i] = f
	}
	return out, nil
}

// ParseStrings converts a series of textual timestamps, as read from CSV
// columns or CLI arguments.
func ParseStrings(inputs []string) ([]float64, error) {
	out := make([]float64, len(inputs))
	for i, in := range inputs {
		f, err := Parse(in)
		if err != nil {
			return nil, errors.New(errors.KindInvalidParameter, "timestamp", "ParseStrings",
				fmt.Sprintf("element %d: %v", i, err))
		}
		out[i] = f
	}
	return out, nil
}

// Rebase shifts a series so the first element is zero, preserving the
// spacing between samples. Models are fitted on gesture-relative time, so
// absolute capture times must be rebased before evaluation. An empty
// series is returned as is.
func Rebase(series []float64) []float64 {
	if len(series) == 0 {
		return series
	}
	out := make([]float64, len(series))
	base := series[0]
	for i, v := range series {
		out[i] = v - base
	}
	return out
}

func fromNumber(v float64) float64 {
	if v > millisCutoff || v < -millisCutoff {
		return v / 1000
	}
	return v
}

func invalidTimestamp(s string) error {
	return errors.New(errors.KindInvalidParameter, "timestamp", "Parse",
		fmt.Sprintf("cannot interpret %q as a timestamp", s))
}
