package match

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/redwren/redwrenlib/errors"
	"github.com/redwren/redwrenlib/model"
)

// ModelSource supplies the sensor models to evaluate against. *store.Store
// satisfies it; tests can hand in a plain map-backed source.
type ModelSource interface {
	GestureData() map[string]*model.SensorModelEntry
}

// Evaluator scores batches of timestamped readings against stored mixture
// models and turns the scores into per-sensor and overall match decisions.
// Scoring is a pure function of (samples, component set); evaluations of
// distinct inputs may run concurrently on one Evaluator.
type Evaluator struct {
	workers int
	logger  *slog.Logger
	metrics *metrics
}

// metrics follows the dual-tracking pattern: Prometheus is opt-in via
// WithRegisterer, the evaluator works identically without it.
type metrics struct {
	evaluations *prometheus.CounterVec
	duration    prometheus.Histogram
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithWorkers bounds the number of sensors scored concurrently.
func WithWorkers(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// WithRegisterer enables Prometheus metrics, registered with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Evaluator) {
		m := &metrics{
			evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "gesture_evaluations_total",
				Help: "Match evaluations by outcome",
			}, []string{"outcome"}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "gesture_evaluation_duration_seconds",
				Help:    "Time spent evaluating one batch of readings",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			}),
		}
		reg.MustRegister(m.evaluations, m.duration)
		e.metrics = m
	}
}

// NewEvaluator creates an evaluator. By default it scores sensors on up to
// GOMAXPROCS goroutines and logs through slog.Default.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate checks whether the readings trigger a gesture. timestamps and
// each reading series pair up row-wise into 2-dimensional samples; every
// sensor named in readings is scored against its stored component sets and
// the best average log-likelihood is compared to that sensor's threshold.
// The overall decision is the conjunction of every per-sensor status,
// evaluated eagerly so the full breakdown is always returned with it.
//
// On any precondition failure the result set is empty: no partial results
// are ever returned.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	src ModelSource,
	timestamps []float64,
	readings map[string][]float64,
) (bool, map[string]model.MatchResult, error) {
	start := time.Now()
	results := make(map[string]model.MatchResult)

	if err := ctx.Err(); err != nil {
		return false, results, errors.WrapIO(err, "match", "Evaluate", "check context")
	}

	data := src.GestureData()
	sensors, err := e.validate(data, timestamps, readings)
	if err != nil {
		e.observe("error", start)
		return false, results, err
	}

	type scored struct {
		label  string
		result model.MatchResult
	}
	out := make([]scored, len(sensors))

	g := &errgroup.Group{}
	g.SetLimit(e.workers)
	for i, label := range sensors {
		g.Go(func() error {
			entry := data[label]
			samples := sampleMatrix(timestamps, readings[label])

			best := math.Inf(-1)
			for _, set := range entry.Sets {
				if score := scoreSet(samples, set); score > best {
					best = score
				}
			}
			out[i] = scored{
				label: label,
				result: model.MatchResult{
					Value:  best,
					Status: best > entry.Params.Threshold,
				},
			}
			return nil
		})
	}
	// Scoring goroutines are pure and never fail; Wait only joins them.
	_ = g.Wait()

	overall := true
	for _, s := range out {
		results[s.label] = s.result
		overall = overall && s.result.Status
	}

	outcome := "no_match"
	if overall {
		outcome = "match"
	}
	e.observe(outcome, start)
	e.logger.Debug("evaluated readings",
		"sensors", len(sensors), "samples", len(timestamps), "match", overall)
	return overall, results, nil
}

// validate enforces the evaluation preconditions and returns the sensor
// labels to score, sorted for deterministic scheduling. It completes before
// any scoring starts so a failure can never yield partial results.
func (e *Evaluator) validate(
	data map[string]*model.SensorModelEntry,
	timestamps []float64,
	readings map[string][]float64,
) ([]string, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.KindNoModelsLoaded, "match", "Evaluate",
			"models aren't generated, read a gesture file first")
	}
	if len(timestamps) == 0 {
		return nil, errors.New(errors.KindInvalidParameter, "match", "Evaluate",
			"readings must contain at least one sample")
	}

	sensors := make([]string, 0, len(readings))
	for label := range readings {
		sensors = append(sensors, label)
	}
	sort.Strings(sensors)

	for _, label := range sensors {
		if len(readings[label]) != len(timestamps) {
			return nil, errors.New(errors.KindLengthMismatch, "match", "Evaluate",
				fmt.Sprintf("sensor %q has %d readings for %d timestamps",
					label, len(readings[label]), len(timestamps)))
		}
		entry, ok := data[label]
		if !ok {
			return nil, errors.New(errors.KindUnknownSensor, "match", "Evaluate",
				fmt.Sprintf("sensor %q not in store", label))
		}
		if len(entry.Sets) == 0 {
			return nil, errors.New(errors.KindNoModelsLoaded, "match", "Evaluate",
				fmt.Sprintf("sensor %q has no component sets", label))
		}
		for i, set := range entry.Sets {
			if set.Dim() != model.SampleDim {
				return nil, errors.New(errors.KindInvalidParameter, "match", "Evaluate",
					fmt.Sprintf("sensor %q set %d has dimensionality %d, want %d",
						label, i, set.Dim(), model.SampleDim))
			}
		}
	}
	return sensors, nil
}

func (e *Evaluator) observe(outcome string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.evaluations.WithLabelValues(outcome).Inc()
	e.metrics.duration.Observe(time.Since(start).Seconds())
}

// sampleMatrix pairs each timestamp with its reading value: row i is
// (timestamp_i, reading_i).
func sampleMatrix(timestamps, values []float64) *mat.Dense {
	n := len(timestamps)
	data := make([]float64, 0, n*model.SampleDim)
	for i := 0; i < n; i++ {
		data = append(data, timestamps[i], values[i])
	}
	return mat.NewDense(n, model.SampleDim, data)
}

// scoreSet computes the average mixture log-likelihood of the samples under
// one component set.
//
// For sample x and component k with weight w_k, mean mu_k and lower
// precision-Cholesky factor L_k (L_k L_k' = Sigma_k^-1), the component log
// density is
//
//	logN_k(x) = -D/2 ln(2 pi) + sum_d ln L_k[d,d] - 1/2 |L_k' (x - mu_k)|^2
//
// The diagonal of the Cholesky factor supplies half the precision's
// log-determinant and the triangular transform supplies the Mahalanobis
// term, so the covariance is never inverted and near-singular fits stay
// numerically stable. The per-sample mixture log-likelihood is the
// log-sum-exp over ln(w_k) + logN_k(x), with the usual max subtraction, and
// the set's score is the mean over samples.
func scoreSet(samples *mat.Dense, set *model.GaussianComponentSet) float64 {
	n, d := samples.Dims()
	k := set.NComponents

	halfDLog2Pi := 0.5 * float64(d) * math.Log(2*math.Pi)

	// Per-component constants: ln(w_k) + sum_d ln L_k[d,d] - D/2 ln(2 pi).
	constant := make([]float64, k)
	for c := 0; c < k; c++ {
		logDet := 0.0
		for j := 0; j < d; j++ {
			logDet += math.Log(set.PrecisionCholesky[c].At(j, j))
		}
		constant[c] = math.Log(set.Weights[c]) + logDet - halfDLog2Pi
	}

	diff := mat.NewVecDense(d, nil)
	transformed := mat.NewVecDense(d, nil)
	perComponent := make([]float64, k)
	sampleLL := make([]float64, n)

	for i := 0; i < n; i++ {
		x := samples.RawRowView(i)
		for c := 0; c < k; c++ {
			mu := set.Means.RawRowView(c)
			for j := 0; j < d; j++ {
				diff.SetVec(j, x[j]-mu[j])
			}
			transformed.MulVec(set.PrecisionCholesky[c].T(), diff)
			quad := mat.Dot(transformed, transformed)
			perComponent[c] = constant[c] - 0.5*quad
		}
		sampleLL[i] = floats.LogSumExp(perComponent)
	}
	return stat.Mean(sampleLL, nil)
}
