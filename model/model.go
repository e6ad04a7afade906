package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/redwren/redwrenlib/errors"
)

// SampleDim is the dimensionality of evaluated samples: each row pairs a
// timestamp with a reading value.
const SampleDim = 2

// weightSumTolerance bounds the floating drift allowed when checking that
// component priors sum to 1.
const weightSumTolerance = 1e-9

// Parameters holds the per-sensor scalar fit parameters. NComponents is the
// intended component count for new fits, RandomState the seed the fit was
// produced with (kept for reproducibility, never consulted by the evaluator)
// and Threshold the log-likelihood cutoff a score must exceed.
type Parameters struct {
	NComponents int     `json:"n_components"  yaml:"n_components"  msgpack:"n_components"`
	RandomState int64   `json:"random_state"  yaml:"random_state"  msgpack:"random_state"`
	Threshold   float64 `json:"threshold"     yaml:"threshold"     msgpack:"threshold"`
}

// DefaultParameters returns the parameters stamped into freshly created
// containers: 42 components, seed 2, threshold -10.5.
func DefaultParameters() Parameters {
	return Parameters{
		NComponents: 42,
		RandomState: 2,
		Threshold:   -10.5,
	}
}

// Validate checks the parameter preconditions: NComponents must be positive
// and RandomState above 1. Threshold is unconstrained (negative by
// convention, but any real is accepted).
func (p Parameters) Validate() error {
	if p.NComponents <= 0 {
		return errors.New(errors.KindInvalidParameter, "model", "Validate",
			fmt.Sprintf("n_components must be above 0, got %d", p.NComponents))
	}
	if p.RandomState <= 1 {
		return errors.New(errors.KindInvalidParameter, "model", "Validate",
			fmt.Sprintf("random_state must be above 1, got %d", p.RandomState))
	}
	return nil
}

// GaussianComponentSet is one fitted mixture for one sensor: K component
// priors, a K×D mean matrix, K D×D covariance matrices and their
// precision-Cholesky factors. The factors are stored rather than re-derived
// on load; inverting near-singular covariances is the fragile step and it
// was already paid for at fit time.
type GaussianComponentSet struct {
	Weights           []float64
	Means             *mat.Dense
	Covariances       []*mat.SymDense
	PrecisionCholesky []*mat.TriDense
	NComponents       int
}

// NewComponentSet builds a component set from raw row-major parameter arrays
// as they appear on disk, validating conformance as it goes. nComponents must
// equal len(weights); means is K×D; covariances and precisionCholesky are K
// matrices of D×D each, the latter lower-triangular.
func NewComponentSet(
	nComponents int,
	weights []float64,
	means [][]float64,
	covariances [][][]float64,
	precisionCholesky [][][]float64,
) (*GaussianComponentSet, error) {
	k := len(weights)
	if k == 0 {
		return nil, errors.New(errors.KindInvalidParameter, "model", "NewComponentSet",
			"weights must not be empty")
	}
	if nComponents != k {
		return nil, errors.New(errors.KindInvalidParameter, "model", "NewComponentSet",
			fmt.Sprintf("n_components %d does not match weights length %d", nComponents, k))
	}
	if len(means) != k {
		return nil, errors.New(errors.KindInvalidParameter, "model", "NewComponentSet",
			fmt.Sprintf("means holds %d rows, want %d", len(means), k))
	}
	d := len(means[0])
	if d == 0 {
		return nil, errors.New(errors.KindInvalidParameter, "model", "NewComponentSet",
			"means rows must not be empty")
	}

	flat := make([]float64, 0, k*d)
	for i, row := range means {
		if len(row) != d {
			return nil, errors.New(errors.KindInvalidParameter, "model", "NewComponentSet",
				fmt.Sprintf("means row %d has %d columns, want %d", i, len(row), d))
		}
		flat = append(flat, row...)
	}

	covs, err := symMatrices("covariances", covariances, k, d)
	if err != nil {
		return nil, err
	}
	chols, err := triMatrices("precision_cholesky", precisionCholesky, k, d)
	if err != nil {
		return nil, err
	}

	set := &GaussianComponentSet{
		Weights:           append([]float64(nil), weights...),
		Means:             mat.NewDense(k, d, flat),
		Covariances:       covs,
		PrecisionCholesky: chols,
		NComponents:       k,
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

func symMatrices(field string, src [][][]float64, k, d int) ([]*mat.SymDense, error) {
	if len(src) != k {
		return nil, errors.New(errors.KindInvalidParameter, "model", "NewComponentSet",
			fmt.Sprintf("%s holds %d matrices, want %d", field, len(src), k))
	}
	out := make([]*mat.SymDense, k)
	for i, m := range src {
		flat, err := flatten(field, i, m, d)
		if err != nil {
			return nil, err
		}
		out[i] = mat.NewSymDense(d, flat)
	}
	return out, nil
}

func triMatrices(field string, src [][][]float64, k, d int) ([]*mat.TriDense, error) {
	if len(src) != k {
		return nil, errors.New(errors.KindInvalidParameter, "model", "NewComponentSet",
			fmt.Sprintf("%s holds %d matrices, want %d", field, len(src), k))
	}
	out := make([]*mat.TriDense, k)
	for i, m := range src {
		flat, err := flatten(field, i, m, d)
		if err != nil {
			return nil, err
		}
		tri := mat.NewTriDense(d, mat.Lower, nil)
		for r := 0; r < d; r++ {
			for c := 0; c <= r; c++ {
				tri.SetTri(r, c, flat[r*d+c])
			}
		}
		out[i] = tri
	}
	return out, nil
}

func flatten(field string, idx int, m [][]float64, d int) ([]float64, error) {
	if len(m) != d {
		return nil, errors.New(errors.KindInvalidParameter, "model", "NewComponentSet",
			fmt.Sprintf("%s[%d] has %d rows, want %d", field, idx, len(m), d))
	}
	flat := make([]float64, 0, d*d)
	for r, row := range m {
		if len(row) != d {
			return nil, errors.New(errors.KindInvalidParameter, "model", "NewComponentSet",
				fmt.Sprintf("%s[%d] row %d has %d columns, want %d", field, idx, r, len(row), d))
		}
		flat = append(flat, row...)
	}
	return flat, nil
}

// Dim returns the sample dimensionality D of the set.
func (s *GaussianComponentSet) Dim() int {
	_, d := s.Means.Dims()
	return d
}

// Validate enforces the set invariants: K>0, all matrices conformant with K
// and D, weights non-negative and summing to 1 within tolerance.
func (s *GaussianComponentSet) Validate() error {
	k := len(s.Weights)
	if k == 0 || s.NComponents != k {
		return errors.New(errors.KindInvalidParameter, "model", "Validate",
			fmt.Sprintf("n_components %d does not match weights length %d", s.NComponents, k))
	}

	sum := 0.0
	for i, w := range s.Weights {
		if w < 0 {
			return errors.New(errors.KindInvalidParameter, "model", "Validate",
				fmt.Sprintf("weights[%d] is negative: %g", i, w))
		}
		sum += w
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return errors.New(errors.KindInvalidParameter, "model", "Validate",
			fmt.Sprintf("weights sum to %g, want 1", sum))
	}

	rows, d := s.Means.Dims()
	if rows != k || d == 0 {
		return errors.New(errors.KindInvalidParameter, "model", "Validate",
			fmt.Sprintf("means is %dx%d, want %dxD", rows, d, k))
	}
	if len(s.Covariances) != k {
		return errors.New(errors.KindInvalidParameter, "model", "Validate",
			fmt.Sprintf("covariances holds %d matrices, want %d", len(s.Covariances), k))
	}
	if len(s.PrecisionCholesky) != k {
		return errors.New(errors.KindInvalidParameter, "model", "Validate",
			fmt.Sprintf("precision_cholesky holds %d matrices, want %d", len(s.PrecisionCholesky), k))
	}
	for i := 0; i < k; i++ {
		if n := s.Covariances[i].SymmetricDim(); n != d {
			return errors.New(errors.KindInvalidParameter, "model", "Validate",
				fmt.Sprintf("covariances[%d] is %dx%d, want %dx%d", i, n, n, d, d))
		}
		if n, _ := s.PrecisionCholesky[i].Triangle(); n != d {
			return errors.New(errors.KindInvalidParameter, "model", "Validate",
				fmt.Sprintf("precision_cholesky[%d] is %dx%d, want %dx%d", i, n, n, d, d))
		}
	}
	return nil
}

// MeansRows returns the mean matrix as row slices, the layout used on disk.
func (s *GaussianComponentSet) MeansRows() [][]float64 {
	k, _ := s.Means.Dims()
	rows := make([][]float64, k)
	for i := 0; i < k; i++ {
		rows[i] = append([]float64(nil), s.Means.RawRowView(i)...)
	}
	return rows
}

// CovarianceRows returns the covariance matrices as nested row slices.
func (s *GaussianComponentSet) CovarianceRows() [][][]float64 {
	return matrixRows(len(s.Covariances), s.Dim(), func(i int) mat.Matrix { return s.Covariances[i] })
}

// PrecisionCholeskyRows returns the precision-Cholesky factors as nested row
// slices, zero-filled above the diagonal.
func (s *GaussianComponentSet) PrecisionCholeskyRows() [][][]float64 {
	return matrixRows(len(s.PrecisionCholesky), s.Dim(), func(i int) mat.Matrix { return s.PrecisionCholesky[i] })
}

func matrixRows(k, d int, at func(int) mat.Matrix) [][][]float64 {
	out := make([][][]float64, k)
	for i := 0; i < k; i++ {
		m := at(i)
		rows := make([][]float64, d)
		for r := 0; r < d; r++ {
			row := make([]float64, d)
			for c := 0; c < d; c++ {
				row[c] = m.At(r, c)
			}
			rows[r] = row
		}
		out[i] = rows
	}
	return out
}

// Clone returns a deep copy. Component sets are owned exclusively by their
// store instance; cloning at the boundary keeps callers from aliasing the
// matrices backing a loaded store.
func (s *GaussianComponentSet) Clone() *GaussianComponentSet {
	cp, err := NewComponentSet(s.NComponents, s.Weights, s.MeansRows(),
		s.CovarianceRows(), s.PrecisionCholeskyRows())
	if err != nil {
		// A validated set always round-trips through its own rows.
		panic(fmt.Sprintf("model: clone of validated component set failed: %v", err))
	}
	return cp
}

// SensorModelEntry is the per-sensor record: the ordered component sets
// fitted for that sensor plus its scalar parameters.
type SensorModelEntry struct {
	Sets   []*GaussianComponentSet
	Params Parameters
}

// Clone returns a deep copy of the entry.
func (e *SensorModelEntry) Clone() *SensorModelEntry {
	sets := make([]*GaussianComponentSet, len(e.Sets))
	for i, s := range e.Sets {
		sets[i] = s.Clone()
	}
	return &SensorModelEntry{Sets: sets, Params: e.Params}
}

// MatchResult reports one sensor's best average log-likelihood and whether
// it cleared that sensor's threshold.
type MatchResult struct {
	Value  float64 `json:"value"`
	Status bool    `json:"status"`
}
