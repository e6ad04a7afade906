package store

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/redwren/redwrenlib/container"
	"github.com/redwren/redwrenlib/errors"
	"github.com/redwren/redwrenlib/model"
	"github.com/redwren/redwrenlib/seqlog"
)

// Format selects the on-disk representation a store reads and writes. The
// values double as the spelling used in config files and CLI flags.
type Format string

const (
	// FormatContainer is the hierarchical container file (default).
	FormatContainer Format = "container"
	// FormatLog is the sequential append-only log.
	FormatLog Format = "log"
)

// Store is the in-memory model store bound to one gesture file. It owns its
// sensor entries exclusively; accessors hand out copies. A Store is not
// safe for concurrent writers; callers serialize writes to the same path
// externally, as with the underlying file.
type Store struct {
	path    string
	format  Format
	version container.Version
	globals model.Parameters
	models  map[string]*model.SensorModelEntry
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithFormat selects the on-disk format.
func WithFormat(f Format) Option {
	return func(s *Store) { s.format = f }
}

// WithVersion selects the container schema generation for writes. Reads
// always adopt the version found in the file.
func WithVersion(v container.Version) Option {
	return func(s *Store) { s.version = v }
}

// WithDefaults overrides the parameters stamped into new containers and
// assigned to sensors created by AppendReading.
func WithDefaults(p model.Parameters) Option {
	return func(s *Store) { s.globals = p }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates an empty store bound to the gesture file at path. Nothing is
// read or written until Create, Write or Read is called.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:    path,
		format:  FormatContainer,
		version: container.V2,
		globals: model.DefaultParameters(),
		models:  make(map[string]*model.SensorModelEntry),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file the store is bound to.
func (s *Store) Path() string { return s.path }

// Version returns the schema generation the store writes (or, after a Read,
// the generation found in the file).
func (s *Store) Version() container.Version { return s.version }

// Create initializes a fresh gesture file holding only the version header
// (plus, for V1 and the log format, the global parameter defaults),
// truncating any existing file at the store's path.
func (s *Store) Create() error {
	var err error
	switch s.format {
	case FormatLog:
		err = seqlog.Create(s.path, s.globals)
	default:
		err = container.Create(s.path, s.version, s.globals)
	}
	if err != nil {
		return err
	}
	s.logger.Debug("created gesture file",
		"path", s.path, "version", s.version.String())
	return nil
}

// AppendReading adds one or more component sets under label, creating the
// sensor entry with the store defaults when it does not exist yet. The
// mutation is purely in-memory; Write commits it. The entry's NComponents
// follows the most recently added set's component count.
func (s *Store) AppendReading(label string, sets ...*model.GaussianComponentSet) error {
	if label == "" {
		return errors.New(errors.KindInvalidParameter, "store", "AppendReading",
			"sensor label must not be empty")
	}
	if len(sets) == 0 {
		return errors.New(errors.KindInvalidParameter, "store", "AppendReading",
			fmt.Sprintf("no component sets supplied for sensor %q", label))
	}
	for i, set := range sets {
		if set == nil {
			return errors.New(errors.KindInvalidParameter, "store", "AppendReading",
				fmt.Sprintf("component set %d for sensor %q is nil", i, label))
		}
		if err := set.Validate(); err != nil {
			return err
		}
	}

	entry := s.models[label]
	if entry == nil {
		entry = &model.SensorModelEntry{Params: s.globals}
		s.models[label] = entry
	}
	for _, set := range sets {
		entry.Sets = append(entry.Sets, set.Clone())
	}
	entry.Params.NComponents = sets[len(sets)-1].NComponents
	return nil
}

// Write commits the in-memory store to disk. With override the file is
// recreated from scratch; otherwise new component sets merge into existing
// sensor groups and new groups are created for new labels. Writing an empty
// store is refused. Exclusive access to the target file is assumed for the
// duration of the call.
func (s *Store) Write(override bool) error {
	if len(s.models) == 0 {
		return errors.New(errors.KindNoModelsLoaded, "store", "Write",
			"in-memory store is empty, nothing to commit")
	}

	var err error
	switch s.format {
	case FormatLog:
		err = seqlog.Write(s.path, s.models, s.globals, override)
	default:
		err = container.Write(s.path, s.version, s.models, override, s.globals)
	}
	if err != nil {
		return err
	}
	s.logger.Debug("committed gesture file",
		"path", s.path, "sensors", len(s.models), "override", override)
	return nil
}

// Read loads the gesture file, replacing the in-memory store entirely. The
// load is all-or-nothing: on any failure the previous in-memory state is
// left untouched. For container files the schema version is dispatched from
// the file header; the store adopts it for subsequent writes.
func (s *Store) Read() error {
	var (
		models  map[string]*model.SensorModelEntry
		globals model.Parameters
		version = s.version
		err     error
	)
	switch s.format {
	case FormatLog:
		globals, models, err = seqlog.Read(s.path)
	default:
		version, globals, models, err = container.Read(s.path)
	}
	if err != nil {
		return err
	}

	s.models = models
	s.version = version
	if s.format == FormatLog || version == container.V1 {
		s.globals = globals
	}
	s.logger.Debug("loaded gesture file",
		"path", s.path, "version", s.version.String(), "sensors", len(models))
	return nil
}

// ParamOption selects one scalar parameter field to overwrite.
type ParamOption func(*model.Parameters)

// WithNComponents overwrites the intended component count.
func WithNComponents(n int) ParamOption {
	return func(p *model.Parameters) { p.NComponents = n }
}

// WithRandomState overwrites the stored fit seed.
func WithRandomState(seed int64) ParamOption {
	return func(p *model.Parameters) { p.RandomState = seed }
}

// WithThreshold overwrites the log-likelihood cutoff.
func WithThreshold(threshold float64) ParamOption {
	return func(p *model.Parameters) { p.Threshold = threshold }
}

// WithParameters overwrites the whole block at once.
func WithParameters(params model.Parameters) ParamOption {
	return func(p *model.Parameters) { *p = params }
}

// SetParameters overwrites only the supplied parameter fields of a sensor
// entry. Validation happens against the fully assembled block before any
// mutation, so a failed call changes nothing.
func (s *Store) SetParameters(label string, opts ...ParamOption) error {
	entry := s.models[label]
	if entry == nil {
		return errors.New(errors.KindUnknownSensor, "store", "SetParameters",
			fmt.Sprintf("sensor %q not in store", label))
	}

	candidate := entry.Params
	for _, opt := range opts {
		opt(&candidate)
	}
	if err := candidate.Validate(); err != nil {
		return err
	}
	entry.Params = candidate
	return nil
}

// GetParameters returns a sensor's parameter block.
func (s *Store) GetParameters(label string) (model.Parameters, error) {
	entry := s.models[label]
	if entry == nil {
		return model.Parameters{}, errors.New(errors.KindUnknownSensor, "store", "GetParameters",
			fmt.Sprintf("sensor %q not in store", label))
	}
	return entry.Params, nil
}

// Keys returns the sensor labels in the store, sorted.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.models))
	for k := range s.models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GestureData returns a deep copy of every sensor entry. Copies keep the
// store's entries from being aliased and mutated behind its back.
func (s *Store) GestureData() map[string]*model.SensorModelEntry {
	out := make(map[string]*model.SensorModelEntry, len(s.models))
	for label, entry := range s.models {
		out[label] = entry.Clone()
	}
	return out
}
