package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapFormatsCallSite(t *testing.T) {
	cause := stderrors.New("disk gone")
	err := Wrap(cause, KindIO, "store", "Write", "commit container")

	assert.Equal(t, "store.Write: commit container failed: disk gone", err.Error())
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, IsIO(err))
	assert.False(t, IsCorruptContainer(err))
}

func TestWrapNilUsesSentinel(t *testing.T) {
	err := Wrap(nil, KindUnsupportedVersion, "container", "Read", "dispatch version")

	require.True(t, stderrors.Is(err, ErrUnsupportedVersion))
	assert.True(t, IsUnsupportedVersion(err))
}

func TestNewCarriesLocationTag(t *testing.T) {
	err := New(KindUnknownSensor, "match", "Evaluate", `sensor "gyro" not in store`)

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, "match", e.Component)
	assert.Equal(t, "Evaluate", e.Operation)
	assert.Equal(t, KindUnknownSensor, e.Kind)
}

func TestKindPreservedThroughWrappingChain(t *testing.T) {
	inner := New(KindCorruptContainer, "container", "decode", "weights missing")
	outer := fmt.Errorf("reading gesture file: %w", inner)

	kind, ok := KindOf(outer)
	require.True(t, ok)
	assert.Equal(t, KindCorruptContainer, kind)
	assert.True(t, IsCorruptContainer(outer))
}

func TestIsPredicatesMatchSentinels(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"corrupt", ErrCorruptContainer, IsCorruptContainer},
		{"version", ErrUnsupportedVersion, IsUnsupportedVersion},
		{"parameter", ErrInvalidParameter, IsInvalidParameter},
		{"empty", ErrNoModelsLoaded, IsNoModelsLoaded},
		{"lengths", ErrLengthMismatch, IsLengthMismatch},
		{"sensor", ErrUnknownSensor, IsUnknownSensor},
		{"io", ErrIO, IsIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, tt.check(stderrors.New("unrelated")))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "corrupt_container", KindCorruptContainer.String())
	assert.Equal(t, "unsupported_version", KindUnsupportedVersion.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
