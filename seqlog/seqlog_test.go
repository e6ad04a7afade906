package seqlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redwren/redwrenlib/errors"
	"github.com/redwren/redwrenlib/model"
)

func testSet(t *testing.T, marker float64) *model.GaussianComponentSet {
	t.Helper()
	set, err := model.NewComponentSet(
		1,
		[]float64{1.0},
		[][]float64{{marker, -marker}},
		[][][]float64{{{1, 0}, {0, 1}}},
		[][][]float64{{{1, 0}, {0, 1}}},
	)
	require.NoError(t, err)
	return set
}

func tempLog(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "models.gesturelog")
}

func TestCreateWritesHeaderOnly(t *testing.T) {
	path := tempLog(t)
	params := model.Parameters{NComponents: 4, RandomState: 9, Threshold: -3}
	require.NoError(t, Create(path, params))

	got, models, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, params, got)
	assert.Empty(t, models)
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := tempLog(t)
	params := model.DefaultParameters()
	stores := map[string]*model.SensorModelEntry{
		"accel": {Sets: []*model.GaussianComponentSet{testSet(t, 1), testSet(t, 2)}},
		"gyro":  {Sets: []*model.GaussianComponentSet{testSet(t, 3)}},
	}
	require.NoError(t, Write(path, stores, params, true))

	gotParams, got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, params, gotParams)
	require.Len(t, got, 2)
	require.Len(t, got["accel"].Sets, 2)
	assert.InDelta(t, 1.0, got["accel"].Sets[0].Means.At(0, 0), 1e-9)
	assert.InDelta(t, 2.0, got["accel"].Sets[1].Means.At(0, 0), 1e-9)
	// Globals fold into every reconstructed entry.
	assert.Equal(t, params, got["accel"].Params)
	assert.Equal(t, params, got["gyro"].Params)
}

func TestAppendAccumulatesRecordsPerLabel(t *testing.T) {
	path := tempLog(t)
	params := model.DefaultParameters()

	first := map[string]*model.SensorModelEntry{
		"accel": {Sets: []*model.GaussianComponentSet{testSet(t, 1), testSet(t, 2)}},
	}
	require.NoError(t, Write(path, first, params, true))

	second := map[string]*model.SensorModelEntry{
		"accel": {Sets: []*model.GaussianComponentSet{testSet(t, 3)}},
	}
	require.NoError(t, Write(path, second, params, false))

	_, got, err := Read(path)
	require.NoError(t, err)
	require.Len(t, got["accel"].Sets, 3)
	for i, marker := range []float64{1, 2, 3} {
		assert.InDelta(t, marker, got["accel"].Sets[i].Means.At(0, 0), 1e-9, "record %d", i)
	}
}

func TestAppendToMissingLogWritesHeaderFirst(t *testing.T) {
	path := tempLog(t)
	params := model.Parameters{NComponents: 2, RandomState: 3, Threshold: -1.5}
	stores := map[string]*model.SensorModelEntry{
		"accel": {Sets: []*model.GaussianComponentSet{testSet(t, 1)}},
	}
	require.NoError(t, Write(path, stores, params, false))

	gotParams, got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, params, gotParams)
	assert.Len(t, got["accel"].Sets, 1)
}

func TestReadTruncatedFrameIsCorrupt(t *testing.T) {
	path := tempLog(t)
	stores := map[string]*model.SensorModelEntry{
		"accel": {Sets: []*model.GaussianComponentSet{testSet(t, 1)}},
	}
	require.NoError(t, Write(path, stores, model.DefaultParameters(), true))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw[:len(raw)-5], 0o600))

	_, _, err = Read(path)
	require.Error(t, err)
	assert.True(t, errors.IsCorruptContainer(err))
}

func TestReadChecksumMismatchIsCorrupt(t *testing.T) {
	path := tempLog(t)
	stores := map[string]*model.SensorModelEntry{
		"accel": {Sets: []*model.GaussianComponentSet{testSet(t, 1)}},
	}
	require.NoError(t, Write(path, stores, model.DefaultParameters(), true))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, _, err = Read(path)
	require.Error(t, err)
	assert.True(t, errors.IsCorruptContainer(err))
}

func TestReadEmptyFileIsCorrupt(t *testing.T) {
	path := tempLog(t)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, _, err := Read(path)
	require.Error(t, err)
	assert.True(t, errors.IsCorruptContainer(err))
}

func TestReadMissingFileIsIO(t *testing.T) {
	_, _, err := Read(tempLog(t))
	require.Error(t, err)
	assert.True(t, errors.IsIO(err))
}
