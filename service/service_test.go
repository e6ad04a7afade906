package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redwren/redwrenlib/config"
	"github.com/redwren/redwrenlib/model"
	"github.com/redwren/redwrenlib/store"
)

func testConfig() config.ServiceConfig {
	return config.ServiceConfig{
		URL:     "nats://127.0.0.1:4222",
		Subject: "gesture.match",
		Queue:   "gesture-match",
		Workers: 2,
	}
}

func loadedStore(t *testing.T) *store.Store {
	t.Helper()
	set, err := model.NewComponentSet(
		1,
		[]float64{1.0},
		[][]float64{{0, 0}},
		[][][]float64{{{1, 0}, {0, 1}}},
		[][][]float64{{{1, 0}, {0, 1}}},
	)
	require.NoError(t, err)

	s := store.New(filepath.Join(t.TempDir(), "models.gesture"))
	require.NoError(t, s.AppendReading("accel", set))
	require.NoError(t, s.SetParameters("accel", store.WithThreshold(-5.0)))
	return s
}

func TestEvaluateRequestMatch(t *testing.T) {
	svc := New(testConfig(), loadedStore(t))

	resp := svc.evaluate(context.Background(), MatchRequest{
		RequestID:  "req-1",
		Timestamps: []any{0.0, 0.0},
		Readings:   map[string][]float64{"accel": {0, 0}},
	})

	assert.Equal(t, "req-1", resp.RequestID)
	assert.Empty(t, resp.Error)
	assert.True(t, resp.Match)
	require.Contains(t, resp.Results, "accel")
	assert.True(t, resp.Results["accel"].Status)
}

func TestEvaluateRequestGeneratesID(t *testing.T) {
	svc := New(testConfig(), loadedStore(t))

	resp := svc.evaluate(context.Background(), MatchRequest{
		Timestamps: []any{0.0},
		Readings:   map[string][]float64{"accel": {0}},
	})
	assert.NotEmpty(t, resp.RequestID)
}

func TestEvaluateRequestRebasesTimestamps(t *testing.T) {
	svc := New(testConfig(), loadedStore(t))

	// Absolute capture times; without rebasing the timestamp coordinate
	// would be millions of seconds from the fitted mean.
	resp := svc.evaluate(context.Background(), MatchRequest{
		Timestamps: []any{"2023-01-01T12:00:00Z", "2023-01-01T12:00:00Z"},
		Readings:   map[string][]float64{"accel": {0, 0}},
		Rebase:     true,
	})
	require.Empty(t, resp.Error)
	assert.True(t, resp.Match)
}

func TestEvaluateRequestErrorsFoldIntoResponse(t *testing.T) {
	svc := New(testConfig(), loadedStore(t))

	tests := []struct {
		name string
		req  MatchRequest
	}{
		{
			name: "bad timestamp",
			req: MatchRequest{
				Timestamps: []any{"not a time"},
				Readings:   map[string][]float64{"accel": {0}},
			},
		},
		{
			name: "length mismatch",
			req: MatchRequest{
				Timestamps: []any{0.0, 1.0},
				Readings:   map[string][]float64{"accel": {0}},
			},
		},
		{
			name: "unknown sensor",
			req: MatchRequest{
				Timestamps: []any{0.0},
				Readings:   map[string][]float64{"ghost": {0}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := svc.evaluate(context.Background(), tt.req)
			assert.NotEmpty(t, resp.Error)
			assert.False(t, resp.Match)
			assert.Empty(t, resp.Results)
		})
	}
}

func TestServiceNotStartedByDefault(t *testing.T) {
	svc := New(testConfig(), loadedStore(t))
	assert.False(t, svc.IsStarted())
	assert.NoError(t, svc.Stop(0), "stopping an unstarted service is a no-op")
}
