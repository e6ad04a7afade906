package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startNATS runs a NATS server in a container and returns its client URL.
func startNATS(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.11.7-alpine",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForListeningPort("4222/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)
	return fmt.Sprintf("nats://%s:%s", host, port.Port())
}

func TestServiceRequestReplyIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}

	url := startNATS(t)

	st := loadedStore(t)
	require.NoError(t, st.Write(true))

	cfg := testConfig()
	cfg.URL = url
	svc := New(cfg, st)
	require.NoError(t, svc.Start(context.Background()))
	defer func() { require.NoError(t, svc.Stop(5*time.Second)) }()
	require.True(t, svc.IsStarted())

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	t.Run("match", func(t *testing.T) {
		payload, err := json.Marshal(MatchRequest{
			RequestID:  "it-1",
			Timestamps: []any{0.0, 0.0},
			Readings:   map[string][]float64{"accel": {0, 0}},
		})
		require.NoError(t, err)

		msg, err := nc.Request(cfg.Subject, payload, 5*time.Second)
		require.NoError(t, err)

		var resp MatchResponse
		require.NoError(t, json.Unmarshal(msg.Data, &resp))
		assert.Equal(t, "it-1", resp.RequestID)
		assert.Empty(t, resp.Error)
		assert.True(t, resp.Match)
		assert.True(t, resp.Results["accel"].Status)
	})

	t.Run("no match far from mean", func(t *testing.T) {
		payload, err := json.Marshal(MatchRequest{
			Timestamps: []any{0.0},
			Readings:   map[string][]float64{"accel": {250}},
		})
		require.NoError(t, err)

		msg, err := nc.Request(cfg.Subject, payload, 5*time.Second)
		require.NoError(t, err)

		var resp MatchResponse
		require.NoError(t, json.Unmarshal(msg.Data, &resp))
		assert.Empty(t, resp.Error)
		assert.False(t, resp.Match)
	})

	t.Run("malformed payload still answered", func(t *testing.T) {
		msg, err := nc.Request(cfg.Subject, []byte("{not json"), 5*time.Second)
		require.NoError(t, err)

		var resp MatchResponse
		require.NoError(t, json.Unmarshal(msg.Data, &resp))
		assert.NotEmpty(t, resp.Error)
	})

	assert.GreaterOrEqual(t, svc.Stats().Processed, int64(3))
}
