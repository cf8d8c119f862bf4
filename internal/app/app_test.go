package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraclab/oraccore/internal/app"
	"github.com/oraclab/oraccore/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:  config.ServerConfig{ListenAddr: "127.0.0.1:0", LogLevel: config.LogInfo},
		DataDir: t.TempDir(),
		Models:  config.ModelsConfig{BinaryPath: "/bin/true"},
		Cache:   config.CacheConfig{MaxSize: 50, ErrorCorrectionTimeoutSeconds: 30},
		Pipeline: config.PipelineConfig{
			WakeWords:               []string{"hey computer"},
			DispatchTimeoutSeconds:  5,
			InferenceTimeoutSeconds: 30,
			PerformanceLogCapacity:  100,
		},
		Supervisor: config.SupervisorConfig{
			MaxConcurrentStarts:     2,
			MaxConcurrentServes:     8,
			ReadinessTimeoutSeconds: 30,
			MaxReadinessFailures:    3,
			Host:                    "127.0.0.1",
			BasePort:                18100,
		},
		Heartbeat: config.HeartbeatConfig{ActiveThresholdSeconds: 35, IdleThresholdSeconds: 70},
	}
}

func TestNew_WiresAppWithoutError(t *testing.T) {
	a, err := app.New(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, a)
	defer a.Shutdown(context.Background())

	assert.NotNil(t, a.Handler())
}

func TestHandler_ServesHealthz(t *testing.T) {
	a, err := app.New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Shutdown(context.Background())

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestShutdown_IsIdempotent(t *testing.T) {
	a, err := app.New(context.Background(), testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, a.Shutdown(ctx))
	require.NoError(t, a.Shutdown(ctx))
}
