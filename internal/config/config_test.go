package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/mapgen"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/testutil"
)

func reset() {
	mu.Lock()
	cfg = nil
	v = nil
	mu.Unlock()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestInit(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, configFile, `
world:
  layout: open
  obstacles: 8
rewards:
  capture: 50
agent:
  gamma: 0.9
  batch_size: 32
simulation:
  tick_delay: 25ms
  monitor:
    stall_ticks: 100
server:
  grpc:
    port: 9000
  http:
    stream_interval: 1s
`)
	reset()

	require.NoError(t, Init(configFile))

	c := Get()
	assert.Equal(t, mapgen.LayoutOpen, c.World.Layout)
	assert.Equal(t, 8, c.World.Obstacles)
	assert.Equal(t, 10, c.World.Rows)
	assert.Equal(t, 20, c.World.Cols)
	assert.Equal(t, 50.0, c.Rewards.Capture)
	assert.Equal(t, -1.0, c.Rewards.InvalidMove)
	assert.Equal(t, 0.9, c.Agent.Gamma)
	assert.Equal(t, 32, c.Agent.BatchSize)
	assert.Equal(t, 10000, c.Agent.BufferCapacity)
	assert.Equal(t, 25*time.Millisecond, c.Simulation.TickDelay)
	assert.Equal(t, int64(100), c.Simulation.Monitor.StallTicks)
	assert.Equal(t, 30*time.Second, c.Simulation.Monitor.CheckInterval)
	assert.Equal(t, 9000, c.Server.GRPC.Port)
	assert.Equal(t, time.Second, c.Server.HTTP.StreamInterval)
	assert.Equal(t, configFile, ConfigFilePath())
}

func TestInitWithDefaults(t *testing.T) {
	reset()

	require.NoError(t, Init("/non/existent/path/config.yaml"))

	c := Get()
	assert.Equal(t, mapgen.LayoutWalled, c.World.Layout)
	assert.Equal(t, 0.99, c.Agent.Gamma)
	assert.Equal(t, 64, c.Agent.BatchSize)
	assert.Equal(t, 0.995, c.Agent.EpsilonDecay)
	assert.Equal(t, 0.001, c.Estimator.LearningRate)
	assert.Equal(t, 200, c.Simulation.MaxEpisodeSteps)
	assert.Equal(t, 50051, c.Server.GRPC.Port)
	assert.Equal(t, 5*time.Second, c.Server.GRPC.GracefulShutdownDelay)
	assert.Equal(t, "info", c.Logging.Level)

	gc := c.GameConfig()
	assert.Equal(t, c.World, gc.Map)
	assert.Equal(t, c.Rewards, gc.Rewards)
}

func TestInitRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown layout", "world:\n  layout: maze\n", "config validation failed"},
		{"sealed walled arena", "world:\n  barrier_half_height: 4\n", "config validation failed"},
		{"gamma above one", "agent:\n  gamma: 1.5\n", "config validation failed"},
		{"buffer smaller than batch", "agent:\n  buffer_capacity: 8\n", "config validation failed"},
		{"positive invalid move reward", "rewards:\n  invalid_move: 1\n", "config validation failed"},
		{"zero learning rate", "estimator:\n  learning_rate: 0\n", "config validation failed"},
		{"negative tick delay", "simulation:\n  tick_delay: -1s\n", "config validation failed"},
		{"port out of range", "server:\n  http:\n    port: 70000\n", "config validation failed"},
		{"unknown log format", "logging:\n  format: xml\n", "config validation failed"},
		{"malformed yaml", "agent:\n  gamma: 0.5\n  batch_size: [oops\n", "error reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, configFile, tt.content)
			reset()

			err := Init(configFile)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitUnreadableFile(t *testing.T) {
	// A directory where the file should be is not a missing file
	configDir := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.Mkdir(configDir, 0755))
	reset()
	err := Init(configDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("CTF_AGENT_GAMMA", "0.5")
	t.Setenv("CTF_SERVER_HTTP_PORT", "9191")
	t.Setenv("CTF_SIMULATION_TICK_DELAY", "10ms")
	t.Setenv("CTF_WORLD_LAYOUT", "random")
	reset()

	require.NoError(t, Init(filepath.Join(t.TempDir(), "missing.yaml")))

	c := Get()
	assert.Equal(t, 0.5, c.Agent.Gamma)
	assert.Equal(t, 9191, c.Server.HTTP.Port)
	assert.Equal(t, 10*time.Millisecond, c.Simulation.TickDelay)
	assert.Equal(t, mapgen.LayoutRandom, c.World.Layout)
}

func TestSet(t *testing.T) {
	reset()
	require.NoError(t, Init(filepath.Join(t.TempDir(), "missing.yaml")))

	require.NoError(t, Set("simulation.max_episodes", 25))
	require.NoError(t, Set("simulation.seed", int64(7)))
	c := Get()
	assert.Equal(t, 25, c.Simulation.MaxEpisodes)
	assert.Equal(t, int64(7), c.Simulation.Seed)

	err := Set("agent.epsilon_decay", 0)
	require.Error(t, err)
	assert.Equal(t, 0.995, Get().Agent.EpsilonDecay, "invalid override leaves the config unchanged")
}

func TestSetBeforeInit(t *testing.T) {
	reset()
	assert.Error(t, Set("agent.gamma", 0.5))
	assert.Error(t, LoadEnvironmentConfig("prod"))
	assert.Equal(t, "", ConfigFilePath())
}

func TestLoadEnvironmentConfig(t *testing.T) {
	tmpDir := t.TempDir()
	baseConfig := filepath.Join(tmpDir, "config.yaml")
	writeFile(t, baseConfig, `
agent:
  gamma: 0.95
server:
  grpc:
    port: 50052
`)
	writeFile(t, filepath.Join(tmpDir, "config.prod.yaml"), `
server:
  grpc:
    port: 8443
logging:
  format: json
`)
	reset()

	require.NoError(t, Init(baseConfig))
	require.NoError(t, LoadEnvironmentConfig("prod"))

	c := Get()
	assert.Equal(t, 0.95, c.Agent.Gamma)          // Kept from base
	assert.Equal(t, 8443, c.Server.GRPC.Port)     // Overridden
	assert.Equal(t, "json", c.Logging.Format)     // New value
	assert.Equal(t, baseConfig, ConfigFilePath()) // Base file stays the watched one

	// A missing overlay is not an error
	require.NoError(t, LoadEnvironmentConfig("staging"))
	assert.Equal(t, 8443, Get().Server.GRPC.Port)
}

func TestWatchConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, configFile, "rewards:\n  capture: 100\n")
	reset()
	require.NoError(t, Init(configFile))

	var (
		lock    sync.Mutex
		reloads []*Config
	)
	WatchConfig(func(c *Config, err error) {
		if err != nil {
			return
		}
		lock.Lock()
		reloads = append(reloads, c)
		lock.Unlock()
	})

	// Give the watcher a moment to register the directory
	time.Sleep(100 * time.Millisecond)
	writeFile(t, configFile, "rewards:\n  capture: 42\nsimulation:\n  tick_delay: 5ms\n")

	testutil.WaitFor(t, 5*time.Second, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return len(reloads) > 0 && reloads[len(reloads)-1].Rewards.Capture == 42
	}, "config change not observed")

	c := Get()
	assert.Equal(t, 42.0, c.Rewards.Capture)
	assert.Equal(t, 5*time.Millisecond, c.Simulation.TickDelay)
}
