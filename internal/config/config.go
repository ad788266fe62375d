package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/agent"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/estimator"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/mapgen"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/rules"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/httpapi"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/simulation"
)

// EnvPrefix is prepended to environment overrides, e.g. CTF_AGENT_GAMMA
const EnvPrefix = "CTF"

// Config holds all configuration for the application
type Config struct {
	World      mapgen.MapConfig    `mapstructure:"world"`
	Rewards    rules.RewardConfig  `mapstructure:"rewards"`
	Agent      agent.Config        `mapstructure:"agent"`
	Estimator  estimator.MLPConfig `mapstructure:"estimator"`
	Simulation simulation.Config   `mapstructure:"simulation"`
	Server     ServerConfig        `mapstructure:"server"`
	Logging    LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig holds the status server settings
type ServerConfig struct {
	GRPC GRPCConfig     `mapstructure:"grpc"`
	HTTP httpapi.Config `mapstructure:"http"`
}

// GRPCConfig holds gRPC server configuration
type GRPCConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	Host                  string        `mapstructure:"host"`
	Port                  int           `mapstructure:"port"`
	EnableReflection      bool          `mapstructure:"enable_reflection"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// GameConfig returns the world settings in the form the game package takes
func (c *Config) GameConfig() game.Config {
	return game.Config{Map: c.World, Rewards: c.Rewards}
}

var (
	// Global config instance
	mu  sync.RWMutex
	cfg *Config
	v   *viper.Viper
)

// setViperDefaults sets all default values using Viper's SetDefault
func setViperDefaults(v *viper.Viper) {
	// World defaults
	world := mapgen.DefaultMapConfig(10, 20)
	v.SetDefault("world.rows", world.Rows)
	v.SetDefault("world.cols", world.Cols)
	v.SetDefault("world.layout", string(world.Layout))
	v.SetDefault("world.home_size", world.HomeSize)
	v.SetDefault("world.obstacles", world.Obstacles)
	v.SetDefault("world.max_attempts", world.MaxAttempts)
	v.SetDefault("world.barrier_offset", world.BarrierOffset)
	v.SetDefault("world.barrier_half_height", world.BarrierHalfHeight)

	// Reward defaults
	rewards := rules.DefaultRewardConfig()
	v.SetDefault("rewards.step_cost", rewards.StepCost)
	v.SetDefault("rewards.invalid_move", rewards.InvalidMove)
	v.SetDefault("rewards.flag_pickup", rewards.FlagPickup)
	v.SetDefault("rewards.shaping_coef", rewards.ShapingCoef)
	v.SetDefault("rewards.capture", rewards.Capture)

	// Learning defaults
	ag := agent.DefaultConfig()
	v.SetDefault("agent.gamma", ag.Gamma)
	v.SetDefault("agent.batch_size", ag.BatchSize)
	v.SetDefault("agent.buffer_capacity", ag.BufferCapacity)
	v.SetDefault("agent.epsilon_start", ag.EpsilonStart)
	v.SetDefault("agent.epsilon_floor", ag.EpsilonFloor)
	v.SetDefault("agent.epsilon_decay", ag.EpsilonDecay)
	v.SetDefault("agent.learn_every", ag.LearnEvery)
	v.SetDefault("agent.history_limit", ag.HistoryLimit)

	est := estimator.DefaultMLPConfig()
	v.SetDefault("estimator.hidden", est.Hidden)
	v.SetDefault("estimator.learning_rate", est.LearningRate)
	v.SetDefault("estimator.grad_clip", est.GradClip)
	v.SetDefault("estimator.input_scale", est.InputScale)

	// Training loop defaults
	sim := simulation.DefaultConfig()
	v.SetDefault("simulation.max_episode_steps", sim.MaxEpisodeSteps)
	v.SetDefault("simulation.max_episodes", sim.MaxEpisodes)
	v.SetDefault("simulation.tick_delay", sim.TickDelay)
	v.SetDefault("simulation.seed", sim.Seed)
	v.SetDefault("simulation.snapshot_history", sim.SnapshotHistory)
	v.SetDefault("simulation.monitor.check_interval", sim.Monitor.CheckInterval)
	v.SetDefault("simulation.monitor.stall_ticks", sim.Monitor.StallTicks)
	v.SetDefault("simulation.monitor.alert_cooldown", sim.Monitor.AlertCooldown)

	// Server defaults
	v.SetDefault("server.grpc.enabled", true)
	v.SetDefault("server.grpc.host", "0.0.0.0")
	v.SetDefault("server.grpc.port", 50051)
	v.SetDefault("server.grpc.enable_reflection", true)
	v.SetDefault("server.grpc.graceful_shutdown_delay", 5*time.Second)
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.stream_interval", 500*time.Millisecond)
	v.SetDefault("server.http.access_log", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Init initializes the configuration
func Init(configPath string) error {
	nv := viper.New()

	// Set defaults before loading any config
	setViperDefaults(nv)

	if configPath != "" {
		nv.SetConfigFile(configPath)
	} else {
		// Default config locations
		nv.SetConfigName("config")
		nv.SetConfigType("yaml")
		nv.AddConfigPath(".")
		nv.AddConfigPath("./config")
		nv.AddConfigPath("/etc/ctf-rl")
	}

	nv.SetEnvPrefix(EnvPrefix)
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	if err := nv.ReadInConfig(); err != nil {
		// Only a missing file falls back to defaults
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || (configPath != "" && errors.Is(err, os.ErrNotExist))
		if !missing {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	c, err := decode(nv)
	if err != nil {
		return err
	}

	mu.Lock()
	v, cfg = nv, c
	mu.Unlock()
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := Validate(c); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

// Get returns the global config instance
func Get() *Config {
	mu.RLock()
	c := cfg
	mu.RUnlock()
	if c == nil {
		// Initialize with defaults if not already initialized
		if err := Init(""); err != nil {
			panic("failed to initialize config with defaults: " + err.Error())
		}
		mu.RLock()
		c = cfg
		mu.RUnlock()
	}
	return c
}

// LoadEnvironmentConfig merges config.<env>.yaml, looked up next to the
// loaded config file, over the current configuration
func LoadEnvironmentConfig(env string) error {
	if env == "" {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()
	if v == nil {
		return errors.New("config not initialized - call Init() first")
	}

	envFile := fmt.Sprintf("config.%s.yaml", env)
	base := v.ConfigFileUsed()
	if base != "" {
		envFile = filepath.Join(filepath.Dir(base), envFile)
	}
	if _, err := os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	v.SetConfigFile(envFile)
	err := v.MergeInConfig()
	if base != "" {
		// keep watching the base file
		v.SetConfigFile(base)
	}
	if err != nil {
		return fmt.Errorf("error merging environment config %s: %w", envFile, err)
	}

	c, err := decode(v)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// Set overrides a key at runtime, e.g. from a command line flag
func Set(key string, value interface{}) error {
	mu.Lock()
	defer mu.Unlock()
	if v == nil {
		return errors.New("config not initialized - call Init() first")
	}
	v.Set(key, value)
	c, err := decode(v)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// ConfigFilePath returns the path of the loaded config file
func ConfigFilePath() string {
	mu.RLock()
	defer mu.RUnlock()
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// WatchConfig enables hot-reloading of the config file. onChange receives
// the reloaded configuration, or the error if the new file does not decode
// or validate, in which case the previous configuration stays in effect.
func WatchConfig(onChange func(*Config, error)) {
	mu.RLock()
	wv := v
	mu.RUnlock()
	if wv == nil {
		return
	}

	wv.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		c, err := decode(wv)
		if err == nil {
			cfg = c
		}
		mu.Unlock()
		if onChange != nil {
			onChange(c, err)
		}
	})
	wv.WatchConfig()
}

// Validate validates the configuration values
func Validate(c *Config) error {
	if err := c.GameConfig().Validate(); err != nil {
		return fmt.Errorf("world: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Estimator.Validate(); err != nil {
		return fmt.Errorf("estimator: %w", err)
	}
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	if c.Server.GRPC.Port < 0 || c.Server.GRPC.Port > 65535 {
		return fmt.Errorf("server.grpc.port must be between 0 and 65535")
	}
	if c.Server.GRPC.GracefulShutdownDelay < 0 {
		return fmt.Errorf("server.grpc.graceful_shutdown_delay must be non-negative")
	}
	if c.Server.HTTP.Port < 0 || c.Server.HTTP.Port > 65535 {
		return fmt.Errorf("server.http.port must be between 0 and 65535")
	}
	if c.Server.HTTP.StreamInterval < 0 {
		return fmt.Errorf("server.http.stream_interval must be non-negative")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
