package simulation

import (
	"fmt"
	"time"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/monitoring"
)

// Config controls the training loop
type Config struct {
	// MaxEpisodeSteps truncates an episode after that many ticks, 0 means unlimited
	MaxEpisodeSteps int `mapstructure:"max_episode_steps"`
	// MaxEpisodes stops Run after that many finished episodes, 0 means unlimited
	MaxEpisodes int           `mapstructure:"max_episodes"`
	TickDelay   time.Duration `mapstructure:"tick_delay"`
	// Seed for the world and controller RNGs, 0 seeds from the clock
	Seed int64 `mapstructure:"seed"`
	// SnapshotHistory is how many recent losses and episode rewards a snapshot carries
	SnapshotHistory int `mapstructure:"snapshot_history"`

	Monitor monitoring.ProgressConfig `mapstructure:"monitor"`
}

// DefaultConfig returns the default training loop settings
func DefaultConfig() Config {
	return Config{
		MaxEpisodeSteps: 200,
		MaxEpisodes:     0,
		TickDelay:       0,
		Seed:            0,
		SnapshotHistory: 100,
		Monitor:         monitoring.DefaultProgressConfig(),
	}
}

// Validate checks the loop settings
func (c Config) Validate() error {
	if c.MaxEpisodeSteps < 0 {
		return fmt.Errorf("max_episode_steps must be non-negative, got %d", c.MaxEpisodeSteps)
	}
	if c.MaxEpisodes < 0 {
		return fmt.Errorf("max_episodes must be non-negative, got %d", c.MaxEpisodes)
	}
	if c.TickDelay < 0 {
		return fmt.Errorf("tick_delay must be non-negative, got %v", c.TickDelay)
	}
	if c.SnapshotHistory < 0 {
		return fmt.Errorf("snapshot_history must be non-negative, got %d", c.SnapshotHistory)
	}
	return nil
}
