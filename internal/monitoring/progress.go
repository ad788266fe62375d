package monitoring

import (
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ProgressConfig controls how often the monitor samples and when it warns
type ProgressConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	StallTicks    int64         `mapstructure:"stall_ticks"` // ticks without a finished episode before warning, 0 disables
	AlertCooldown time.Duration `mapstructure:"alert_cooldown"`
}

// DefaultProgressConfig returns the default monitor settings
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		CheckInterval: 30 * time.Second,
		StallTicks:    5000,
		AlertCooldown: 5 * time.Minute,
	}
}

// ProgressMonitor tracks training throughput and warns when episodes stop finishing
type ProgressMonitor struct {
	mu     sync.RWMutex
	config ProgressConfig
	logger zerolog.Logger

	started        time.Time
	ticks          int64
	episodes       int64
	ticksAtEpisode int64
	ticksAtCheck   int64
	lastCheck      time.Time
	ticksPerSecond float64
	lastAlert      time.Time
	stalled        bool
	goroutines     int
	peakGoroutines int
	stopChan       chan struct{}
	stopOnce       sync.Once
}

// NewProgressMonitor creates a new progress monitor
func NewProgressMonitor(config ProgressConfig, logger zerolog.Logger) *ProgressMonitor {
	now := time.Now()
	g := runtime.NumGoroutine()
	return &ProgressMonitor{
		config:         config,
		logger:         logger.With().Str("component", "progress_monitor").Logger(),
		started:        now,
		lastCheck:      now,
		goroutines:     g,
		peakGoroutines: g,
		stopChan:       make(chan struct{}),
	}
}

// Start begins periodic checks in a background goroutine
func (pm *ProgressMonitor) Start() {
	if pm.config.CheckInterval <= 0 {
		return
	}
	go pm.monitor()
	pm.logger.Info().
		Dur("interval", pm.config.CheckInterval).
		Int64("stall_ticks", pm.config.StallTicks).
		Msg("Started progress monitoring")
}

// Stop stops the monitor. It is safe to call more than once.
func (pm *ProgressMonitor) Stop() {
	pm.stopOnce.Do(func() { close(pm.stopChan) })
}

func (pm *ProgressMonitor) monitor() {
	defer func() {
		if r := recover(); r != nil {
			pm.logger.Error().
				Interface("panic", r).
				Msg("Progress monitor panicked")
		}
	}()

	ticker := time.NewTicker(pm.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pm.Check()
		case <-pm.stopChan:
			return
		}
	}
}

// RecordTick counts one simulation tick
func (pm *ProgressMonitor) RecordTick() {
	pm.mu.Lock()
	pm.ticks++
	pm.mu.Unlock()
}

// RecordEpisode counts a finished episode and clears any stall
func (pm *ProgressMonitor) RecordEpisode() {
	pm.mu.Lock()
	pm.episodes++
	pm.ticksAtEpisode = pm.ticks
	pm.stalled = false
	pm.mu.Unlock()
}

// Check samples throughput and goroutine count and warns on a stall
func (pm *ProgressMonitor) Check() {
	now := time.Now()
	goroutines := runtime.NumGoroutine()

	pm.mu.Lock()
	if elapsed := now.Sub(pm.lastCheck).Seconds(); elapsed > 0 {
		pm.ticksPerSecond = float64(pm.ticks-pm.ticksAtCheck) / elapsed
	}
	pm.ticksAtCheck = pm.ticks
	pm.lastCheck = now
	pm.goroutines = goroutines
	if goroutines > pm.peakGoroutines {
		pm.peakGoroutines = goroutines
	}

	sinceEpisode := pm.ticks - pm.ticksAtEpisode
	pm.stalled = pm.config.StallTicks > 0 && sinceEpisode >= pm.config.StallTicks
	shouldAlert := pm.stalled && now.Sub(pm.lastAlert) > pm.config.AlertCooldown
	if shouldAlert {
		pm.lastAlert = now
	}
	ticks, episodes, rate := pm.ticks, pm.episodes, pm.ticksPerSecond
	pm.mu.Unlock()

	pm.logger.Debug().
		Int64("ticks", ticks).
		Int64("episodes", episodes).
		Float64("ticks_per_second", rate).
		Int("goroutines", goroutines).
		Msg("Training progress")

	if shouldAlert {
		pm.logger.Warn().
			Int64("ticks_since_episode", sinceEpisode).
			Int64("threshold", pm.config.StallTicks).
			Msg("No episode finished recently - training may be stuck")
	}
}

// GetMetrics returns current progress metrics
func (pm *ProgressMonitor) GetMetrics() ProgressMetrics {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	return ProgressMetrics{
		Ticks:             pm.ticks,
		Episodes:          pm.episodes,
		TicksSinceEpisode: pm.ticks - pm.ticksAtEpisode,
		TicksPerSecond:    pm.ticksPerSecond,
		Stalled:           pm.stalled,
		Uptime:            time.Since(pm.started),
		Goroutines:        pm.goroutines,
		PeakGoroutines:    pm.peakGoroutines,
	}
}

// ProgressMetrics contains training progress statistics
type ProgressMetrics struct {
	Ticks             int64         `json:"ticks"`
	Episodes          int64         `json:"episodes"`
	TicksSinceEpisode int64         `json:"ticks_since_episode"`
	TicksPerSecond    float64       `json:"ticks_per_second"`
	Stalled           bool          `json:"stalled"`
	Uptime            time.Duration `json:"uptime"`
	Goroutines        int           `json:"goroutines"`
	PeakGoroutines    int           `json:"peak_goroutines"`
}
