package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/config"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/events"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/events/subscribers"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/grpc/statusserver"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/httpapi"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/simulation"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train both agents and serve the status API",
		RunE:  runTrain,
	}
	cmd.Flags().Int("episodes", 0, "Stop after this many episodes (0 runs until interrupted)")
	cmd.Flags().Int64("seed", 0, "RNG seed (0 seeds from the clock)")
	cmd.Flags().Duration("tick-delay", 0, "Pause between ticks")
	cmd.Flags().String("layout", "", "Arena layout (open, walled, random)")
	cmd.Flags().Int("grpc-port", 0, "gRPC status port")
	cmd.Flags().Int("http-port", 0, "HTTP status port (0 disables the HTTP API)")
	cmd.Flags().Bool("no-grpc", false, "Do not start the gRPC status server")
	return cmd
}

func runTrain(cmd *cobra.Command, args []string) error {
	if err := applyOverrides(cmd, map[string]string{
		"episodes":   "simulation.max_episodes",
		"seed":       "simulation.seed",
		"tick-delay": "simulation.tick_delay",
		"layout":     "world.layout",
		"grpc-port":  "server.grpc.port",
		"http-port":  "server.http.port",
	}); err != nil {
		return err
	}
	if noGRPC, _ := cmd.Flags().GetBool("no-grpc"); noGRPC {
		if err := config.Set("server.grpc.enabled", false); err != nil {
			return err
		}
	}
	cfg := config.Get()

	sim, err := newSimulation(cfg)
	if err != nil {
		return err
	}

	eventLogger := subscribers.NewLoggerSubscriber("event-logger", log.Logger, zerolog.InfoLevel)
	eventLogger.SetEventFilter([]string{
		events.TypeEpisodeEnded,
		events.TypeFlagCaptured,
		events.TypeAgentFailed,
		events.TypeStateTransition,
	})
	eventLogger.SetDevMode(os.Getenv("APP_ENV") != "production")
	sim.Bus().Subscribe(eventLogger)

	log.Info().
		Str("run_id", sim.RunID()).
		Str("layout", string(cfg.World.Layout)).
		Int("rows", cfg.World.Rows).
		Int("cols", cfg.World.Cols).
		Int("max_episodes", cfg.Simulation.MaxEpisodes).
		Msg("Starting training")

	config.WatchConfig(func(c *config.Config, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("Ignoring invalid config change")
			return
		}
		if err := sim.SetRewardConfig(c.Rewards); err != nil {
			log.Warn().Err(err).Msg("Failed to apply reward config")
		}
		sim.SetTickDelay(c.Simulation.TickDelay)
		log.Info().
			Dur("tick_delay", c.Simulation.TickDelay).
			Float64("capture", c.Rewards.Capture).
			Msg("Config reloaded")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	serveCtx, cancelServers := context.WithCancel(ctx)
	defer cancelServers()

	g, gctx := errgroup.WithContext(serveCtx)

	if cfg.Server.GRPC.Enabled {
		grpcServer, healthServer := statusserver.NewGRPCServer(
			statusserver.NewServer(sim, log.Logger), cfg.Server.GRPC.EnableReflection, log.Logger)
		addr := fmt.Sprintf("%s:%d", cfg.Server.GRPC.Host, cfg.Server.GRPC.Port)
		g.Go(func() error {
			return statusserver.ListenAndServe(gctx, addr, grpcServer, healthServer,
				cfg.Server.GRPC.GracefulShutdownDelay, log.Logger)
		})
	}
	if cfg.Server.HTTP.Port > 0 {
		api := httpapi.NewServer(sim, cfg.Server.HTTP, log.Logger)
		addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
		g.Go(func() error {
			return api.ListenAndServe(gctx, addr)
		})
	}

	g.Go(func() error {
		// Servers outlive the loop only until it returns
		defer cancelServers()
		return sim.Run(gctx)
	})

	err = g.Wait()
	logSummary(sim)
	return err
}

func newSimulation(cfg *config.Config) (*simulation.Simulation, error) {
	return simulation.New(
		cfg.Simulation,
		cfg.GameConfig(),
		cfg.Agent,
		simulation.MLPFactory(cfg.Estimator, log.Logger),
		log.Logger,
	)
}

func logSummary(sim *simulation.Simulation) {
	snap := sim.Snapshot()
	for _, team := range core.Teams {
		stats := snap.Teams[team]
		log.Info().
			Str("team", stats.Name).
			Int("episodes", stats.Episodes).
			Int("score", snap.World.Scores[team]).
			Float64("epsilon", stats.Epsilon).
			Int64("learn_steps", stats.LearnSteps).
			Str("failure", stats.Failure).
			Msg("Training summary")
	}
	log.Info().
		Str("run_id", snap.RunID).
		Str("phase", snap.Phase).
		Int("episodes_completed", snap.EpisodesCompleted).
		Int64("ticks", snap.Ticks).
		Dur("elapsed", snap.Elapsed).
		Msg("Training finished")
}
