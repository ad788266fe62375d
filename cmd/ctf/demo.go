package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/config"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
)

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a short training session and print the board as it goes",
		RunE:  runDemo,
	}
	cmd.Flags().Int("ticks", 500, "Number of ticks to run")
	cmd.Flags().Int("every", 25, "Print the board every N ticks")
	cmd.Flags().Duration("delay", 0, "Pause after each printed board")
	cmd.Flags().Bool("color", true, "Color the board with ANSI escapes")
	cmd.Flags().Int64("seed", 0, "RNG seed (0 seeds from the clock)")
	cmd.Flags().String("layout", "", "Arena layout (open, walled, random)")
	return cmd
}

func runDemo(cmd *cobra.Command, args []string) error {
	if err := applyOverrides(cmd, map[string]string{
		"seed":   "simulation.seed",
		"layout": "world.layout",
	}); err != nil {
		return err
	}
	ticks, _ := cmd.Flags().GetInt("ticks")
	every, _ := cmd.Flags().GetInt("every")
	delay, _ := cmd.Flags().GetDuration("delay")
	color, _ := cmd.Flags().GetBool("color")
	if every < 1 {
		every = 1
	}

	sim, err := newSimulation(config.Get())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	for i := 1; i <= ticks; i++ {
		if ctx.Err() != nil {
			break
		}
		result, err := sim.Tick()
		if err != nil {
			return err
		}
		if result.EpisodeEnded {
			log.Info().
				Int("episode", sim.EpisodesCompleted()).
				Str("winner", result.Winner.String()).
				Bool("truncated", result.Truncated).
				Msg("Episode finished")
		}
		if i%every != 0 {
			continue
		}

		snap := sim.Snapshot()
		fmt.Fprintf(out, "tick %d  episode %d  step %d\n", snap.Ticks, snap.Episode, snap.EpisodeSteps)
		fmt.Fprint(out, snap.World.Render(color))
		for _, team := range core.Teams {
			stats := snap.Teams[team]
			fmt.Fprintf(out, "%s: epsilon=%.3f reward=%.2f buffer=%d recent=%s\n",
				stats.Name, stats.Epsilon, stats.TotalReward, stats.BufferSize, strings.Join(stats.RecentActions, ","))
		}
		fmt.Fprintln(out)

		if delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
	}
	logSummary(sim)
	return nil
}
