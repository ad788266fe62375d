package main

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/config"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/events"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/events/subscribers"
)

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Walk one agent to the flag and back home on the configured layout",
		Long: "Walk one agent to the flag and back home on the configured layout.\n" +
			"With --moves the agent follows the given moves instead of the shortest route.",
		RunE: runScenario,
	}
	cmd.Flags().String("team", "a", "Team that walks (a or b)")
	cmd.Flags().String("layout", "", "Arena layout (open, walled, random)")
	cmd.Flags().Int64("seed", 1, "RNG seed for random layouts")
	cmd.Flags().Bool("color", true, "Color the board with ANSI escapes")
	cmd.Flags().Bool("verbose", false, "Print the board after every move")
	cmd.Flags().StringSlice("moves", nil, "Comma separated moves to play, e.g. right,right,up")
	return cmd
}

func runScenario(cmd *cobra.Command, args []string) error {
	if err := applyOverrides(cmd, map[string]string{"layout": "world.layout"}); err != nil {
		return err
	}
	teamName, _ := cmd.Flags().GetString("team")
	seed, _ := cmd.Flags().GetInt64("seed")
	color, _ := cmd.Flags().GetBool("color")
	verbose, _ := cmd.Flags().GetBool("verbose")
	moves, _ := cmd.Flags().GetStringSlice("moves")

	team, err := core.ParseTeam(teamName)
	if err != nil {
		return err
	}
	scripted, err := parseMoves(moves)
	if err != nil {
		return err
	}

	runID := fmt.Sprintf("scenario-%d", time.Now().Unix())
	bus := events.NewEventBus(log.Logger)
	bus.Subscribe(subscribers.NewLoggerSubscriber("scenario-logger", log.Logger, log.Logger.GetLevel()))

	w, err := game.NewWorld(config.Get().GameConfig(), rand.New(rand.NewSource(seed)), log.Logger,
		game.WithPublisher(bus, runID))
	if err != nil {
		return err
	}
	plan := scripted
	if plan == nil {
		if plan, err = w.PlanCapture(team); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, w.Render(color))
	fmt.Fprintf(out, "%s walks %d moves\n\n", team, len(plan))

	total := 0.0
	for i, a := range plan {
		res, err := w.Step(team, a)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, a, err)
		}
		total += res.Reward
		if !res.Accepted {
			if scripted == nil {
				return fmt.Errorf("step %d (%s) rejected: %s", i+1, a, res.Reason)
			}
			fmt.Fprintf(out, "step %d %s rejected: %s reward=%.3f\n", i+1, a, res.Reason, res.Reward)
			continue
		}
		if verbose || res.PickedUp || res.Done {
			fmt.Fprintf(out, "step %d %s reward=%.3f\n", i+1, a, res.Reward)
			fmt.Fprint(out, w.Render(color))
		}
		if res.Done {
			break
		}
	}

	if !w.EpisodeOver() {
		if scripted != nil {
			fmt.Fprintf(out, "%s stopped at %s without a capture, return %.3f\n", team, w.Position(team), total)
			return nil
		}
		return fmt.Errorf("walk ended at %s without a capture", w.Position(team))
	}
	fmt.Fprintf(out, "%s captured the flag in %d moves, return %.3f\n", team, w.Steps(), total)
	return nil
}

// parseMoves returns nil when no moves were given
func parseMoves(names []string) ([]core.Action, error) {
	if len(names) == 0 {
		return nil, nil
	}
	moves := make([]core.Action, 0, len(names))
	for _, name := range names {
		a, err := core.ParseAction(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("--moves: %w", err)
		}
		moves = append(moves, a)
	}
	return moves, nil
}
