package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	base := []string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "--log-level", "error", "--env", ""}
	cmd.SetArgs(append(args, base...))
	err := cmd.Execute()
	return out.String(), err
}

func TestScenarioCommand(t *testing.T) {
	t.Run("open layout", func(t *testing.T) {
		out, err := execute(t, "scenario", "--team", "b", "--layout", "open", "--color=false")
		require.NoError(t, err)
		// Eight moves left onto the flag, seven right into the home region
		assert.Contains(t, out, "team_b captured the flag in 15 moves")
	})

	t.Run("walled layout", func(t *testing.T) {
		out, err := execute(t, "scenario", "--layout", "walled", "--color=false", "--verbose")
		require.NoError(t, err)
		assert.Contains(t, out, "#Aa..#....F....#.bB#")
		assert.Contains(t, out, "team_a captured the flag")
	})

	t.Run("scripted moves", func(t *testing.T) {
		moves := strings.Repeat("right,", 9) + "up,up," + strings.Repeat("left,", 9) + "down"
		out, err := execute(t, "scenario", "--layout", "open", "--color=false", "--moves", moves)
		require.NoError(t, err)
		assert.Contains(t, out, "team_a walks 21 moves")
		assert.Contains(t, out, "team_a captured the flag in 21 moves")
	})

	t.Run("scripted moves without a capture", func(t *testing.T) {
		out, err := execute(t, "scenario", "--layout", "open", "--color=false", "--moves", "left,l")
		require.NoError(t, err)
		assert.Contains(t, out, "step 2 Left rejected: out_of_bounds")
		assert.Contains(t, out, "team_a stopped at")
	})

	t.Run("unknown move", func(t *testing.T) {
		_, err := execute(t, "scenario", "--moves", "up,diagonal")
		assert.ErrorIs(t, err, core.ErrInvalidAction)
	})

	t.Run("unknown team", func(t *testing.T) {
		_, err := execute(t, "scenario", "--team", "c")
		assert.Error(t, err)
	})

	t.Run("unknown layout", func(t *testing.T) {
		_, err := execute(t, "scenario", "--layout", "maze")
		assert.Error(t, err)
	})
}

func TestDemoCommand(t *testing.T) {
	out, err := execute(t, "demo", "--ticks", "10", "--every", "5", "--color=false", "--seed", "3", "--layout", "open")
	require.NoError(t, err)
	assert.Contains(t, out, "tick 5 ")
	assert.Contains(t, out, "tick 10 ")
	assert.Contains(t, out, "Team 1: epsilon=")
	assert.NotContains(t, out, "tick 15 ")
}

func TestTrainCommand(t *testing.T) {
	_, err := execute(t, "train", "--episodes", "1", "--seed", "5", "--layout", "open", "--no-grpc", "--http-port", "0")
	require.NoError(t, err)
}
