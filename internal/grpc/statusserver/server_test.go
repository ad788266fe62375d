package statusserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/agent"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/estimator"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/mapgen"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/simulation"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/testutil"
)

const bufSize = 1024 * 1024

type fakeSource struct {
	mu       sync.Mutex
	snap     simulation.Snapshot
	paused   bool
	pauseErr error
}

func (f *fakeSource) Snapshot() simulation.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snap
	if f.paused {
		snap.Phase = "Paused"
	}
	return snap
}

func (f *fakeSource) History(team core.TeamID) (agent.Stats, bool) {
	if !team.Valid() {
		return agent.Stats{}, false
	}
	return f.snap.Teams[team], true
}

func (f *fakeSource) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pauseErr != nil {
		return f.pauseErr
	}
	f.paused = true
	return nil
}

func (f *fakeSource) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.paused {
		return errors.New("not paused")
	}
	f.paused = false
	return nil
}

func newFakeSource(t *testing.T) *fakeSource {
	w := testutil.NewWorld(t, mapgen.LayoutWalled)
	world := w.Snapshot()
	snap := simulation.Snapshot{
		RunID:             "run-1",
		Phase:             "Running",
		Episode:           3,
		EpisodesCompleted: 2,
		Ticks:             42,
		Timestamp:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		World:             world,
		Grid:              world.Grid(),
	}
	for _, team := range agent.DefaultTeams() {
		snap.Teams[team.ID] = agent.Stats{
			Team:           team.ID.String(),
			Name:           team.Name,
			Color:          team.Color,
			Phase:          "Observing",
			Epsilon:        0.5,
			Episodes:       2,
			Losses:         []float64{0.5, 0.25},
			EpisodeRewards: []float64{-1, 99},
			EpsilonValues:  []float64{0.995, 0.990025},
			RecentActions:  []string{"Up", "Right"},
		}
		snap.Heatmap[team.ID] = make([]int, world.Rows*world.Cols)
	}
	snap.Heatmap[core.TeamA][0] = 7
	return &fakeSource{snap: snap}
}

func setupTestServer(t *testing.T, source Source) (*StatusServiceClient, *grpc.ClientConn, func()) {
	lis := bufconn.Listen(bufSize)
	s, _ := NewGRPCServer(NewServer(source, testutil.NopLogger()), true, testutil.NopLogger())

	go func() {
		if err := s.Serve(lis); err != nil {
			t.Logf("Server exited with error: %v", err)
		}
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		s.Stop()
		lis.Close()
	}
	return NewStatusServiceClient(conn), conn, cleanup
}

func TestGetStatus(t *testing.T) {
	client, _, cleanup := setupTestServer(t, newFakeSource(t))
	defer cleanup()

	resp, err := client.GetStatus(context.Background())
	require.NoError(t, err)

	m := resp.AsMap()
	assert.Equal(t, "run-1", m["run_id"])
	assert.Equal(t, "Running", m["phase"])
	assert.Equal(t, float64(3), m["episode"])
	assert.Equal(t, float64(42), m["ticks"])
	assert.Equal(t, float64(10), m["rows"])
	assert.Equal(t, float64(20), m["cols"])
	assert.Equal(t, "none", m["carrier"])
	assert.Equal(t, "2026-01-02T03:04:05Z", m["timestamp"])

	grid := m["grid"].([]interface{})
	require.Len(t, grid, 10)
	assert.Equal(t, "#Aa..#....F....#.bB#", grid[5])
	assert.Len(t, m["cells"].([]interface{}), 200)

	positions := m["positions"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"row": float64(5), "col": float64(1)}, positions["team_a"])

	flag := m["flag"].(map[string]interface{})
	assert.Equal(t, true, flag["free"])
	assert.Equal(t, float64(10), flag["col"])

	teams := m["teams"].(map[string]interface{})
	teamB := teams["team_b"].(map[string]interface{})
	assert.Equal(t, "Team 2", teamB["name"])
	assert.Equal(t, []interface{}{0.5, 0.25}, teamB["losses"])
	assert.Equal(t, []interface{}{"Up", "Right"}, teamB["recent_actions"])
	assert.NotContains(t, teamB, "failure")

	heat := m["heatmap"].(map[string]interface{})["team_a"].([]interface{})
	assert.Equal(t, float64(7), heat[0])
}

func TestGetHistory(t *testing.T) {
	client, _, cleanup := setupTestServer(t, newFakeSource(t))
	defer cleanup()

	resp, err := client.GetHistory(context.Background(), "team_a")
	require.NoError(t, err)
	m := resp.AsMap()
	assert.Equal(t, "team_a", m["team"])
	assert.Equal(t, []interface{}{-1.0, 99.0}, m["episode_rewards"])

	_, err = client.GetHistory(context.Background(), "team_z")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPauseResume(t *testing.T) {
	source := newFakeSource(t)
	client, _, cleanup := setupTestServer(t, source)
	defer cleanup()
	ctx := context.Background()

	resp, err := client.Pause(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Paused", resp.AsMap()["phase"])

	resp, err = client.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Running", resp.AsMap()["phase"])

	_, err = client.Resume(ctx)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	source.mu.Lock()
	source.pauseErr = errors.New("stopped")
	source.mu.Unlock()
	_, err = client.Pause(ctx)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestWatchStatus(t *testing.T) {
	client, _, cleanup := setupTestServer(t, newFakeSource(t))
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.WatchStatus(ctx, time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		msg, err := stream.Recv()
		require.NoError(t, err)
		assert.Equal(t, "run-1", msg.AsMap()["run_id"])
	}
	assert.GreaterOrEqual(t, time.Since(start), 2*MinWatchInterval-20*time.Millisecond,
		"interval is clamped to the minimum")
}

func TestHealth(t *testing.T) {
	_, conn, cleanup := setupTestServer(t, newFakeSource(t))
	defer cleanup()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(testutil.NopLogger())
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: FullMethodGetStatus},
		func(context.Context, interface{}) (interface{}, error) { panic("boom") })
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestSnapshotToStruct_RealSimulation(t *testing.T) {
	sim, err := simulation.New(simulation.DefaultConfig(), testutil.NewWorld(t, mapgen.LayoutWalled).Config(),
		agent.DefaultConfig(), simulation.MLPFactory(estimator.DefaultMLPConfig(), testutil.NopLogger()), testutil.NopLogger())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := sim.Tick()
		require.NoError(t, err)
	}

	out, err := SnapshotToStruct(sim.Snapshot())
	require.NoError(t, err)
	m := out.AsMap()
	assert.Equal(t, sim.RunID(), m["run_id"])
	assert.Equal(t, float64(5), m["ticks"])
	assert.Equal(t, "Initializing", m["phase"])
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "", formatTimestamp(time.Time{}))
	local := time.Date(2026, 1, 2, 4, 4, 5, 500, time.FixedZone("CET", 3600))
	assert.Equal(t, "2026-01-02T03:04:05.0000005Z", formatTimestamp(local))
}
