package mapgen

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
)

// ErrInvalidLayout is returned when the grid cannot fit both home bases and the flag
var ErrInvalidLayout = errors.New("invalid layout")

// LayoutKind selects how obstacles are placed
type LayoutKind string

const (
	// LayoutOpen places no obstacles
	LayoutOpen LayoutKind = "open"
	// LayoutWalled places a perimeter wall and two vertical barriers either side of the flag
	LayoutWalled LayoutKind = "walled"
	// LayoutRandom scatters obstacles on free cells using the generator's RNG
	LayoutRandom LayoutKind = "random"
)

// MapConfig holds configuration for layout generation
type MapConfig struct {
	Rows   int        `mapstructure:"rows"`
	Cols   int        `mapstructure:"cols"`
	Layout LayoutKind `mapstructure:"layout"`

	// HomeSize is the side of each square home region
	HomeSize int `mapstructure:"home_size"`

	// Random layout settings
	Obstacles   int `mapstructure:"obstacles"`
	MaxAttempts int `mapstructure:"max_attempts"`

	// Walled layout settings: barrier columns sit BarrierOffset columns
	// either side of the flag and extend BarrierHalfHeight rows above and below it
	BarrierOffset     int `mapstructure:"barrier_offset"`
	BarrierHalfHeight int `mapstructure:"barrier_half_height"`
}

// DefaultMapConfig returns a sensible default configuration
func DefaultMapConfig(rows, cols int) MapConfig {
	return MapConfig{
		Rows:              rows,
		Cols:              cols,
		Layout:            LayoutWalled,
		HomeSize:          2,
		Obstacles:         5,
		MaxAttempts:       20,
		BarrierOffset:     5,
		BarrierHalfHeight: 3,
	}
}

// Validate checks that the grid can hold two disjoint home regions and a flag cell outside them
func (c MapConfig) Validate() error {
	if c.Rows < 1 || c.Cols < 1 {
		return fmt.Errorf("%w: grid must be at least 1x1, got %dx%d", ErrInvalidLayout, c.Rows, c.Cols)
	}
	if c.HomeSize < 1 {
		return fmt.Errorf("%w: home size must be at least 1", ErrInvalidLayout)
	}
	switch c.Layout {
	case LayoutOpen, LayoutWalled, LayoutRandom:
	default:
		return fmt.Errorf("%w: unknown layout %q", ErrInvalidLayout, c.Layout)
	}
	if c.Obstacles < 0 {
		return fmt.Errorf("%w: obstacle count must be non-negative", ErrInvalidLayout)
	}

	starts := startCells(c)
	homes := [core.NumTeams][]core.Coordinate{homeRegion(c, core.TeamA, starts[0]), homeRegion(c, core.TeamB, starts[1])}
	flag := flagCell(c)
	seen := make(map[core.Coordinate]core.TeamID)
	for i, region := range homes {
		for _, cell := range region {
			if !cell.IsValid(c.Cols, c.Rows) {
				return fmt.Errorf("%w: home of %s leaves the %dx%d grid at %s", ErrInvalidLayout, core.TeamID(i), c.Rows, c.Cols, cell)
			}
			if owner, ok := seen[cell]; ok && owner != core.TeamID(i) {
				return fmt.Errorf("%w: home regions overlap at %s", ErrInvalidLayout, cell)
			}
			seen[cell] = core.TeamID(i)
			if cell.Equal(flag) {
				return fmt.Errorf("%w: flag cell %s lies inside a home region", ErrInvalidLayout, flag)
			}
		}
	}

	if c.Layout == LayoutWalled && !Reachable(NewGenerator(c, nil).walledLayout()) {
		return fmt.Errorf("%w: walls with offset %d and half height %d cut the flag off from a start",
			ErrInvalidLayout, c.BarrierOffset, c.BarrierHalfHeight)
	}
	return nil
}

// Layout is the static part of a world: terrain tags, start cells, home regions and the flag cell.
type Layout struct {
	Terrain *core.Board // only Empty, Obstacle and Home tags
	Starts  [core.NumTeams]core.Coordinate
	Homes   [core.NumTeams][]core.Coordinate
	Flag    core.Coordinate
}

// InHome reports whether c is part of the team's home region
func (l *Layout) InHome(team core.TeamID, c core.Coordinate) bool {
	if !team.Valid() {
		return false
	}
	for _, h := range l.Homes[team] {
		if h.Equal(c) {
			return true
		}
	}
	return false
}

// NearestHome returns the home cell of team closest to c
func (l *Layout) NearestHome(team core.TeamID, c core.Coordinate) core.Coordinate {
	best := l.Starts[team]
	bestDist := c.DistanceTo(best)
	for _, h := range l.Homes[team] {
		if d := c.DistanceTo(h); d < bestDist {
			best, bestDist = h, d
		}
	}
	return best
}

// Generator handles layout generation with deterministic RNG
type Generator struct {
	config MapConfig
	rng    *rand.Rand
}

// NewGenerator creates a new layout generator
func NewGenerator(config MapConfig, rng *rand.Rand) *Generator {
	return &Generator{
		config: config,
		rng:    rng,
	}
}

// Config returns the generator's configuration
func (g *Generator) Config() MapConfig { return g.config }

// Generate builds a layout. Open and walled layouts are identical on every call,
// and Validate rejects walled settings that seal the flag.
// A random layout whose flag cannot be reached from both starts after
// MaxAttempts draws falls back to an open layout.
func (g *Generator) Generate() (*Layout, error) {
	if err := g.config.Validate(); err != nil {
		return nil, err
	}

	switch g.config.Layout {
	case LayoutWalled:
		return g.walledLayout(), nil
	case LayoutRandom:
		attempts := g.config.MaxAttempts
		if attempts < 1 {
			attempts = 1
		}
		for i := 0; i < attempts; i++ {
			l := g.baseLayout()
			g.placeRandomObstacles(l)
			if Reachable(l) {
				return l, nil
			}
		}
		return g.baseLayout(), nil
	default:
		return g.baseLayout(), nil
	}
}

// baseLayout places home regions and records the flag cell on an empty board
func (g *Generator) baseLayout() *Layout {
	c := g.config
	l := &Layout{
		Terrain: core.NewBoard(c.Cols, c.Rows),
		Starts:  startCells(c),
		Flag:    flagCell(c),
	}
	for _, team := range core.Teams {
		l.Homes[team] = homeRegion(c, team, l.Starts[team])
		for _, cell := range l.Homes[team] {
			l.Terrain.Set(cell, team.HomeCell())
		}
	}
	return l
}

// walledLayout is deterministic and needs no RNG
func (g *Generator) walledLayout() *Layout {
	l := g.baseLayout()
	g.placeWalls(l)
	return l
}

func (g *Generator) placeWalls(l *Layout) {
	c := g.config
	for x := 0; x < c.Cols; x++ {
		g.placeObstacle(l, core.NewCoordinate(x, 0))
		g.placeObstacle(l, core.NewCoordinate(x, c.Rows-1))
	}
	for y := 0; y < c.Rows; y++ {
		g.placeObstacle(l, core.NewCoordinate(0, y))
		g.placeObstacle(l, core.NewCoordinate(c.Cols-1, y))
	}

	if c.BarrierOffset <= 0 {
		return
	}
	midRow, midCol := c.Rows/2, c.Cols/2
	for y := midRow - c.BarrierHalfHeight; y <= midRow+c.BarrierHalfHeight; y++ {
		g.placeObstacle(l, core.NewCoordinate(midCol-c.BarrierOffset, y))
		g.placeObstacle(l, core.NewCoordinate(midCol+c.BarrierOffset, y))
	}
}

func (g *Generator) placeRandomObstacles(l *Layout) {
	want := g.config.Obstacles
	placed := 0

	// Use a maximum attempt counter to avoid infinite loops
	maxAttempts := want * 10
	for attempts := 0; placed < want && attempts < maxAttempts; attempts++ {
		cell := core.NewCoordinate(g.rng.Intn(g.config.Cols), g.rng.Intn(g.config.Rows))
		if g.placeObstacle(l, cell) {
			placed++
		}
	}
}

// placeObstacle marks an empty cell as an obstacle. Home cells, start cells
// and the flag cell are never covered.
func (g *Generator) placeObstacle(l *Layout, cell core.Coordinate) bool {
	if !l.Terrain.InBounds(cell) || l.Terrain.Get(cell) != core.CellEmpty || cell.Equal(l.Flag) {
		return false
	}
	l.Terrain.Set(cell, core.CellObstacle)
	return true
}

func flagCell(c MapConfig) core.Coordinate {
	return core.At(c.Rows/2, c.Cols/2)
}

func startCells(c MapConfig) [core.NumTeams]core.Coordinate {
	return [core.NumTeams]core.Coordinate{
		core.At(c.Rows/2, 1),
		core.At(c.Rows/2, c.Cols-2),
	}
}

// homeRegion is a HomeSize square whose bottom row holds the start cell,
// extending upward and toward the center of the grid.
func homeRegion(c MapConfig, team core.TeamID, start core.Coordinate) []core.Coordinate {
	dx := 1
	if team == core.TeamB {
		dx = -1
	}
	region := make([]core.Coordinate, 0, c.HomeSize*c.HomeSize)
	for dy := 0; dy < c.HomeSize; dy++ {
		for i := 0; i < c.HomeSize; i++ {
			region = append(region, core.NewCoordinate(start.X+i*dx, start.Y-dy))
		}
	}
	return region
}
