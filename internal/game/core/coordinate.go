package core

import "fmt"

// Coordinate represents a cell on the grid. X is the column, Y is the row.
type Coordinate struct {
	X, Y int
}

// NewCoordinate creates a new coordinate with the given x (column) and y (row)
func NewCoordinate(x, y int) Coordinate {
	return Coordinate{X: x, Y: y}
}

// At builds a coordinate from (row, col) order
func At(row, col int) Coordinate {
	return Coordinate{X: col, Y: row}
}

// Row returns the row of the coordinate
func (c Coordinate) Row() int { return c.Y }

// Col returns the column of the coordinate
func (c Coordinate) Col() int { return c.X }

// FromIndex creates a coordinate from a board array index using row-major ordering
func FromIndex(idx, width int) Coordinate {
	return Coordinate{
		X: idx % width,
		Y: idx / width,
	}
}

// IsValid checks if the coordinate is within the given bounds
func (c Coordinate) IsValid(width, height int) bool {
	return c.X >= 0 && c.X < width && c.Y >= 0 && c.Y < height
}

// ToIndex converts the coordinate to a board array index using row-major ordering
func (c Coordinate) ToIndex(width int) int {
	return c.Y*width + c.X
}

// DistanceTo calculates the Manhattan distance to another coordinate
func (c Coordinate) DistanceTo(other Coordinate) int {
	dx := c.X - other.X
	dy := c.Y - other.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Add returns a new coordinate that is the sum of this coordinate and another
func (c Coordinate) Add(other Coordinate) Coordinate {
	return Coordinate{
		X: c.X + other.X,
		Y: c.Y + other.Y,
	}
}

// Move returns the coordinate one step away in the direction of the action.
// Invalid actions leave the coordinate unchanged.
func (c Coordinate) Move(a Action) Coordinate {
	return c.Add(a.Delta())
}

// Equal checks if two coordinates are equal
func (c Coordinate) Equal(other Coordinate) bool {
	return c.X == other.X && c.Y == other.Y
}

// String returns the coordinate in (row,col) order
func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.Y, c.X)
}
