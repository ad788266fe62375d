package core

// CellType tags the contents of a single grid cell.
type CellType int

const (
	CellEmpty CellType = iota
	CellObstacle
	CellFlag
	CellTeamAHome
	CellTeamAAgent
	CellTeamBHome
	CellTeamBAgent
)

func (c CellType) String() string {
	switch c {
	case CellEmpty:
		return "Empty"
	case CellObstacle:
		return "Obstacle"
	case CellFlag:
		return "Flag"
	case CellTeamAHome:
		return "TeamAHome"
	case CellTeamAAgent:
		return "TeamAAgent"
	case CellTeamBHome:
		return "TeamBHome"
	case CellTeamBAgent:
		return "TeamBAgent"
	default:
		return "Unknown"
	}
}

// IsAgent reports whether the cell holds an agent of either team
func (c CellType) IsAgent() bool { return c == CellTeamAAgent || c == CellTeamBAgent }

// IsHome reports whether the cell is part of either team's home base
func (c CellType) IsHome() bool { return c == CellTeamAHome || c == CellTeamBHome }

// Board holds the cell tags of the grid.
type Board struct {
	W, H  int
	Cells []CellType // length = W*H (row-major)
}

func NewBoard(w, h int) *Board {
	// All cells start empty
	return &Board{W: w, H: h, Cells: make([]CellType, w*h)}
}

// InBounds checks if coordinates are within board boundaries
func (b *Board) InBounds(c Coordinate) bool {
	return c.IsValid(b.W, b.H)
}

// Get returns the tag at c, or CellObstacle when c is off the board
func (b *Board) Get(c Coordinate) CellType {
	if !b.InBounds(c) {
		return CellObstacle
	}
	return b.Cells[c.ToIndex(b.W)]
}

// Set writes a tag; out of bounds writes are ignored
func (b *Board) Set(c Coordinate, t CellType) {
	if !b.InBounds(c) {
		return
	}
	b.Cells[c.ToIndex(b.W)] = t
}

// Count returns the number of cells holding the tag
func (b *Board) Count(t CellType) int {
	n := 0
	for _, cell := range b.Cells {
		if cell == t {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the board
func (b *Board) Clone() *Board {
	cells := make([]CellType, len(b.Cells))
	copy(cells, b.Cells)
	return &Board{W: b.W, H: b.H, Cells: cells}
}
