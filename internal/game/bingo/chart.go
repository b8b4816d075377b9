package bingo

import (
	"fmt"
	"math/rand/v2"
)

const (
	// Size is the width and height of a chart.
	Size = 5
	// MaxNumber is the largest number on a chart; charts hold 1..MaxNumber.
	MaxNumber = Size * Size
	// MaxLines is the number of lines on a chart: rows, columns and both diagonals.
	MaxLines = 2*Size + 2
)

// Cell is one square of a chart.
type Cell struct {
	Value  int
	Struck bool
}

// Chart is a participant's 5x5 grid holding every number 1..25 exactly once.
type Chart struct {
	cells [Size][Size]Cell
}

// NewChart deals a chart from a uniformly random permutation of 1..25.
func NewChart(r *rand.Rand) *Chart {
	perm := r.Perm(MaxNumber)
	c := &Chart{}
	for i, v := range perm {
		c.cells[i/Size][i%Size] = Cell{Value: v + 1}
	}
	return c
}

// ChartFromRows builds an unstruck chart from fixed rows.
// Returns an error unless the rows hold each of 1..25 exactly once.
func ChartFromRows(rows [Size][Size]int) (*Chart, error) {
	var seen [MaxNumber + 1]bool
	c := &Chart{}
	for r := range rows {
		for col, v := range rows[r] {
			if v < 1 || v > MaxNumber {
				return nil, fmt.Errorf("cell (%d,%d): %d out of range 1..%d", r, col, v, MaxNumber)
			}
			if seen[v] {
				return nil, fmt.Errorf("cell (%d,%d): %d repeated", r, col, v)
			}
			seen[v] = true
			c.cells[r][col] = Cell{Value: v}
		}
	}
	return c, nil
}

// Cell returns the cell at row, col.
func (c *Chart) Cell(row, col int) Cell {
	return c.cells[row][col]
}

// Rows returns a copy of the grid.
func (c *Chart) Rows() [Size][Size]Cell {
	return c.cells
}

// Clone returns an independent copy of the chart.
func (c *Chart) Clone() *Chart {
	cp := *c
	return &cp
}

func (c *Chart) find(n int) (row, col int, ok bool) {
	for r := range c.cells {
		for col := range c.cells[r] {
			if c.cells[r][col].Value == n {
				return r, col, true
			}
		}
	}
	return 0, 0, false
}

// Contains reports whether n is on the chart.
func (c *Chart) Contains(n int) bool {
	_, _, ok := c.find(n)
	return ok
}

// IsStruck reports whether n is on the chart and already struck.
func (c *Chart) IsStruck(n int) bool {
	r, col, ok := c.find(n)
	return ok && c.cells[r][col].Struck
}

// Strike marks n as struck. It reports whether the chart changed.
func (c *Chart) Strike(n int) bool {
	r, col, ok := c.find(n)
	if !ok || c.cells[r][col].Struck {
		return false
	}
	c.cells[r][col].Struck = true
	return true
}

// Unstruck returns the numbers not yet struck, in grid order.
func (c *Chart) Unstruck() []int {
	var out []int
	for r := range c.cells {
		for col := range c.cells[r] {
			if !c.cells[r][col].Struck {
				out = append(out, c.cells[r][col].Value)
			}
		}
	}
	return out
}

// Score counts the complete lines on the chart.
// It is recomputed from the cells on every call.
func (c *Chart) Score() int {
	return c.lines(func(cell Cell) bool { return cell.Struck })
}

// ScoreWith returns the score the chart would have if n were struck,
// without changing the chart.
func (c *Chart) ScoreWith(n int) int {
	return c.lines(func(cell Cell) bool { return cell.Struck || cell.Value == n })
}

func (c *Chart) lines(struck func(Cell) bool) int {
	score := 0
	diag, anti := true, true
	for i := 0; i < Size; i++ {
		row, col := true, true
		for j := 0; j < Size; j++ {
			row = row && struck(c.cells[i][j])
			col = col && struck(c.cells[j][i])
		}
		if row {
			score++
		}
		if col {
			score++
		}
		diag = diag && struck(c.cells[i][i])
		anti = anti && struck(c.cells[i][Size-1-i])
	}
	if diag {
		score++
	}
	if anti {
		score++
	}
	return score
}
