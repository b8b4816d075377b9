package bingo

import (
	"fmt"
	"strings"
)

// ChartView is what a renderer needs to draw one participant's chart.
type ChartView struct {
	Owner      Player
	Chart      *Chart
	Score      int
	ScoreLimit int
}

// Renderer turns game state into outgoing messages.
type Renderer interface {
	Chart(v ChartView) Message
	Scoreboard(s Snapshot) Message
}

// TextRenderer draws charts as monospaced text grids.
type TextRenderer struct{}

// StruckMark replaces the number of a struck cell in text charts.
const StruckMark = "XX"

// Chart renders a chart with struck cells masked.
func (TextRenderer) Chart(v ChartView) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "%s's chart (%d/%d lines)\n", v.Owner, v.Score, v.ScoreLimit)
	b.WriteString(FormatGrid(v.Chart))
	return Message{Text: b.String()}
}

// Scoreboard lists the called numbers and every participant's score.
func (TextRenderer) Scoreboard(s Snapshot) Message {
	var b strings.Builder
	b.WriteString("Bingo scoreboard\n")
	if len(s.Called) == 0 {
		b.WriteString("Called: none\n")
	} else {
		called := make([]string, len(s.Called))
		for i, n := range s.Called {
			called[i] = fmt.Sprint(n)
		}
		fmt.Fprintf(&b, "Called: %s\n", strings.Join(called, ", "))
	}
	for _, p := range s.Players {
		fmt.Fprintf(&b, "%s: %d/%d\n", p.Player, p.Score, s.ScoreLimit)
	}
	return Message{Text: strings.TrimRight(b.String(), "\n")}
}

// FormatGrid renders the chart rows, two characters per cell.
func FormatGrid(c *Chart) string {
	var b strings.Builder
	for r := 0; r < Size; r++ {
		for col := 0; col < Size; col++ {
			cell := c.Cell(r, col)
			if col > 0 {
				b.WriteByte(' ')
			}
			if cell.Struck {
				b.WriteString(StruckMark)
			} else {
				fmt.Fprintf(&b, "%2d", cell.Value)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatWinners joins winner names for announcements.
func FormatWinners(winners []Player) string {
	names := make([]string, len(winners))
	for i, w := range winners {
		names[i] = w.String()
	}
	return strings.Join(names, ", ")
}
