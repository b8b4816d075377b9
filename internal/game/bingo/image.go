package bingo

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	cellPixels   = 48
	marginPixels = 8
)

var (
	colorBackground = color.RGBA{R: 0xfa, G: 0xfa, B: 0xf5, A: 0xff}
	colorGrid       = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	colorStruck     = color.RGBA{R: 0xe5, G: 0x73, B: 0x73, A: 0xff}
)

// ImageRenderer draws charts as PNG images. Scoreboards stay text.
type ImageRenderer struct {
	Text TextRenderer
}

// Chart renders the chart as a PNG with struck cells shaded.
// It falls back to text if encoding fails.
func (r ImageRenderer) Chart(v ChartView) Message {
	img, err := DrawChart(v.Chart)
	if err != nil {
		log.Warn().Err(err).Str("owner", v.Owner.String()).Msg("Failed to draw chart image, sending text")
		return r.Text.Chart(v)
	}
	return Message{
		Text:      fmt.Sprintf("%s's chart (%d/%d lines)", v.Owner, v.Score, v.ScoreLimit),
		Image:     img,
		ImageName: "chart.png",
	}
}

// Scoreboard renders the scoreboard as text.
func (r ImageRenderer) Scoreboard(s Snapshot) Message {
	return r.Text.Scoreboard(s)
}

// DrawChart encodes the chart grid as PNG.
func DrawChart(c *Chart) ([]byte, error) {
	side := 2*marginPixels + Size*cellPixels
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(img, img.Bounds(), image.NewUniform(colorBackground), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(colorGrid),
		Face: basicfont.Face7x13,
	}
	for r := 0; r < Size; r++ {
		for col := 0; col < Size; col++ {
			cell := c.Cell(r, col)
			x0 := marginPixels + col*cellPixels
			y0 := marginPixels + r*cellPixels
			rect := image.Rect(x0, y0, x0+cellPixels, y0+cellPixels)
			if cell.Struck {
				draw.Draw(img, rect.Inset(1), image.NewUniform(colorStruck), image.Point{}, draw.Src)
			}
			outline(img, rect, colorGrid)

			label := fmt.Sprint(cell.Value)
			width := d.MeasureString(label).Round()
			d.Dot = fixed.P(x0+(cellPixels-width)/2, y0+(cellPixels+basicfont.Face7x13.Ascent)/2)
			d.DrawString(label)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func outline(img *image.RGBA, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}
