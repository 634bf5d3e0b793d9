package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Series is a named sequence of analog values in [0, 1].
type Series struct {
	Name   string
	Values []float64
}

const (
	defaultPlotHeight   = 8
	minPlotWidth        = 10
	axisWidth           = 4
	axisSeparator       = " │ "
	terminalWidthBackup = 80
)

var seriesColors = []lipgloss.Color{"#4FC3F7", "#E57373", "#FFD54F", "#81C784", "#BA68C8"}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	width := totalWidth - axisWidth - len([]rune(axisSeparator))
	if width < minPlotWidth {
		width = minPlotWidth
	}
	return width
}

// TerminalPlotWidth returns a plot width for the current stdout terminal.
func TerminalPlotWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = terminalWidthBackup
	}
	return PlotWidthFor(width)
}

// PlotIntensity renders series on a fixed 0..1 vertical scale using braille
// cells, two samples per column. Long series are downsampled by keeping the
// peak of each bucket so that short presses stay visible.
func PlotIntensity(w io.Writer, title string, series []Series, width, height int, useColor bool) error {
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}
	dotsX, dotsY := width*2, height*4
	layers := make([][][]uint8, 0, len(series))
	for _, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		cells := make([][]uint8, height)
		for y := range cells {
			cells[y] = make([]uint8, width)
		}
		prevX, prevY := -1, -1
		for x, v := range peakResample(s.Values, dotsX) {
			y := int(math.Round((1 - clamp01(v)) * float64(dotsY-1)))
			if prevX < 0 {
				setDot(cells, x, y)
			} else {
				drawLine(prevX, prevY, x, y, func(px, py int) { setDot(cells, px, py) })
			}
			prevX, prevY = x, y
		}
		layers = append(layers, cells)
	}
	if len(layers) == 0 {
		return nil
	}

	var b strings.Builder
	if title != "" {
		b.WriteString(title + "\n")
	}
	for y := 0; y < height; y++ {
		label := ""
		switch y {
		case 0:
			label = "1.0"
		case height / 2:
			label = "0.5"
		case height - 1:
			label = "0.0"
		}
		fmt.Fprintf(&b, "%*s%s", axisWidth, label, axisSeparator)
		for x := 0; x < width; x++ {
			var mask uint8
			owner := -1
			for i, cells := range layers {
				if cells[y][x] != 0 {
					mask |= cells[y][x]
					if owner < 0 {
						owner = i
					}
				}
			}
			ch := string(rune(0x2800 + int(mask)))
			if useColor && owner >= 0 {
				ch = lipgloss.NewStyle().Foreground(seriesColors[owner%len(seriesColors)]).Render(ch)
			}
			b.WriteString(ch)
		}
		b.WriteByte('\n')
	}
	legend := make([]string, 0, len(series))
	i := 0
	for _, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		label := "⣿ " + s.Name
		if useColor {
			label = lipgloss.NewStyle().Foreground(seriesColors[i%len(seriesColors)]).Render(label)
		}
		legend = append(legend, label)
		i++
	}
	b.WriteString("Legend: " + strings.Join(legend, "  ") + "\n\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// UseColor reports whether colored output should be written to w.
func UseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func peakResample(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	out := make([]float64, n)
	for i := range out {
		start := i * len(values) / n
		end := (i + 1) * len(values) / n
		if end <= start {
			end = start + 1
		}
		peak := values[start]
		for _, v := range values[start+1 : end] {
			peak = math.Max(peak, v)
		}
		out[i] = peak
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// drawLine walks the Bresenham line from (x0, y0) to (x1, y1).
func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx, sx := abs(x1-x0), 1
	if x0 > x1 {
		sx = -1
	}
	dy, sy := -abs(y1-y0), 1
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		if e2 := 2 * e; e2 >= dy {
			e += dy
			x0 += sx
		} else {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// brailleBits maps a dot position (column, row) inside a cell to its bit.
var brailleBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

func setDot(cells [][]uint8, x, y int) {
	cy, cx := y/4, x/2
	if x < 0 || y < 0 || cy >= len(cells) || cx >= len(cells[cy]) {
		return
	}
	cells[cy][cx] |= brailleBits[x%2][y%4]
}
