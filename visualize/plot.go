// Package visualize renders stacked line plots of waveforms and derived
// features to PNG.
package visualize

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Series is one line in a panel. X values are implied: point i is drawn at
// i/len(Values), so series of different lengths share a normalized time axis.
type Series struct {
	Name   string
	Values []float64
	Color  color.Color
	// Faint draws the line thinner, for dense waveforms.
	Faint bool
}

// Panel is one sub-plot.
type Panel struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series
}

// Options controls the output image.
type Options struct {
	Width  vg.Length
	Height vg.Length
	DPI    int
	// MaxPoints bounds the points drawn per series; longer series are
	// reduced to min/max pairs per bucket.
	MaxPoints int
}

// DefaultOptions gives a 10x6 inch image at 100 dpi.
func DefaultOptions() Options {
	return Options{
		Width:     10 * vg.Inch,
		Height:    6 * vg.Inch,
		DPI:       100,
		MaxPoints: 4000,
	}
}

var (
	ReferenceColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	AttemptColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Render draws the panels stacked vertically and writes a PNG to w.
func Render(w io.Writer, panels []Panel, opts Options) error {
	if len(panels) == 0 {
		return errors.New("no panels to render")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("invalid image size %vx%v", opts.Width, opts.Height)
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultOptions().DPI
	}

	plots := make([][]*plot.Plot, len(panels))
	for i, p := range panels {
		pl, err := newPlot(p, opts.MaxPoints)
		if err != nil {
			return fmt.Errorf("panel %q: %w", p.Title, err)
		}
		plots[i] = []*plot.Plot{pl}
	}

	img := vgimg.NewWith(vgimg.UseWH(opts.Width, opts.Height), vgimg.UseDPI(opts.DPI))
	dc := draw.New(img)
	t := draw.Tiles{
		Rows:      len(panels),
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      2 * vg.Millimeter,
		PadTop:    2 * vg.Millimeter,
		PadBottom: 2 * vg.Millimeter,
		PadLeft:   2 * vg.Millimeter,
		PadRight:  2 * vg.Millimeter,
	}
	canvases := plot.Align(plots, t, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// RenderFile renders to path, creating parent directories.
func RenderFile(path string, panels []Panel, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Render(f, panels, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newPlot(p Panel, maxPoints int) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = p.Title
	pl.X.Label.Text = p.XLabel
	pl.Y.Label.Text = p.YLabel
	pl.Legend.Top = true
	pl.Add(plotter.NewGrid())

	drawn := 0
	for _, s := range p.Series {
		pts := points(s.Values, maxPoints)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Name, err)
		}
		line.LineStyle.Width = vg.Points(1)
		if s.Faint {
			line.LineStyle.Width = vg.Points(0.5)
		}
		if s.Color != nil {
			line.LineStyle.Color = s.Color
		}
		pl.Add(line)
		if s.Name != "" {
			pl.Legend.Add(s.Name, line)
		}
		drawn++
	}
	if drawn == 0 {
		pl.X.Min, pl.X.Max = 0, 1
		pl.Y.Min, pl.Y.Max = -1, 1
	}
	return pl, nil
}

// points maps values onto normalized time, skipping non-finite samples and
// decimating long series.
func points(values []float64, maxPoints int) plotter.XYs {
	n := len(values)
	if n == 0 {
		return nil
	}
	if maxPoints < 2 || n <= maxPoints {
		pts := make(plotter.XYs, 0, n)
		for i, v := range values {
			if isFinite(v) {
				pts = append(pts, plotter.XY{X: float64(i) / float64(n), Y: v})
			}
		}
		return pts
	}
	return minMaxDecimate(values, maxPoints/2)
}

// minMaxDecimate keeps the minimum and maximum of each bucket in time order
// so peaks survive downsampling.
func minMaxDecimate(values []float64, buckets int) plotter.XYs {
	n := len(values)
	pts := make(plotter.XYs, 0, 2*buckets)
	for b := 0; b < buckets; b++ {
		start := b * n / buckets
		end := (b + 1) * n / buckets
		if end <= start {
			continue
		}
		lo, hi := -1, -1
		for i := start; i < end; i++ {
			v := values[i]
			if !isFinite(v) {
				continue
			}
			if lo < 0 || v < values[lo] {
				lo = i
			}
			if hi < 0 || v > values[hi] {
				hi = i
			}
		}
		if lo < 0 {
			continue
		}
		first, second := lo, hi
		if hi < lo {
			first, second = hi, lo
		}
		pts = append(pts, plotter.XY{X: float64(first) / float64(n), Y: values[first]})
		if second != first {
			pts = append(pts, plotter.XY{X: float64(second) / float64(n), Y: values[second]})
		}
	}
	return pts
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
