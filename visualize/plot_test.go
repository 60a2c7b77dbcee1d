package visualize

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-mimic/analysis"
	"github.com/cwbudde/algo-mimic/clip"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func sine(n int, freq float64, sr int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sr))
	}
	return x
}

func smallOptions() Options {
	o := DefaultOptions()
	o.Width = 300
	o.Height = 200
	o.DPI = 72
	return o
}

func TestRenderWritesPNG(t *testing.T) {
	panels := []Panel{
		{Title: "A", Series: []Series{{Name: "s", Values: sine(1000, 5, 1000)}}},
		{Title: "B", Series: []Series{{Name: "t", Values: []float64{1, 2, 3}}}},
	}
	var buf bytes.Buffer
	if err := Render(&buf, panels, smallOptions()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Fatalf("output is not a PNG")
	}
}

func TestRenderEmptySeries(t *testing.T) {
	panels := []Panel{{Title: "empty", Series: []Series{{Name: "none"}}}}
	var buf bytes.Buffer
	if err := Render(&buf, panels, smallOptions()); err != nil {
		t.Fatalf("Render with empty series: %v", err)
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, nil, smallOptions()); err == nil {
		t.Fatalf("expected error for no panels")
	}
	o := smallOptions()
	o.Width = 0
	if err := Render(&buf, []Panel{{Title: "x"}}, o); err == nil {
		t.Fatalf("expected error for zero width")
	}
}

func TestPointsNormalizedTime(t *testing.T) {
	pts := points([]float64{1, math.NaN(), 3, 4}, 0)
	if len(pts) != 3 {
		t.Fatalf("len=%d want 3", len(pts))
	}
	if pts[0].X != 0 || pts[2].X != 0.75 {
		t.Fatalf("x positions %v", pts)
	}
}

func TestMinMaxDecimateKeepsPeaks(t *testing.T) {
	x := make([]float64, 10000)
	x[1234] = 5
	x[8765] = -7
	pts := points(x, 100)
	if len(pts) > 100 {
		t.Fatalf("len=%d exceeds bound", len(pts))
	}
	var hi, lo float64
	prev := -1.0
	for _, p := range pts {
		if p.X < prev {
			t.Fatalf("points not in time order")
		}
		prev = p.X
		hi = math.Max(hi, p.Y)
		lo = math.Min(lo, p.Y)
	}
	if hi != 5 || lo != -7 {
		t.Fatalf("peaks lost: max=%g min=%g", hi, lo)
	}
}

func TestRenderComparisonFile(t *testing.T) {
	proc, err := analysis.NewProcessor(analysis.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := clip.New(sine(8000, 220, 8000), 8000)
	if err != nil {
		t.Fatal(err)
	}
	att, err := clip.New(sine(6000, 200, 8000), 8000)
	if err != nil {
		t.Fatal(err)
	}
	cmp, err := proc.Compare(ref, att)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	panels := ComparisonPanels(cmp.Reference, cmp.Attempt)
	if len(panels) != 3 {
		t.Fatalf("panels=%d want 3", len(panels))
	}
	for _, v := range panels[2].Series[0].Values {
		if v > 1 {
			t.Fatalf("energy not normalized: %g", v)
		}
	}

	path := filepath.Join(t.TempDir(), "plots", "cmp.png")
	if err := RenderComparison(path, cmp, smallOptions()); err != nil {
		t.Fatalf("RenderComparison: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Fatalf("file is not a PNG")
	}
}
