package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-mimic/analysis"
	"github.com/cwbudde/algo-mimic/clip"
	"github.com/cwbudde/algo-mimic/visualize"
	"gonum.org/v1/plot/vg"
)

type report struct {
	ReferencePath string           `json:"reference_path"`
	AttemptPath   string           `json:"attempt_path"`
	PlotPath      string           `json:"plot_path,omitempty"`
	Method        string           `json:"envelope_method"`
	Reference     analysis.Summary `json:"reference"`
	Attempt       analysis.Summary `json:"attempt"`
}

func main() {
	referencePath := flag.String("reference", "", "Reference WAV path")
	attemptPath := flag.String("attempt", "", "Attempt WAV path")
	outPath := flag.String("out", "comparison.png", "Output PNG path; empty skips plotting")
	frame := flag.Int("frame", 2048, "Analysis frame length in samples (power of two)")
	hop := flag.Int("hop", 512, "Envelope hop length in samples")
	cutoff := flag.Float64("cutoff", 20, "Envelope smoothing cutoff in Hz")
	method := flag.String("method", "rectify", "Envelope method: rectify, hilbert, peak or follower")
	trimDB := flag.Float64("trim-db", 0, "Trim leading/trailing silence below this many dB under peak (0 disables)")
	normalize := flag.Bool("normalize", false, "Peak-normalize both clips before analysis")
	width := flag.Float64("width", 10, "Plot width in inches")
	height := flag.Float64("height", 6, "Plot height in inches")
	dpi := flag.Int("dpi", 100, "Plot resolution")
	jsonOut := flag.Bool("json", false, "Print feature summaries as JSON")
	flag.Parse()

	if *referencePath == "" || *attemptPath == "" {
		die("usage: mimic-compare -reference ref.wav -attempt attempt.wav [-out plot.png] [-json]")
	}

	m, err := analysis.ParseEnvelopeMethod(*method)
	if err != nil {
		die("%v", err)
	}
	proc, err := analysis.NewProcessor(analysis.Config{
		FrameLength:   *frame,
		HopLength:     *hop,
		CutoffHz:      *cutoff,
		Method:        m,
		TrimSilenceDB: *trimDB,
		Normalize:     *normalize,
	}, nil)
	if err != nil {
		die("invalid analysis settings: %v", err)
	}

	ref, err := clip.Load(*referencePath)
	if err != nil {
		die("failed to read reference: %v", err)
	}
	att, err := clip.Load(*attemptPath)
	if err != nil {
		die("failed to read attempt: %v", err)
	}
	if att.SampleRate != ref.SampleRate {
		fmt.Fprintf(os.Stderr, "warning: attempt is %d Hz, reference is %d Hz; resampling attempt\n", att.SampleRate, ref.SampleRate)
	}

	cmp, err := proc.Compare(ref, att)
	if err != nil {
		die("analysis failed: %v", err)
	}

	if *outPath != "" {
		opts := visualize.DefaultOptions()
		opts.Width = vg.Length(*width) * vg.Inch
		opts.Height = vg.Length(*height) * vg.Inch
		opts.DPI = *dpi
		if err := visualize.RenderComparison(*outPath, cmp, opts); err != nil {
			die("failed to render plot: %v", err)
		}
	}

	rep := report{
		ReferencePath: *referencePath,
		AttemptPath:   *attemptPath,
		PlotPath:      *outPath,
		Method:        string(m),
		Reference:     cmp.Reference.Summary(),
		Attempt:       cmp.Attempt.Summary(),
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("Sample rate:      %d Hz\n", rep.Reference.SampleRate)
	fmt.Printf("Envelope method:  %s (cutoff %.1f Hz, hop %d)\n", rep.Method, *cutoff, *hop)
	fmt.Println()
	fmt.Printf("Feature            Reference      Attempt\n")
	fmt.Printf("──────────────────────────────────────────\n")
	row := func(name, format string, a, b any) {
		fmt.Printf("%-16s "+format+"  "+format+"\n", name, a, b)
	}
	row("Duration (s)", "%11.3f", rep.Reference.Seconds, rep.Attempt.Seconds)
	row("Peak", "%11.4f", rep.Reference.Peak, rep.Attempt.Peak)
	row("RMS", "%11.4f", rep.Reference.RMS, rep.Attempt.RMS)
	row("Envelope frames", "%11d", rep.Reference.EnvelopeFrames, rep.Attempt.EnvelopeFrames)
	row("Envelope peak", "%11.4f", rep.Reference.EnvelopePeak, rep.Attempt.EnvelopePeak)
	row("Energy frames", "%11d", rep.Reference.EnergyFrames, rep.Attempt.EnergyFrames)
	row("Energy total", "%11.3f", rep.Reference.EnergyTotal, rep.Attempt.EnergyTotal)
	row("Centroid (Hz)", "%11.1f", rep.Reference.MeanCentroidHz, rep.Attempt.MeanCentroidHz)
	fmt.Printf("──────────────────────────────────────────\n")
	if *outPath != "" {
		fmt.Printf("Plot written to %s\n", *outPath)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
