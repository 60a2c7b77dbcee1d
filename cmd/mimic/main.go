package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwbudde/algo-mimic/analysis"
	"github.com/cwbudde/algo-mimic/config"
	"github.com/cwbudde/algo-mimic/internal/logging"
	"github.com/cwbudde/algo-mimic/internal/store"
	"github.com/cwbudde/algo-mimic/library"
	"github.com/cwbudde/algo-mimic/metrics"
	"github.com/cwbudde/algo-mimic/recorder"
	"github.com/cwbudde/algo-mimic/trainer"
	"github.com/cwbudde/algo-mimic/visualize"
	"gonum.org/v1/plot/vg"
)

func main() {
	configPath := flag.String("config", "", "YAML config path; empty uses built-in defaults")
	reference := flag.String("reference", "", "Reference name (WAV file stem in the references directory)")
	listRefs := flag.Bool("list-references", false, "List available references and exit")
	listDevices := flag.Bool("list-devices", false, "List audio devices and exit")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.address)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		die("%v", err)
	}
	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		die("failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	lib := library.New(cfg.Paths.ReferencesDir, cfg.Paths.RecordingsDir, cfg.Paths.PlotsDir)
	if err := lib.EnsureDirs(); err != nil {
		die("failed to create directories: %v", err)
	}
	if *listRefs {
		if err := printReferences(os.Stdout, lib); err != nil {
			die("failed to list references: %v", err)
		}
		return
	}

	backend, err := recorder.NewPortAudio()
	if err != nil {
		die("audio backend unavailable: %v", err)
	}
	rec, err := recorder.New(backend, recorder.Options{
		SampleRate: cfg.Audio.SampleRate,
		ChunkSize:  cfg.Audio.ChunkSize,
		Logger:     logger,
	})
	if err != nil {
		backend.Close()
		die("%v", err)
	}
	defer rec.Close()

	if *listDevices {
		if err := printDevices(os.Stdout, rec); err != nil {
			die("failed to list devices: %v", err)
		}
		return
	}
	if *reference == "" {
		fmt.Fprintln(os.Stderr, "Usage: mimic -reference <reference_name>")
		fmt.Fprintln(os.Stderr, "       mimic -list-references")
		os.Exit(2)
	}
	if err := selectDevices(rec, cfg.Audio); err != nil {
		die("%v", err)
	}

	st, err := store.Open(cfg.Paths.Database)
	if err != nil {
		die("failed to open attempt catalog: %v", err)
	}
	defer st.Close()

	m := metrics.New(prometheus.NewRegistry())
	addr := cfg.Metrics.Address
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		go serveMetrics(addr, m, logger)
	}

	procCfg, err := cfg.Analysis.Processor()
	if err != nil {
		die("%v", err)
	}
	proc, err := analysis.NewProcessor(procCfg, logger)
	if err != nil {
		die("%v", err)
	}

	tr, err := trainer.New(trainer.Options{
		Reference: *reference,
		Library:   lib,
		Recorder:  rec,
		Processor: proc,
		Plot:      plotOptions(cfg.Plot),
		Store:     st,
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		if errors.Is(err, library.ErrReferenceNotFound) {
			fmt.Fprintf(os.Stderr, "Reference %q not found in %s.\n", *reference, cfg.Paths.ReferencesDir)
			printReferences(os.Stderr, lib)
			os.Exit(1)
		}
		die("%v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	sh := newShell(tr, os.Stdin, os.Stdout)
	sh.defaultDuration = cfg.Audio.RecordDuration()
	sh.run(context.Background(), sig)
}

func selectDevices(rec *recorder.Recorder, cfg config.AudioConfig) error {
	if _, err := selectDevice(rec, cfg.InputDevice, true); err != nil {
		return fmt.Errorf("input device: %w", err)
	}
	if _, err := selectDevice(rec, cfg.OutputDevice, false); err != nil {
		return fmt.Errorf("output device: %w", err)
	}
	return nil
}

// selectDevice accepts a device index or a name.
func selectDevice(rec *recorder.Recorder, name string, input bool) (recorder.DeviceInfo, error) {
	if i, err := strconv.Atoi(name); err == nil {
		if input {
			return rec.SelectInputIndex(i)
		}
		return rec.SelectOutputIndex(i)
	}
	if input {
		return rec.SelectInput(name)
	}
	return rec.SelectOutput(name)
}

func plotOptions(cfg config.PlotConfig) visualize.Options {
	opts := visualize.DefaultOptions()
	opts.Width = vg.Length(cfg.Width) * vg.Inch
	opts.Height = vg.Length(cfg.Height) * vg.Inch
	opts.DPI = cfg.DPI
	return opts
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("metrics server listening", slog.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", slog.Any("error", err))
	}
}

func printReferences(w io.Writer, lib *library.Library) error {
	refs, err := lib.References()
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		fmt.Fprintf(w, "No reference recordings found in %s.\n", lib.ReferencesDir)
		return nil
	}
	fmt.Fprintln(w, "Available reference recordings:")
	for _, r := range refs {
		fmt.Fprintf(w, "- %s\n", r)
	}
	return nil
}

func printDevices(w io.Writer, rec *recorder.Recorder) error {
	devices, err := rec.Devices()
	if err != nil {
		return err
	}
	in, _ := rec.Input()
	out, _ := rec.Output()
	fmt.Fprintf(w, "%-4s %-40s %4s %4s %8s\n", "#", "Name", "In", "Out", "Rate")
	for _, d := range devices {
		marker := ""
		if d.MaxInputChannels > 0 && d.Index == in.Index && d.Name == in.Name {
			marker += " [input]"
		}
		if d.MaxOutputChannels > 0 && d.Index == out.Index && d.Name == out.Name {
			marker += " [output]"
		}
		fmt.Fprintf(w, "%-4d %-40s %4d %4d %8.0f%s\n",
			d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, marker)
	}
	return nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
