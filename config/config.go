// Package config loads the trainer settings from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-mimic/analysis"
)

// Environment variables that override device selection.
const (
	EnvInputDevice  = "MIMIC_INPUT_DEVICE"
	EnvOutputDevice = "MIMIC_OUTPUT_DEVICE"
)

type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Paths    PathsConfig    `yaml:"paths"`
	Plot     PlotConfig     `yaml:"plot"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AudioConfig holds capture and playback settings.
type AudioConfig struct {
	SampleRate int     `yaml:"sample_rate"`
	Channels   int     `yaml:"channels"`
	Duration   float64 `yaml:"duration"` // seconds, default length of a timed recording
	ChunkSize  int     `yaml:"chunk_size"`
	// Device names; empty selects automatically.
	InputDevice  string `yaml:"input_device"`
	OutputDevice string `yaml:"output_device"`
}

type AnalysisConfig struct {
	FrameLength      int     `yaml:"frame_length"`
	HopLength        int     `yaml:"hop_length"`
	EnvelopeCutoffHz float64 `yaml:"envelope_cutoff_hz"`
	EnvelopeMethod   string  `yaml:"envelope_method"`
	TrimSilenceDB    float64 `yaml:"trim_silence_db"` // 0 disables trimming
	Normalize        bool    `yaml:"normalize"`
}

// PathsConfig locates reference clips, saved attempts, plots and the
// attempt catalog. Relative paths are resolved against the directory of
// the config file.
type PathsConfig struct {
	ReferencesDir string `yaml:"references_dir"`
	RecordingsDir string `yaml:"recordings_dir"`
	PlotsDir      string `yaml:"plots_dir"`
	Database      string `yaml:"database"`
}

// PlotConfig sizes rendered figures in inches.
type PlotConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	DPI    int     `yaml:"dpi"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 44100,
			Channels:   1,
			Duration:   5,
			ChunkSize:  1024,
		},
		Analysis: AnalysisConfig{
			FrameLength:      2048,
			HopLength:        512,
			EnvelopeCutoffHz: 20,
			EnvelopeMethod:   string(analysis.EnvelopeRectify),
		},
		Paths: PathsConfig{
			ReferencesDir: "references",
			RecordingsDir: "recordings",
			PlotsDir:      "plots",
			Database:      "mimic.db",
		},
		Plot: PlotConfig{
			Width:  10,
			Height: 6,
			DPI:    100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the YAML file at path on top of Default, applies environment
// overrides and validates the result. An empty path uses the defaults with
// paths relative to the working directory.
func Load(path string) (*Config, error) {
	cfg := Default()
	base := "."
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		base = filepath.Dir(path)
	}
	cfg.Paths.resolve(base)
	cfg.Logging.resolve(base)
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvInputDevice); ok {
		c.Audio.InputDevice = v
	}
	if v, ok := os.LookupEnv(EnvOutputDevice); ok {
		c.Audio.OutputDevice = v
	}
}

func (p *PathsConfig) resolve(base string) {
	for _, s := range []*string{&p.ReferencesDir, &p.RecordingsDir, &p.PlotsDir, &p.Database} {
		if *s != "" && !filepath.IsAbs(*s) {
			*s = filepath.Clean(filepath.Join(base, *s))
		}
	}
}

// resolve places a relative log file next to the config file.
func (l *LoggingConfig) resolve(base string) {
	switch l.Output {
	case "", "stdout", "stderr":
		return
	}
	if !filepath.IsAbs(l.Output) {
		l.Output = filepath.Clean(filepath.Join(base, l.Output))
	}
}

func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis config: %w", err)
	}
	if c.Analysis.EnvelopeCutoffHz >= float64(c.Audio.SampleRate)/2 {
		return fmt.Errorf("analysis config: envelope_cutoff_hz (%g) must be below half the sample rate (%d)",
			c.Analysis.EnvelopeCutoffHz, c.Audio.SampleRate)
	}
	if err := c.Paths.Validate(); err != nil {
		return fmt.Errorf("paths config: %w", err)
	}
	if err := c.Plot.Validate(); err != nil {
		return fmt.Errorf("plot config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	if a.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", a.SampleRate)
	}
	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}
	if a.Duration < 0 {
		return fmt.Errorf("duration cannot be negative, got %g", a.Duration)
	}
	if a.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be at least 1, got %d", a.ChunkSize)
	}
	return nil
}

// RecordDuration returns Duration as a time.Duration.
func (a *AudioConfig) RecordDuration() time.Duration {
	return time.Duration(a.Duration * float64(time.Second))
}

func (a *AnalysisConfig) Validate() error {
	_, err := a.Processor()
	return err
}

// Processor converts the section into analysis settings.
func (a *AnalysisConfig) Processor() (analysis.Config, error) {
	method, err := analysis.ParseEnvelopeMethod(a.EnvelopeMethod)
	if err != nil {
		return analysis.Config{}, err
	}
	cfg := analysis.Config{
		FrameLength:   a.FrameLength,
		HopLength:     a.HopLength,
		CutoffHz:      a.EnvelopeCutoffHz,
		Method:        method,
		TrimSilenceDB: a.TrimSilenceDB,
		Normalize:     a.Normalize,
	}
	if err := cfg.Validate(); err != nil {
		return analysis.Config{}, err
	}
	return cfg, nil
}

func (p *PathsConfig) Validate() error {
	if p.ReferencesDir == "" {
		return fmt.Errorf("references_dir cannot be empty")
	}
	if p.RecordingsDir == "" {
		return fmt.Errorf("recordings_dir cannot be empty")
	}
	if p.PlotsDir == "" {
		return fmt.Errorf("plots_dir cannot be empty")
	}
	return nil
}

func (p *PlotConfig) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("width and height must be positive, got %gx%g", p.Width, p.Height)
	}
	if p.DPI < 1 {
		return fmt.Errorf("dpi must be at least 1, got %d", p.DPI)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}
	return nil
}
