package analysis

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/algo-mimic/clip"
)

// Config controls feature extraction.
type Config struct {
	// FrameLength is the energy window and spectral frame size in samples.
	FrameLength int
	// HopLength is the envelope decimation step and spectral hop in samples.
	HopLength int
	// CutoffHz is the envelope smoothing low-pass cutoff.
	CutoffHz float64
	Method   EnvelopeMethod
	// TrimSilenceDB trims leading/trailing silence quieter than this many dB
	// below the loudest frame. Zero disables trimming.
	TrimSilenceDB float64
	// Normalize scales the waveform to unit peak before extraction.
	Normalize bool
}

// DefaultConfig matches the trainer's stock settings.
func DefaultConfig() Config {
	return Config{
		FrameLength: 2048,
		HopLength:   512,
		CutoffHz:    20,
		Method:      EnvelopeRectify,
	}
}

// Validate checks frame and hop sizes.
func (c Config) Validate() error {
	if c.FrameLength < 2 || c.FrameLength&(c.FrameLength-1) != 0 {
		return fmt.Errorf("frame_length must be a power of two >= 2, got %d", c.FrameLength)
	}
	if c.HopLength <= 0 || c.HopLength > c.FrameLength {
		return fmt.Errorf("hop_length must be in [1, frame_length], got %d", c.HopLength)
	}
	if c.CutoffHz < 0 {
		return fmt.Errorf("cutoff must be >= 0, got %f", c.CutoffHz)
	}
	if c.TrimSilenceDB < 0 {
		return fmt.Errorf("trim_silence_db must be >= 0, got %f", c.TrimSilenceDB)
	}
	if _, err := ParseEnvelopeMethod(string(c.Method)); err != nil {
		return err
	}
	return nil
}

// Features are the derived sequences of one clip.
type Features struct {
	SampleRate  int `json:"sample_rate"`
	FrameLength int `json:"frame_length"`
	HopLength   int `json:"hop_length"`

	Waveform []float64 `json:"-"`
	Envelope []float64 `json:"-"`
	Energy   []float64 `json:"-"`
	Centroid []float64 `json:"-"`
}

// Summary condenses Features into a few printable numbers.
type Summary struct {
	Samples        int     `json:"samples"`
	SampleRate     int     `json:"sample_rate"`
	Seconds        float64 `json:"seconds"`
	Peak           float64 `json:"peak"`
	RMS            float64 `json:"rms"`
	EnvelopeFrames int     `json:"envelope_frames"`
	EnvelopePeak   float64 `json:"envelope_peak"`
	EnergyFrames   int     `json:"energy_frames"`
	EnergyTotal    float64 `json:"energy_total"`
	MeanCentroidHz float64 `json:"mean_centroid_hz"`
}

func (f *Features) Summary() Summary {
	s := Summary{
		Samples:        len(f.Waveform),
		SampleRate:     f.SampleRate,
		Peak:           peakAbs(f.Waveform),
		RMS:            rms1(f.Waveform),
		EnvelopeFrames: len(f.Envelope),
		EnvelopePeak:   peakAbs(f.Envelope),
		EnergyFrames:   len(f.Energy),
		MeanCentroidHz: mean(f.Centroid),
	}
	if f.SampleRate > 0 {
		s.Seconds = float64(len(f.Waveform)) / float64(f.SampleRate)
	}
	for _, e := range f.Energy {
		s.EnergyTotal += e
	}
	return s
}

// Comparison holds the features of a reference and an attempt, extracted
// with the same settings at the same sample rate.
type Comparison struct {
	Reference *Features
	Attempt   *Features
}

// Processor extracts features from clips. It is stateless apart from its
// configuration and safe for concurrent use.
type Processor struct {
	cfg    Config
	logger *slog.Logger
}

func NewProcessor(cfg Config, logger *slog.Logger) (*Processor, error) {
	if cfg.Method == "" {
		cfg.Method = EnvelopeRectify
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{cfg: cfg, logger: logger}, nil
}

func (p *Processor) Config() Config { return p.cfg }

// Extract computes the waveform, envelope, energy contour and spectral
// centroid of c.
func (p *Processor) Extract(c *clip.Clip) (*Features, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	x := c.Samples
	if p.cfg.TrimSilenceDB > 0 {
		x = TrimSilence(x, p.cfg.TrimSilenceDB)
	}
	if p.cfg.Normalize {
		x = Normalize(x)
	}

	env, err := Envelope(x, c.SampleRate, p.cfg.HopLength, p.cfg.CutoffHz, p.cfg.Method)
	if err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}
	centroid, err := SpectralCentroid(x, c.SampleRate, p.cfg.FrameLength, p.cfg.HopLength)
	if err != nil {
		return nil, fmt.Errorf("spectral centroid: %w", err)
	}
	return &Features{
		SampleRate:  c.SampleRate,
		FrameLength: p.cfg.FrameLength,
		HopLength:   p.cfg.HopLength,
		Waveform:    x,
		Envelope:    env,
		Energy:      EnergyContour(x, p.cfg.FrameLength),
		Centroid:    centroid,
	}, nil
}

// Compare extracts features for both clips. An attempt recorded at a
// different rate is resampled to the reference rate first, keeping its
// playing time to the nearest sample.
func (p *Processor) Compare(reference, attempt *clip.Clip) (*Comparison, error) {
	if err := reference.Validate(); err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	if err := attempt.Validate(); err != nil {
		return nil, fmt.Errorf("attempt: %w", err)
	}
	if attempt.SampleRate != reference.SampleRate {
		p.logger.Warn("sample rate mismatch, resampling attempt",
			slog.Int("reference_rate", reference.SampleRate),
			slog.Int("attempt_rate", attempt.SampleRate),
		)
		n := int(math.Round(float64(attempt.Len()) * float64(reference.SampleRate) / float64(attempt.SampleRate)))
		resampled, err := attempt.Resample(reference.SampleRate)
		if err != nil {
			return nil, err
		}
		attempt = &clip.Clip{Samples: MatchLength(resampled.Samples, n), SampleRate: reference.SampleRate}
	}

	ref, err := p.Extract(reference)
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	att, err := p.Extract(attempt)
	if err != nil {
		return nil, fmt.Errorf("attempt: %w", err)
	}
	return &Comparison{Reference: ref, Attempt: att}, nil
}
