// Package clip holds the in-memory audio buffer passed between recording,
// playback, analysis and plotting.
package clip

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-mimic/internal/wavio"
)

// ErrInvalidSampleRate is returned for clips whose sample rate is not positive.
var ErrInvalidSampleRate = errors.New("sample rate must be > 0")

// Clip is a mono sequence of samples in [-1, 1] at a fixed sample rate.
type Clip struct {
	Samples    []float64
	SampleRate int
}

// New returns a clip over samples. The slice is not copied.
func New(samples []float64, sampleRate int) (*Clip, error) {
	c := &Clip{Samples: samples, SampleRate: sampleRate}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Empty returns a clip with no samples.
func Empty(sampleRate int) *Clip {
	return &Clip{Samples: []float64{}, SampleRate: sampleRate}
}

// Validate checks the sample rate invariant.
func (c *Clip) Validate() error {
	if c == nil {
		return errors.New("nil clip")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSampleRate, c.SampleRate)
	}
	return nil
}

func (c *Clip) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Samples)
}

// IsEmpty reports whether the clip holds no samples.
func (c *Clip) IsEmpty() bool { return c.Len() == 0 }

// Seconds returns the clip length in seconds.
func (c *Clip) Seconds() float64 {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

func (c *Clip) Duration() time.Duration {
	return time.Duration(c.Seconds() * float64(time.Second))
}

// Peak returns the largest absolute sample value.
func (c *Clip) Peak() float64 {
	if c == nil {
		return 0
	}
	var peak float64
	for _, v := range c.Samples {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// Resample returns the clip converted to rate. A clip already at rate is
// returned unchanged.
func (c *Clip) Resample(rate int) (*Clip, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if rate <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSampleRate, rate)
	}
	if rate == c.SampleRate {
		return c, nil
	}
	out, err := wavio.Resample(c.Samples, c.SampleRate, rate)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d: %w", c.SampleRate, rate, err)
	}
	return &Clip{Samples: out, SampleRate: rate}, nil
}

// Load reads a WAV file into a mono clip.
func Load(path string) (*Clip, error) {
	samples, sr, err := wavio.ReadMono(path)
	if err != nil {
		return nil, err
	}
	return New(samples, sr)
}

// Save writes the clip as 16-bit PCM mono WAV.
func (c *Clip) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return wavio.WriteMono(path, c.Samples, c.SampleRate)
}
