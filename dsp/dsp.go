// Package dsp holds the small filters used to smooth rectified audio into
// amplitude envelopes.
package dsp

import (
	"math"

	approx "github.com/cwbudde/algo-approx"
	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// Biquad implements a second-order IIR filter (no heap allocations in Process)
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 float64 // input history
	y1, y2 float64 // output history
}

// NewBiquad creates a new biquad filter with coefficients normalized by a0.
func NewBiquad(b0, b1, b2, a1, a2 float64) *Biquad {
	return &Biquad{b0: b0, b1: b1, b2: b2, a1: a1, a2: a2}
}

// NewLowpass creates an RBJ lowpass. The cutoff is clamped below Nyquist.
func NewLowpass(cutoff, sampleRate, q float64) *Biquad {
	if q <= 0 {
		q = math.Sqrt2 / 2
	}
	if nyq := 0.49 * sampleRate; cutoff > nyq {
		cutoff = nyq
	}
	w0 := 2.0 * math.Pi * cutoff / sampleRate
	alpha := math.Sin(w0) / (2.0 * q)
	cosw0 := math.Cos(w0)

	b0 := (1.0 - cosw0) / 2.0
	b1 := 1.0 - cosw0
	b2 := (1.0 - cosw0) / 2.0
	a0 := 1.0 + alpha
	a1 := -2.0 * cosw0
	a2 := 1.0 - alpha

	return NewBiquad(b0/a0, b1/a0, b2/a0, a1/a0, a2/a0)
}

// Process processes one sample (Direct Form I).
func (b *Biquad) Process(input float64) float64 {
	output := b.b0*input + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	output = dspcore.FlushDenormals(output)

	b.x2 = b.x1
	b.x1 = input
	b.y2 = b.y1
	b.y1 = output
	return output
}

// ProcessBlock filters in into a new slice.
func (b *Biquad) ProcessBlock(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = b.Process(v)
	}
	return out
}

// Reset clears the filter state
func (b *Biquad) Reset() {
	b.x1, b.x2 = 0, 0
	b.y1, b.y2 = 0, 0
}

// Follower is a peak envelope follower with separate attack and release
// time constants.
type Follower struct {
	attack  float64
	release float64
	state   float64
}

// NewFollower builds a follower; times are in seconds.
func NewFollower(attackSec, releaseSec, sampleRate float64) *Follower {
	return &Follower{
		attack:  timeConstant(attackSec, sampleRate),
		release: timeConstant(releaseSec, sampleRate),
	}
}

// Process feeds one sample and returns the current envelope value.
func (f *Follower) Process(x float64) float64 {
	x = math.Abs(x)
	c := f.release
	if x > f.state {
		c = f.attack
	}
	f.state = dspcore.FlushDenormals(x + c*(f.state-x))
	return f.state
}

func (f *Follower) Reset() { f.state = 0 }

// timeConstant returns the one-pole coefficient exp(-1/(t*fs)); zero time
// gives an instantaneous response.
func timeConstant(sec, sampleRate float64) float64 {
	if sec <= 0 || sampleRate <= 0 {
		return 0
	}
	return float64(approx.FastExp(float32(-1.0 / (sec * sampleRate))))
}
