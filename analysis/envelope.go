package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/cwbudde/algo-mimic/dsp"
)

// EnvelopeMethod selects how the amplitude envelope is computed.
type EnvelopeMethod string

const (
	// EnvelopeRectify rectifies the signal and low-passes it.
	EnvelopeRectify EnvelopeMethod = "rectify"
	// EnvelopeHilbert takes the magnitude of the FFT analytic signal, then
	// low-passes it.
	EnvelopeHilbert EnvelopeMethod = "hilbert"
	// EnvelopePeak is the largest absolute sample in each hop.
	EnvelopePeak EnvelopeMethod = "peak"
	// EnvelopeFollower runs an attack/release peak follower.
	EnvelopeFollower EnvelopeMethod = "follower"
)

// ParseEnvelopeMethod validates a method name; empty selects EnvelopeRectify.
func ParseEnvelopeMethod(s string) (EnvelopeMethod, error) {
	switch m := EnvelopeMethod(s); m {
	case "":
		return EnvelopeRectify, nil
	case EnvelopeRectify, EnvelopeHilbert, EnvelopePeak, EnvelopeFollower:
		return m, nil
	default:
		return "", fmt.Errorf("unknown envelope method %q (use rectify, hilbert, peak or follower)", s)
	}
}

// Envelope computes the amplitude envelope of x with the given method and
// returns one value per hop samples (ceil(len(x)/hop) values).
func Envelope(x []float64, sampleRate int, hop int, cutoffHz float64, method EnvelopeMethod) ([]float64, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0, got %d", sampleRate)
	}
	if hop <= 0 {
		return nil, fmt.Errorf("hop must be > 0, got %d", hop)
	}
	if len(x) == 0 {
		return []float64{}, nil
	}
	switch method {
	case EnvelopeRectify, "":
		return decimate(smooth(rectify(x), sampleRate, cutoffHz), hop), nil
	case EnvelopeHilbert:
		return decimate(smooth(analyticMagnitude(x), sampleRate, cutoffHz), hop), nil
	case EnvelopePeak:
		return PeakEnvelope(x, hop), nil
	case EnvelopeFollower:
		f := dsp.NewFollower(0.005, releaseFromCutoff(cutoffHz), float64(sampleRate))
		y := make([]float64, len(x))
		for i, v := range x {
			y[i] = f.Process(v)
		}
		return decimate(y, hop), nil
	default:
		return nil, fmt.Errorf("unknown envelope method %q", method)
	}
}

// PeakEnvelope returns max |x| over each frame, including a trailing partial
// frame.
func PeakEnvelope(x []float64, frame int) []float64 {
	if frame <= 0 {
		return nil
	}
	out := make([]float64, 0, (len(x)+frame-1)/frame)
	for i := 0; i < len(x); i += frame {
		end := i + frame
		if end > len(x) {
			end = len(x)
		}
		out = append(out, peakAbs(x[i:end]))
	}
	return out
}

func rectify(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Abs(v)
	}
	return out
}

// smooth low-passes a non-negative signal. Filter overshoot is clamped at 0.
func smooth(x []float64, sampleRate int, cutoffHz float64) []float64 {
	if cutoffHz <= 0 {
		return x
	}
	lp := dsp.NewLowpass(cutoffHz, float64(sampleRate), math.Sqrt2/2)
	out := lp.ProcessBlock(x)
	for i, v := range out {
		if v < 0 {
			out[i] = 0
		}
	}
	return out
}

func decimate(x []float64, hop int) []float64 {
	out := make([]float64, 0, (len(x)+hop-1)/hop)
	for i := 0; i < len(x); i += hop {
		out = append(out, x[i])
	}
	return out
}

// analyticMagnitude zero-pads to a power of two, suppresses negative
// frequencies and returns |IFFT| over the original length.
func analyticMagnitude(x []float64) []float64 {
	n := nextPow2(len(x))
	padded := make([]float64, n)
	copy(padded, x)

	spec := fft.FFTReal(padded)
	for k := 1; k < n; k++ {
		switch {
		case k < n/2:
			spec[k] *= 2
		case k > n/2:
			spec[k] = 0
		}
	}
	analytic := fft.IFFT(spec)

	out := make([]float64, len(x))
	for i := range out {
		out[i] = cmplx.Abs(analytic[i])
	}
	return out
}

func releaseFromCutoff(cutoffHz float64) float64 {
	if cutoffHz <= 0 {
		return 0.05
	}
	return 1.0 / (2 * math.Pi * cutoffHz)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
