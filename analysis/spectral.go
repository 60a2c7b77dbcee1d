package analysis

import (
	"fmt"
	"math/cmplx"

	"github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"
)

// SpectralCentroid returns the magnitude-weighted mean frequency (Hz) of each
// Hann-windowed frame. Frames start every hop samples; a signal shorter than
// one frame yields no values. Silent frames report 0.
func SpectralCentroid(x []float64, sampleRate int, frame int, hop int) ([]float64, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0, got %d", sampleRate)
	}
	if frame < 2 || frame&(frame-1) != 0 {
		return nil, fmt.Errorf("frame must be a power of two >= 2, got %d", frame)
	}
	if hop <= 0 {
		return nil, fmt.Errorf("hop must be > 0, got %d", hop)
	}
	if len(x) < frame {
		return []float64{}, nil
	}

	plan, err := algofft.NewPlanReal64(frame)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}

	hann, err := window.Hann(frame)
	if err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}
	binHz := float64(sampleRate) / float64(frame)
	spec := make([]complex128, frame/2+1)
	buf := make([]float64, frame)

	n := 1 + (len(x)-frame)/hop
	out := make([]float64, n)
	for f := 0; f < n; f++ {
		pos := f * hop
		for i := 0; i < frame; i++ {
			buf[i] = x[pos+i] * hann[i]
		}
		plan.Forward(spec, buf)

		var num, den float64
		for k := 1; k < len(spec); k++ {
			mag := cmplx.Abs(spec[k])
			num += mag * float64(k) * binHz
			den += mag
		}
		if den > 1e-12 {
			out[f] = num / den
		}
	}
	return out, nil
}
