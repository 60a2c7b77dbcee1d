package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Normalize scales x so its largest absolute sample is 1. Silent input is
// returned as a copy.
func Normalize(x []float64) []float64 {
	out := append([]float64(nil), x...)
	peak := peakAbs(x)
	if peak <= 1e-12 {
		return out
	}
	floats.Scale(1/peak, out)
	return out
}

// NormalizeMax divides a non-negative contour by its maximum.
func NormalizeMax(x []float64) []float64 {
	out := append([]float64(nil), x...)
	if len(x) == 0 {
		return out
	}
	m := floats.Max(x)
	if m <= 1e-12 {
		return out
	}
	floats.Scale(1/m, out)
	return out
}

// TrimSilence drops leading and trailing frames quieter than topDB below the
// loudest frame.
func TrimSilence(x []float64, topDB float64) []float64 {
	const frame, hop = 2048, 512
	if len(x) == 0 || topDB <= 0 {
		return x
	}
	f, h := frame, hop
	if len(x) < f {
		f, h = len(x), len(x)
	}
	env := rmsEnvelope(x, f, h)
	if len(env) == 0 {
		return x
	}
	threshold := linToDB(floats.Max(env)) - topDB
	first, last := -1, -1
	for i, v := range env {
		if linToDB(v) > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return x[:0]
	}
	start := first * h
	end := last*h + f
	if last == len(env)-1 || end > len(x) {
		end = len(x)
	}
	return x[start:end]
}

// MatchLength truncates or zero-pads x to n samples.
func MatchLength(x []float64, n int) []float64 {
	if n < 0 {
		n = 0
	}
	if len(x) >= n {
		return x[:n]
	}
	out := make([]float64, n)
	copy(out, x)
	return out
}

func peakAbs(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Max(floats.Max(x), -floats.Min(x))
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	n := 1 + (len(x)-frame)/hop
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		out[i] = rms1(x[start : start+frame])
	}
	return out
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Sum(x) / float64(len(x))
}
