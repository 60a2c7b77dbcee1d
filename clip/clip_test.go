package clip

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func TestNewRejectsNonPositiveRate(t *testing.T) {
	for _, sr := range []int{0, -44100} {
		if _, err := New([]float64{0.1}, sr); !errors.Is(err, ErrInvalidSampleRate) {
			t.Fatalf("New(sr=%d) error = %v, want ErrInvalidSampleRate", sr, err)
		}
	}
}

func TestDurationAndPeak(t *testing.T) {
	c, err := New([]float64{0, 0.25, -0.75, 0.5}, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Duration() != time.Second {
		t.Fatalf("Duration() = %v, want 1s", c.Duration())
	}
	if c.Peak() != 0.75 {
		t.Fatalf("Peak() = %f, want 0.75", c.Peak())
	}
	if c.IsEmpty() {
		t.Fatalf("expected non-empty clip")
	}
	if !Empty(8000).IsEmpty() {
		t.Fatalf("expected Empty clip to be empty")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	src := &Clip{Samples: make([]float64, 800), SampleRate: 8000}
	for i := range src.Samples {
		src.Samples[i] = 0.3 * math.Sin(2*math.Pi*float64(i)/40)
	}
	if err := src.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SampleRate != src.SampleRate || got.Len() != src.Len() {
		t.Fatalf("loaded clip mismatch: sr=%d len=%d", got.SampleRate, got.Len())
	}
	for i := range src.Samples {
		if math.Abs(got.Samples[i]-src.Samples[i]) > 1e-3 {
			t.Fatalf("sample %d: got=%f want=%f", i, got.Samples[i], src.Samples[i])
		}
	}
	if math.Abs(got.Peak()-src.Peak()) > 1e-3 {
		t.Fatalf("Peak() = %f, want %f", got.Peak(), src.Peak())
	}
}

func TestResampleSameRateIsIdentity(t *testing.T) {
	c := &Clip{Samples: []float64{0.1, 0.2}, SampleRate: 8000}
	got, err := c.Resample(8000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if got != c {
		t.Fatalf("expected the same clip back")
	}
	if _, err := c.Resample(0); err == nil {
		t.Fatalf("expected error for rate 0")
	}
}
