package wavio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

func TestWriteMonoReadMonoRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tone.wav")
	const sr = 16000
	in := make([]float64, sr/4)
	for i := range in {
		in[i] = 0.5 * math.Sin(2*math.Pi*220*float64(i)/sr)
	}

	if err := WriteMono(path, in, sr); err != nil {
		t.Fatalf("WriteMono: %v", err)
	}
	out, gotSR, err := ReadMono(path)
	if err != nil {
		t.Fatalf("ReadMono: %v", err)
	}
	if gotSR != sr {
		t.Fatalf("sample rate mismatch: got=%d want=%d", gotSR, sr)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got=%d want=%d", len(out), len(in))
	}
	for i := range in {
		if math.Abs(out[i]-in[i]) > 1e-3 {
			t.Fatalf("sample %d mismatch: got=%f want=%f", i, out[i], in[i])
		}
	}
}

func TestReadMonoKeepsFullScale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.wav")
	in := []float64{0.5, -0.5, 0.25}
	if err := WriteMono(path, in, 8000); err != nil {
		t.Fatalf("WriteMono: %v", err)
	}
	out, _, err := ReadMono(path)
	if err != nil {
		t.Fatalf("ReadMono: %v", err)
	}
	for i := range in {
		if math.Abs(out[i]-in[i]) > 1e-3 {
			t.Fatalf("sample %d: got=%g want=%g", i, out[i], in[i])
		}
	}
}

func TestWriteMonoClipsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loud.wav")
	if err := WriteMono(path, []float64{2, -3, 0}, 8000); err != nil {
		t.Fatalf("WriteMono: %v", err)
	}
	out, _, err := ReadMono(path)
	if err != nil {
		t.Fatalf("ReadMono: %v", err)
	}
	if out[0] < 0.99 || out[1] > -0.99 {
		t.Fatalf("expected clipped samples near +/-1, got %v", out)
	}
}

func TestReadMonoMixesStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, 8000, 16, 2, 1)
	buf := &audio.Float32Buffer{
		Format:         &audio.Format{SampleRate: 8000, NumChannels: 2},
		Data:           []float32{0.5, 0.0, 0.25, 0.25, -0.5, 0.5},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	f.Close()

	out, sr, err := ReadMono(path)
	if err != nil {
		t.Fatalf("ReadMono: %v", err)
	}
	if sr != 8000 || len(out) != 3 {
		t.Fatalf("unexpected decode: sr=%d frames=%d", sr, len(out))
	}
	want := []float64{0.25, 0.25, 0}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-3 {
			t.Fatalf("frame %d: got=%f want=%f", i, out[i], want[i])
		}
	}
}

func TestReadMonoRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.wav")
	if err := os.WriteFile(path, []byte("definitely not riff"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := ReadMono(path); err == nil {
		t.Fatalf("expected error for invalid wav")
	}
}

func TestResample(t *testing.T) {
	in := make([]float64, 4800)
	for i := range in {
		in[i] = math.Sin(2 * math.Pi * 100 * float64(i) / 48000)
	}
	same, err := Resample(in, 48000, 48000)
	if err != nil {
		t.Fatalf("Resample same rate: %v", err)
	}
	if &same[0] != &in[0] {
		t.Fatalf("expected equal rates to return the input slice")
	}

	half, err := Resample(in, 48000, 24000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if d := math.Abs(float64(len(half)) - 2400); d > 48 {
		t.Fatalf("unexpected resampled length %d", len(half))
	}

	if _, err := Resample(in, 0, 24000); err == nil {
		t.Fatalf("expected error for invalid rate")
	}
}
