package library

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newLib(t *testing.T) *Library {
	dir := t.TempDir()
	return New(filepath.Join(dir, "refs"), filepath.Join(dir, "recs"), filepath.Join(dir, "plots"))
}

func TestReferencesListsWAVStems(t *testing.T) {
	l := newLib(t)
	touch(t, filepath.Join(l.ReferencesDir, "mr_freeman.wav"))
	touch(t, filepath.Join(l.ReferencesDir, "Announcer.WAV"))
	touch(t, filepath.Join(l.ReferencesDir, "notes.txt"))
	if err := os.MkdirAll(filepath.Join(l.ReferencesDir, "sub.wav"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := l.References()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Announcer", "mr_freeman"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("References()=%v want %v", got, want)
	}
}

func TestReferencesMissingDir(t *testing.T) {
	l := newLib(t)
	got, err := l.References()
	if err != nil || len(got) != 0 {
		t.Fatalf("References()=%v, %v", got, err)
	}
}

func TestReference(t *testing.T) {
	l := newLib(t)
	path := filepath.Join(l.ReferencesDir, "mr_freeman.wav")
	touch(t, path)

	for _, name := range []string{"mr_freeman", "mr_freeman.wav", " mr_freeman "} {
		got, err := l.Reference(name)
		if err != nil {
			t.Fatalf("Reference(%q): %v", name, err)
		}
		if got != path {
			t.Fatalf("Reference(%q)=%q want %q", name, got, path)
		}
	}
	for _, name := range []string{"missing", "", "../mr_freeman"} {
		if _, err := l.Reference(name); !errors.Is(err, ErrReferenceNotFound) {
			t.Fatalf("Reference(%q) err=%v want ErrReferenceNotFound", name, err)
		}
	}
}

func TestNextAttemptPathNeverOverwrites(t *testing.T) {
	l := newLib(t)

	p1, err := l.NextAttemptPath("mr freeman")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(l.RecordingsDir, "mr_freeman", "attempt_1.wav"); p1 != want {
		t.Fatalf("first attempt=%q want %q", p1, want)
	}
	p2, err := l.NextAttemptPath("mr freeman")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p2) != "attempt_2.wav" {
		t.Fatalf("second attempt=%q", p2)
	}

	touch(t, filepath.Join(l.RecordingsDir, "mr_freeman", "attempt_7.wav"))
	os.Remove(p1)
	p3, err := l.NextAttemptPath("mr freeman")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p3) != "attempt_8.wav" {
		t.Fatalf("attempt after gap=%q want attempt_8.wav", p3)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"mr_freeman":     "mr_freeman",
		"Mr. Freeman!":   "Mr._Freeman",
		"../etc/passwd":  "etc_passwd",
		"   ":            "unnamed",
		"voice-01.final": "voice-01.final",
	}
	for in, want := range tests {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q)=%q want %q", in, got, want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{4600 * time.Millisecond, "00:05"},
		{65 * time.Second, "01:05"},
		{-time.Second, "00:00"},
		{61 * time.Minute, "61:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v)=%q want %q", tt.d, got, tt.want)
		}
	}
}

func TestPlotPath(t *testing.T) {
	l := newLib(t)
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	got := l.PlotPath("mr freeman", ts)
	want := filepath.Join(l.PlotsDir, "mr_freeman_20260304-050607.png")
	if got != want {
		t.Fatalf("PlotPath=%q want %q", got, want)
	}
}

func TestEnsureDirs(t *testing.T) {
	l := newLib(t)
	if err := l.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{l.ReferencesDir, l.RecordingsDir, l.PlotsDir} {
		if st, err := os.Stat(d); err != nil || !st.IsDir() {
			t.Fatalf("%s not created: %v", d, err)
		}
	}
}
