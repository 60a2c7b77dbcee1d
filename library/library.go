// Package library locates reference clips and names saved attempts on disk.
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrReferenceNotFound is returned when no WAV file exists for a reference
// name.
var ErrReferenceNotFound = errors.New("reference not found")

type Library struct {
	ReferencesDir string
	RecordingsDir string
	PlotsDir      string
}

func New(referencesDir, recordingsDir, plotsDir string) *Library {
	return &Library{
		ReferencesDir: referencesDir,
		RecordingsDir: recordingsDir,
		PlotsDir:      plotsDir,
	}
}

// EnsureDirs creates the library directories if missing.
func (l *Library) EnsureDirs() error {
	for _, dir := range []string{l.ReferencesDir, l.RecordingsDir, l.PlotsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// References returns the names (file stems) of all WAV files in the
// references directory, sorted.
func (l *Library) References() ([]string, error) {
	entries, err := os.ReadDir(l.ReferencesDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !isWAV(e.Name()) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(names)
	return names, nil
}

// Reference resolves a reference name to its WAV path. The name may carry
// the .wav extension.
func (l *Library) Reference(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: invalid name %q", ErrReferenceNotFound, name)
	}
	if isWAV(name) {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	for _, ext := range []string{".wav", ".WAV"} {
		path := filepath.Join(l.ReferencesDir, name+ext)
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %q in %s", ErrReferenceNotFound, name, l.ReferencesDir)
}

var attemptRE = regexp.MustCompile(`^attempt_(\d+)\.wav$`)

// NextAttemptPath reserves a new attempt_<n>.wav file under the recordings
// directory for ref and returns its path. n is one past the highest number
// present, and the file is created exclusively, so an existing attempt is
// never overwritten.
func (l *Library) NextAttemptPath(ref string) (string, error) {
	dir := filepath.Join(l.RecordingsDir, SanitizeName(ref))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	n := 0
	for _, e := range entries {
		m := attemptRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if v, err := strconv.Atoi(m[1]); err == nil && v > n {
			n = v
		}
	}

	for {
		n++
		path := filepath.Join(dir, fmt.Sprintf("attempt_%d.wav", n))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return path, f.Close()
	}
}

// PlotPath returns the file name for a comparison plot of ref made at t.
func (l *Library) PlotPath(ref string, t time.Time) string {
	return filepath.Join(l.PlotsDir, fmt.Sprintf("%s_%s.png", SanitizeName(ref), t.Format("20060102-150405")))
}

var unsafeRE = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName makes s safe to use as a single path element.
func SanitizeName(s string) string {
	s = unsafeRE.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "unnamed"
	}
	return s
}

// FormatDuration renders d as MM:SS, rounding to the nearest second.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func isWAV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".wav")
}
