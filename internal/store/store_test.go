package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "mimic.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndListAttempts(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	inputs := []Attempt{
		{Reference: "freeman", Path: "/r/freeman/attempt_1.wav", Samples: 44100, SampleRate: 44100, Duration: time.Second, Peak: 0.5, CreatedAt: base},
		{Reference: "announcer", Path: "/r/announcer/attempt_1.wav", Samples: 22050, SampleRate: 44100, Duration: 500 * time.Millisecond, Peak: 0.2, CreatedAt: base.Add(time.Minute)},
		{Reference: "freeman", Path: "/r/freeman/attempt_2.wav", Samples: 88200, SampleRate: 44100, Duration: 2 * time.Second, Peak: 0.7, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i, a := range inputs {
		id, err := s.AddAttempt(ctx, a)
		if err != nil {
			t.Fatalf("AddAttempt %d: %v", i, err)
		}
		if id != int64(i+1) {
			t.Fatalf("id=%d want %d", id, i+1)
		}
	}

	got, err := s.Attempts(ctx, "freeman")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d attempts want 2", len(got))
	}
	if got[0].Path != inputs[0].Path || got[1].Path != inputs[2].Path {
		t.Fatalf("order wrong: %q, %q", got[0].Path, got[1].Path)
	}
	if got[1].Duration != 2*time.Second || got[1].Samples != 88200 || got[1].Peak != 0.7 {
		t.Fatalf("fields not round-tripped: %+v", got[1])
	}
	if !got[0].CreatedAt.Equal(base) {
		t.Fatalf("created_at=%v want %v", got[0].CreatedAt, base)
	}

	all, err := s.Attempts(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("all attempts=%d, %v", len(all), err)
	}
}

func TestLatest(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if _, err := s.Latest(ctx, "freeman"); !errors.Is(err, ErrNoAttempts) {
		t.Fatalf("Latest on empty err=%v want ErrNoAttempts", err)
	}
	now := time.Now()
	for i, p := range []string{"a.wav", "b.wav"} {
		if _, err := s.AddAttempt(ctx, Attempt{Reference: "freeman", Path: p, SampleRate: 8000, CreatedAt: now.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatal(err)
		}
	}
	a, err := s.Latest(ctx, "freeman")
	if err != nil {
		t.Fatal(err)
	}
	if a.Path != "b.wav" {
		t.Fatalf("Latest=%q want b.wav", a.Path)
	}
}

func TestDuplicatePathRejected(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	a := Attempt{Reference: "freeman", Path: "same.wav", SampleRate: 8000}
	if _, err := s.AddAttempt(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddAttempt(ctx, a); err == nil {
		t.Fatalf("expected error for duplicate path")
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mimic.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddAttempt(context.Background(), Attempt{Reference: "r", Path: "p.wav", SampleRate: 8000}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Attempts(context.Background(), "r")
	if err != nil || len(got) != 1 {
		t.Fatalf("after reopen: %d attempts, %v", len(got), err)
	}
}

func TestMemoryStore(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.AddAttempt(context.Background(), Attempt{Reference: "r", Path: "p.wav", SampleRate: 8000}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Attempts(context.Background(), "r")
	if err != nil || len(got) != 1 {
		t.Fatalf("memory store: %d attempts, %v", len(got), err)
	}
}
