package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRecording(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRecording(2*time.Second, false)
	m.ObserveRecording(time.Second, true)

	if got := testutil.ToFloat64(m.RecordingsTotal); got != 2 {
		t.Fatalf("recordings=%v want 2", got)
	}
	if got := testutil.ToFloat64(m.LowLevelTotal); got != 1 {
		t.Fatalf("low level=%v want 1", got)
	}
	if n := testutil.CollectAndCount(m.RecordingSeconds); n != 1 {
		t.Fatalf("histogram series=%d want 1", n)
	}
}

func TestPlaybacksBySource(t *testing.T) {
	m := New(nil)
	m.PlaybacksTotal.WithLabelValues("reference").Inc()
	m.PlaybacksTotal.WithLabelValues("attempt").Inc()
	m.PlaybacksTotal.WithLabelValues("attempt").Inc()

	if got := testutil.ToFloat64(m.PlaybacksTotal.WithLabelValues("attempt")); got != 2 {
		t.Fatalf("attempt playbacks=%v want 2", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New(nil)
	m.ObserveAnalysis(10 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status=%d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"mimic_analyses_total 1", "mimic_analysis_duration_seconds_count 1"} {
		if !strings.Contains(body, name) {
			t.Fatalf("body missing %q", name)
		}
	}
}

func TestSeparateRegistries(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())
	a.AttemptsSaved.Inc()
	if got := testutil.ToFloat64(b.AttemptsSaved); got != 0 {
		t.Fatalf("registries share state")
	}
}
