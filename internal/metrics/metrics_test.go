package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_ObserveIndexed(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.ObserveIndexed("style_guide", 12)
	r.ObserveIndexed("style_guide", 3)
	r.ObserveIndexed("templates", 4)

	if got := testutil.ToFloat64(r.FragmentsIndexed.WithLabelValues("style_guide")); got != 15 {
		t.Errorf("expected 15 style_guide fragments, got %f", got)
	}
	if got := testutil.ToFloat64(r.FragmentsIndexed.WithLabelValues("templates")); got != 4 {
		t.Errorf("expected 4 template fragments, got %f", got)
	}
}

func TestRecorder_ObserveSelectionAndRun(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.ObserveSelection("code", 2, 150)
	r.ObserveSelection("style_guide", 1, 40)
	r.ObserveRun(5, 19, 20*time.Millisecond)
	r.ObserveRun(0, 80, 10*time.Millisecond)

	if got := testutil.ToFloat64(r.TokensSelected.WithLabelValues("code")); got != 150 {
		t.Errorf("expected 150 code tokens, got %f", got)
	}
	if got := testutil.ToFloat64(r.Runs); got != 2 {
		t.Errorf("expected 2 runs, got %f", got)
	}
	if got := testutil.ToFloat64(r.FragmentsExcluded); got != 5 {
		t.Errorf("expected 5 excluded, got %f", got)
	}
	if n := testutil.CollectAndCount(r.Duration); n != 1 {
		t.Errorf("expected one duration series, got %d", n)
	}
}

func TestRecorder_ObserveSourceError(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	r.ObserveSourceError("source")

	expected := `
# HELP agentctx_source_errors_total Sources that failed to index and contributed no fragments
# TYPE agentctx_source_errors_total counter
agentctx_source_errors_total{source="source"} 1
`
	if err := testutil.CollectAndCompare(r.SourceErrors, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestNewRecorder_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewRecorder(reg)
}
