package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistersAllCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.DecodeSkipTotal.WithLabelValues("bondingCurveAccount").Inc()
	m.UnresolvedIDTotal.WithLabelValues("token").Inc()
	m.DuplicateKeyTotal.WithLabelValues("pools").Inc()
	m.BudgetExhaustionTotal.Inc()
	m.BackPressurePauseTotal.WithLabelValues("trade").Inc()
	m.ProgressDriftTotal.WithLabelValues("pumpfun").Inc()
	m.BatchQueueDepth.WithLabelValues("trade").Set(42)
	m.CreditUsagePct.Set(62.5)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(mfs) != 8 {
		t.Fatalf("expected 8 registered metric families, got %d", len(mfs))
	}
}

func TestHandlerServesPlainTextExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.BudgetExhaustionTotal.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ingest_budget_exhaustion_total") {
		t.Fatalf("expected metric name in output, got %q", rec.Body.String())
	}
}
