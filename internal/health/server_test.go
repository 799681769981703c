package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthRouteReturnsOKWhenReady(t *testing.T) {
	c := NewChecker(time.Hour, Check{Name: "a", Fn: func(ctx context.Context) error { return nil }})
	c.check(context.Background())
	s := NewServer(c, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHealthRouteReturns503WhenNotReady(t *testing.T) {
	c := NewChecker(time.Hour, Check{Name: "a", Fn: func(ctx context.Context) error { return errors.New("down") }})
	c.check(context.Background())
	s := NewServer(c, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestHealthzRouteAlwaysOK(t *testing.T) {
	c := NewChecker(time.Hour)
	s := NewServer(c, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsRouteProxiesToHandler(t *testing.T) {
	c := NewChecker(time.Hour)
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("metric_value 1\n"))
	})
	s := NewServer(c, metricsHandler)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
