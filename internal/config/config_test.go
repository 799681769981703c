package config

import (
	"os"
	"testing"
)

func TestNewManagerDefaults(t *testing.T) {
	m, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	cfg := m.Get()
	if cfg.Reconciler.BatchSize != 50 {
		t.Errorf("BatchSize = %d, want 50", cfg.Reconciler.BatchSize)
	}
	if cfg.Holder.Budget != 10_000_000 {
		t.Errorf("Budget = %d, want 10000000", cfg.Holder.Budget)
	}
	if cfg.Holder.HardStopPct != 85.0 {
		t.Errorf("HardStopPct = %v, want 85.0", cfg.Holder.HardStopPct)
	}
	if cfg.RateLimit.PerMinute != 600 || cfg.RateLimit.PerSecond != 10 {
		t.Errorf("rate limit defaults = %+v", cfg.RateLimit)
	}
}

func TestManagerEnvOverrides(t *testing.T) {
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("HOLDER_BUDGET", "5000000")
	t.Setenv("FEED_URL", "grpc.example.com:443")

	m, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	cfg := m.Get()
	if cfg.Reconciler.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.Reconciler.BatchSize)
	}
	if cfg.Holder.Budget != 5_000_000 {
		t.Errorf("Budget = %d, want 5000000", cfg.Holder.Budget)
	}
	if got := m.FeedURL(); got != "grpc.example.com:443" {
		t.Errorf("FeedURL = %q", got)
	}
}

func TestManagerSecretResolution(t *testing.T) {
	os.Setenv("ENRICH_KEY", "secret-123")
	defer os.Unsetenv("ENRICH_KEY")

	m, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if got := m.EnrichKey(); got != "secret-123" {
		t.Errorf("EnrichKey = %q, want secret-123", got)
	}
}

func TestVenuesDefaultsAndOverride(t *testing.T) {
	m, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.Venues().PumpFunProgram == "" {
		t.Fatal("expected a non-empty default pumpfun program id")
	}

	t.Setenv("PUMPFUN_PROGRAM", "TestProgram111111111111111111111111111111")
	m2, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if got := m2.Venues().PumpFunProgram; got != "TestProgram111111111111111111111111111111" {
		t.Errorf("PumpFunProgram = %q, want override", got)
	}
}

func TestBackoffRange(t *testing.T) {
	m, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	initial, max := m.BackoffRange()
	if initial.Milliseconds() != 1000 {
		t.Errorf("initial backoff = %v, want 1s", initial)
	}
	if max.Seconds() != 30 {
		t.Errorf("max backoff = %v, want 30s", max)
	}
}
