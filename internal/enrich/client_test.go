package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"token-ingest-engine/internal/errs"
)

func newStrictLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Hour), 1)
}

func newTestClientWithServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL, "test-key")
	cfg.PoolSize = 1
	cfg.RequestsPerMin = 6000
	cfg.BurstSize = 100
	c := New(cfg)
	return c, srv
}

func TestGetHoldersParsesPage(t *testing.T) {
	c, _ := newTestClientWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Fatalf("expected api key header, got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Fatalf("expected limit=50, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"holders":[{"owner":"WalletA","balance":"1000","rank":1}],
			"nextCursor":"cursor2",
			"totalCount":500,
			"creditsUsed":3
		}`))
	})

	page, err := c.GetHolders(context.Background(), "MintA", "", 50)
	if err != nil {
		t.Fatalf("GetHolders: %v", err)
	}
	if len(page.Holders) != 1 || page.Holders[0].Owner != "WalletA" {
		t.Fatalf("unexpected holders: %+v", page.Holders)
	}
	if page.NextCursor != "cursor2" || page.CreditsUsed != 3 {
		t.Fatalf("unexpected page metadata: %+v", page)
	}
}

func TestGetHoldersIncludesCursorWhenPaginating(t *testing.T) {
	var gotCursor string
	c, _ := newTestClientWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotCursor = r.URL.Query().Get("cursor")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"holders":[],"nextCursor":"","totalCount":0,"creditsUsed":1}`))
	})

	if _, err := c.GetHolders(context.Background(), "MintA", "cursor1", 50); err != nil {
		t.Fatalf("GetHolders: %v", err)
	}
	if gotCursor != "cursor1" {
		t.Fatalf("expected cursor1 forwarded, got %q", gotCursor)
	}
}

func TestGetWalletHistoryParsesResult(t *testing.T) {
	c, _ := newTestClientWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"address":"WalletA","firstSeen":1000,"txCount":42,
			"recent":[{"signature":"SIG1","blockTime":1001,"mint":"MintA","direction":"buy"}],
			"creditsUsed":2
		}`))
	})

	history, err := c.GetWalletHistory(context.Background(), "WalletA")
	if err != nil {
		t.Fatalf("GetWalletHistory: %v", err)
	}
	if history.TxCount != 42 || len(history.Recent) != 1 {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestDoReturnsErrRateLimitedOn429(t *testing.T) {
	c, _ := newTestClientWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.GetHolders(context.Background(), "MintA", "", 50)
	if err != errs.ErrRateLimited {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestDoReturnsErrorOnNonOKStatus(t *testing.T) {
	c, _ := newTestClientWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	_, err := c.GetHolders(context.Background(), "MintA", "", 50)
	if err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestLimiterThrottlesRequestRate(t *testing.T) {
	var calls int
	c, _ := newTestClientWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"holders":[],"nextCursor":"","totalCount":0,"creditsUsed":0}`))
	})
	c.limiter = newStrictLimiter()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.GetHolders(context.Background(), "MintA", "", 1); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := c.GetHolders(ctx, "MintA", "", 1); err == nil {
		t.Fatal("expected second call to block past the deadline under a near-zero rate limit")
	}
}
