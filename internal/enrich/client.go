// Package enrich is the holder-enrichment REST client (§6 "Inbound —
// holder enrichment"): a credit-metered third-party API offering per-mint
// holder pagination and per-wallet history, used exclusively by the holder
// analyzer under its own rate limiter and credit budget.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"

	"token-ingest-engine/internal/errs"
)

// HTTPClientPool round-robins requests across a small fleet of HTTP/2
// clients the same way the teacher's Jupiter client does, so no single
// connection becomes a bottleneck under the holder analyzer's bursty
// pagination.
type HTTPClientPool struct {
	clients []*http.Client
	mu      sync.Mutex
	idx     uint32
}

// NewHTTPClientPool builds an HTTP/2-forced, pooled client fleet of the
// given size.
func NewHTTPClientPool(size int, timeout time.Duration) *HTTPClientPool {
	pool := &HTTPClientPool{clients: make([]*http.Client, size)}
	for i := 0; i < size; i++ {
		transport := &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
		_ = http2.ConfigureTransport(transport)
		pool.clients[i] = &http.Client{Transport: transport, Timeout: timeout}
	}
	return pool
}

func (p *HTTPClientPool) get() *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.clients[p.idx%uint32(len(p.clients))]
	p.idx++
	return c
}

// Client is the holder-enrichment REST client. Every request that leaves
// it passes through limiter.Wait first; the caller (the holder analyzer)
// is responsible for checking its own credit budget before calling in, and
// for recording the CreditsUsed a response reports.
type Client struct {
	baseURL string
	apiKey  string
	pool    *HTTPClientPool
	limiter *rate.Limiter
}

// Config configures the per-minute request rate; §4.5.2's budgeted holder
// analyzer owns its own credit accounting separately (internal/score).
type Config struct {
	BaseURL        string
	APIKey         string
	RequestsPerMin int
	BurstSize      int
	RequestTimeout time.Duration
	PoolSize       int
}

func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		RequestsPerMin: 600,
		BurstSize:      10,
		RequestTimeout: 15 * time.Second,
		PoolSize:       4,
	}
}

func New(cfg Config) *Client {
	perSecond := rate.Limit(float64(cfg.RequestsPerMin) / 60.0)
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		pool:    NewHTTPClientPool(cfg.PoolSize, cfg.RequestTimeout),
		limiter: rate.NewLimiter(perSecond, cfg.BurstSize),
	}
}

// Holder is one entry of a paginated holder listing.
type Holder struct {
	Owner   string `json:"owner"`
	Balance string `json:"balance"`
	Rank    int    `json:"rank"`
}

// HolderPage is one page of GetHolders, with the enrichment provider's
// own credit accounting for that call attached.
type HolderPage struct {
	Holders     []Holder `json:"holders"`
	NextCursor  string   `json:"nextCursor"`
	TotalCount  int      `json:"totalCount"`
	CreditsUsed int      `json:"creditsUsed"`
}

// GetHolders fetches one page of holders for mint, starting at cursor
// (empty for the first page).
func (c *Client) GetHolders(ctx context.Context, mint, cursor string, limit int) (*HolderPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v1/token/%s/holders?limit=%d", c.baseURL, mint, limit)
	if cursor != "" {
		url += "&cursor=" + cursor
	}
	var page HolderPage
	if err := c.do(ctx, url, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// WalletTx is one entry of a wallet's transaction history.
type WalletTx struct {
	Signature string `json:"signature"`
	BlockTime int64  `json:"blockTime"`
	Mint      string `json:"mint"`
	Direction string `json:"direction"`
}

// WalletHistory is the result of a per-wallet history lookup, used by the
// holder analyzer's bot/smart-money/wallet-age heuristics.
type WalletHistory struct {
	Address     string     `json:"address"`
	FirstSeen   int64      `json:"firstSeen"`
	TxCount     int        `json:"txCount"`
	Recent      []WalletTx `json:"recent"`
	CreditsUsed int        `json:"creditsUsed"`
}

// GetWalletHistory fetches a wallet's transaction summary.
func (c *Client) GetWalletHistory(ctx context.Context, wallet string) (*WalletHistory, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v1/wallet/%s/history", c.baseURL, wallet)
	var history WalletHistory
	if err := c.do(ctx, url, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

func (c *Client) do(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.pool.get().Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		log.Warn().Str("url", url).Msg("enrichment provider rate limited us")
		return errs.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("enrichment request failed (%d): %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
