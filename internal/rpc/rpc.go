// Package rpc is the chain JSON-RPC client (§6 "Inbound — chain RPC"),
// used only by reconciliation scanners and holder enrichment — never on
// the hot consumer path, which gets its data from the block-subscription
// feed instead.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Client is a generic JSON-RPC 2.0 client over a primary/fallback pair of
// endpoints with a consecutive-failure circuit breaker.
type Client struct {
	primaryURL  string
	fallbackURL string
	httpClient  *http.Client

	mu          sync.RWMutex
	failures    int
	lastFailure time.Time
	circuitOpen bool
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewClient wraps primaryURL/fallbackURL with a pooled http.Client (§6
// RPC_URL); fallbackURL may be empty, in which case a primary failure is
// simply returned to the caller.
func NewClient(primaryURL, fallbackURL string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		primaryURL:  primaryURL,
		fallbackURL: fallbackURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second, Transport: transport},
	}
}

// AccountInfo is the decoded result of getAccountInfo. Data's shape
// depends on the requested encoding: a `jsonParsed`-decoded map for
// accounts the validator knows how to parse, or a `["<base64>","base64"]`
// pair for raw accounts (e.g. Pyth price feeds, which internal/solusd
// decodes itself).
type AccountInfo struct {
	Lamports uint64          `json:"lamports"`
	Owner    string          `json:"owner"`
	Data     json.RawMessage `json:"data"`
}

// GetAccountInfo fetches a single account under the given encoding
// ("jsonParsed" or "base64"), or nil if it does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey, encoding string) (*AccountInfo, error) {
	var result struct {
		Value *AccountInfo `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", []any{pubkey, map[string]string{"encoding": encoding}}, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// ProgramAccountFilter is one memcmp/dataSize filter in a
// getProgramAccounts call.
type ProgramAccountFilter struct {
	Offset int    `json:"offset,omitempty"`
	Bytes  string `json:"bytes,omitempty"`
	Size   int    `json:"dataSize,omitempty"`
}

// ProgramAccount is one entry of a getProgramAccounts result.
type ProgramAccount struct {
	Pubkey  string      `json:"pubkey"`
	Account AccountInfo `json:"account"`
}

// GetProgramAccounts lists accounts owned by programID matching filters.
func (c *Client) GetProgramAccounts(ctx context.Context, programID string, filters []ProgramAccountFilter) ([]ProgramAccount, error) {
	params := map[string]any{"encoding": "jsonParsed"}
	if len(filters) > 0 {
		fs := make([]map[string]any, 0, len(filters))
		for _, f := range filters {
			if f.Size > 0 {
				fs = append(fs, map[string]any{"dataSize": f.Size})
				continue
			}
			fs = append(fs, map[string]any{"memcmp": map[string]any{"offset": f.Offset, "bytes": f.Bytes}})
		}
		params["filters"] = fs
	}

	var result []ProgramAccount
	if err := c.call(ctx, "getProgramAccounts", []any{programID, params}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SignatureInfo is one entry of a getSignaturesForAddress result.
type SignatureInfo struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Err       any    `json:"err"`
}

// GetSignaturesForAddress lists up to limit recent signatures for pubkey,
// newest first.
func (c *Client) GetSignaturesForAddress(ctx context.Context, pubkey string, limit int) ([]SignatureInfo, error) {
	var result []SignatureInfo
	if err := c.call(ctx, "getSignaturesForAddress", []any{pubkey, map[string]any{"limit": limit}}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetBalance fetches the lamport balance of pubkey.
func (c *Client) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{pubkey, map[string]string{"commitment": "confirmed"}}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	req := request{JSONRPC: "2.0", ID: 1, Method: method, Params: params}

	if c.isCircuitOpen() && c.fallbackURL != "" {
		return c.callURL(ctx, c.fallbackURL, req, result)
	}

	if err := c.callURL(ctx, c.primaryURL, req, result); err != nil {
		c.recordFailure()
		if c.fallbackURL == "" {
			return err
		}
		log.Warn().Err(err).Str("method", method).Msg("primary RPC failed, trying fallback")
		return c.callURL(ctx, c.fallbackURL, req, result)
	}

	c.recordSuccess()
	return nil
}

func (c *Client) callURL(ctx context.Context, url string, rpcReq request, result any) error {
	if url == "" {
		return fmt.Errorf("rpc: no endpoint configured")
	}

	body, err := json.Marshal(rpcReq)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, result)
}

func (c *Client) isCircuitOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.circuitOpen {
		return false
	}
	return time.Since(c.lastFailure) <= 30*time.Second
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	c.lastFailure = time.Now()
	if c.failures >= 5 {
		c.circuitOpen = true
		log.Warn().Msg("rpc circuit breaker opened")
	}
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.circuitOpen = false
}
