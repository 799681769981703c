package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

// roundTripFunc lets a test supply an http.RoundTripper as a plain
// function, the same double the teacher's rpc_parsing_test.go uses.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(t *testing.T, status int, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(raw))),
		Header:     make(http.Header),
	}
}

func newTestClient(primary, fallback string, transport http.RoundTripper) *Client {
	c := NewClient(primary, fallback)
	c.httpClient.Transport = transport
	return c
}

func TestGetBalanceParsesResult(t *testing.T) {
	c := newTestClient("https://primary", "", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, response{
			JSONRPC: "2.0", ID: 1,
			Result: json.RawMessage(`{"value":123456789}`),
		}), nil
	}))

	balance, err := c.GetBalance(context.Background(), "SomePubkey")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 123456789 {
		t.Fatalf("expected 123456789, got %d", balance)
	}
}

func TestGetAccountInfoReturnsNilForMissingAccount(t *testing.T) {
	c := newTestClient("https://primary", "", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, response{
			JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`{"value":null}`),
		}), nil
	}))

	info, err := c.GetAccountInfo(context.Background(), "MissingPubkey", "jsonParsed")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info != nil {
		t.Fatalf("expected nil account, got %+v", info)
	}
}

func TestGetAccountInfoReturnsRawBase64Data(t *testing.T) {
	c := newTestClient("https://primary", "", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, response{
			JSONRPC: "2.0", ID: 1,
			Result: json.RawMessage(`{"value":{"lamports":1,"owner":"Pyth111","data":["AQIDBA==","base64"]}}`),
		}), nil
	}))

	info, err := c.GetAccountInfo(context.Background(), "PriceAccount", "base64")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info == nil {
		t.Fatal("expected account, got nil")
	}
	var pair []string
	if err := json.Unmarshal(info.Data, &pair); err != nil {
		t.Fatalf("unmarshal data pair: %v", err)
	}
	if len(pair) != 2 || pair[0] != "AQIDBA==" || pair[1] != "base64" {
		t.Fatalf("expected [base64-data, \"base64\"], got %+v", pair)
	}
}

func TestCallFallsBackToSecondaryURLOnPrimaryFailure(t *testing.T) {
	var primaryHit, fallbackHit bool
	c := newTestClient("https://primary", "https://fallback", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		switch req.URL.String() {
		case "https://primary":
			primaryHit = true
			return nil, io.ErrUnexpectedEOF
		case "https://fallback":
			fallbackHit = true
			return jsonResponse(t, http.StatusOK, response{
				JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`{"value":42}`),
			}), nil
		}
		t.Fatalf("unexpected url %s", req.URL.String())
		return nil, nil
	}))

	balance, err := c.GetBalance(context.Background(), "Pubkey")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 42 {
		t.Fatalf("expected 42, got %d", balance)
	}
	if !primaryHit || !fallbackHit {
		t.Fatalf("expected both endpoints hit, primary=%v fallback=%v", primaryHit, fallbackHit)
	}
}

func TestCallReturnsRPCError(t *testing.T) {
	c := newTestClient("https://primary", "", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, response{
			JSONRPC: "2.0", ID: 1,
			Error: &rpcError{Code: -32602, Message: "invalid params"},
		}), nil
	}))

	_, err := c.GetBalance(context.Background(), "Pubkey")
	if err == nil {
		t.Fatal("expected rpc error")
	}
	if !strings.Contains(err.Error(), "invalid params") {
		t.Fatalf("expected error to mention invalid params, got %v", err)
	}
}

func TestCircuitOpensAfterFiveConsecutiveFailuresAndRoutesToFallback(t *testing.T) {
	var primaryCalls, fallbackCalls int
	c := newTestClient("https://primary", "https://fallback", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		switch req.URL.String() {
		case "https://primary":
			primaryCalls++
			return nil, io.ErrUnexpectedEOF
		case "https://fallback":
			fallbackCalls++
			return jsonResponse(t, http.StatusOK, response{
				JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`{"value":7}`),
			}), nil
		}
		return nil, nil
	}))

	for i := 0; i < 5; i++ {
		if _, err := c.GetBalance(context.Background(), "Pubkey"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if !c.isCircuitOpen() {
		t.Fatal("expected circuit to be open after 5 consecutive primary failures")
	}
	if primaryCalls != 5 {
		t.Fatalf("expected primary hit on every call pre-open, got %d", primaryCalls)
	}

	primaryCallsBefore := primaryCalls
	if _, err := c.GetBalance(context.Background(), "Pubkey"); err != nil {
		t.Fatalf("call after circuit open: %v", err)
	}
	if primaryCalls != primaryCallsBefore {
		t.Fatal("expected circuit-open call to skip the primary endpoint entirely")
	}
	if fallbackCalls != 6 {
		t.Fatalf("expected fallback hit on every call, got %d", fallbackCalls)
	}
}

func TestRecordSuccessResetsCircuit(t *testing.T) {
	c := NewClient("https://primary", "")
	c.failures = 4
	c.recordSuccess()
	if c.failures != 0 || c.circuitOpen {
		t.Fatalf("expected counters reset, got failures=%d circuitOpen=%v", c.failures, c.circuitOpen)
	}
}

func TestGetProgramAccountsBuildsMemcmpFilters(t *testing.T) {
	var captured map[string]any
	c := newTestClient("https://primary", "", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		var decoded struct {
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(req.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if err := json.Unmarshal(decoded.Params[1], &captured); err != nil {
			t.Fatalf("decode params: %v", err)
		}
		return jsonResponse(t, http.StatusOK, response{
			JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`[]`),
		}), nil
	}))

	_, err := c.GetProgramAccounts(context.Background(), "ProgramX", []ProgramAccountFilter{
		{Offset: 0, Bytes: "abc"},
	})
	if err != nil {
		t.Fatalf("GetProgramAccounts: %v", err)
	}
	if _, ok := captured["filters"]; !ok {
		t.Fatalf("expected filters key in request params, got %+v", captured)
	}
}
