// Package errs classifies the failure taxonomy of the ingestion pipeline
// (transient transport, rate limit, decode skip, duplicate key, referential
// miss, budget exhaustion, invariant violation, config/init error) so
// callers can branch on errors.Is instead of parsing messages.
package errs

import "errors"

var (
	// ErrTransient covers stream disconnects, RPC timeouts and DB deadlocks.
	// Always recoverable by the caller via reconnect/retry with backoff.
	ErrTransient = errors.New("transient failure")

	// ErrRateLimited is returned by the enrichment client on 429; the
	// limiter backs off and the caller re-queues the work.
	ErrRateLimited = errors.New("rate limited")

	// ErrDecodeSkip marks a payload the decoder intentionally ignored
	// (unknown instruction, missing field). Never fatal.
	ErrDecodeSkip = errors.New("decode skipped")

	// ErrDuplicate marks a race on a unique key; the caller should re-read
	// the winning row rather than treat this as a failure.
	ErrDuplicate = errors.New("duplicate key")

	// ErrReferentialMiss marks a row that references an unknown token or
	// pool; the row is dropped with a warning, never retried blindly.
	ErrReferentialMiss = errors.New("referential miss")

	// ErrBudgetExhausted is returned by the holder analyzer once the
	// credit tracker has crossed its hard-stop percentage.
	ErrBudgetExhausted = errors.New("credit budget exhausted")

	// ErrInvariant marks a data invariant violation (e.g. venue mismatch
	// on upsert). Surfaced as fatal; requires operator attention.
	ErrInvariant = errors.New("invariant violation")

	// ErrConfig marks an unrecoverable configuration or init failure.
	// The process is expected to exit non-zero.
	ErrConfig = errors.New("configuration error")
)
