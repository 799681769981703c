package feed

import (
	"context"
	"io"

	"token-ingest-engine/internal/decode"
)

// UpdateKind tags which variant of Update is populated.
type UpdateKind int

const (
	UpdateKindAccount UpdateKind = iota
	UpdateKindTransaction
)

// Update is the typed record a Stream yields (§4.2: "lazy sequence of typed
// updates {accountUpdate | transactionUpdate}").
type Update struct {
	Kind        UpdateKind
	Account     *decode.AccountUpdate
	Transaction *decode.TransactionUpdate
}

// rawStream is the minimal surface Stream needs from the underlying
// transport; satisfied by a grpc.ClientStream and by a fake in tests.
type rawStream interface {
	RecvMsg(m any) error
	CloseSend() error
}

// Stream is one logical subscription's lazy, infinite update sequence.
// Restartable only by re-acquiring through the owning Client (§4.2).
type Stream struct {
	subscriptionID string
	filter         Filter
	raw            rawStream
	cancel         context.CancelFunc
	onClose        func()
}

// Updates returns a lazy sequence of Update records. The sequence ends when
// the stream errs or is closed; the caller (a Consumer) is expected to
// re-acquire on error per §4.3.2, not to restart this same iterator.
func (s *Stream) Updates() func(func(Update) bool) {
	return func(yield func(Update) bool) {
		for {
			var env envelope
			if err := s.raw.RecvMsg(&env); err != nil {
				if err != io.EOF {
					reportStreamError(s.subscriptionID, err)
				}
				return
			}

			upd := Update{Account: env.Account, Transaction: env.Transaction}
			if env.IsAccount {
				upd.Kind = UpdateKindAccount
			} else {
				upd.Kind = UpdateKindTransaction
			}
			if !yield(upd) {
				return
			}
		}
	}
}

// Close releases the server-side subscription promptly (§4.2).
func (s *Stream) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	err := s.raw.CloseSend()
	if s.onClose != nil {
		s.onClose()
	}
	return err
}
