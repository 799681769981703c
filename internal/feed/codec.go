package feed

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"

	"token-ingest-engine/internal/decode"
)

// codecName is registered as a grpc call content-subtype (§1: on-chain
// payload schemas are explicitly out of scope, so there is no protobuf
// descriptor to generate against). envelope is the one wire message this
// codec knows how to move; decoding it into a typed Record is entirely
// internal/decode's job, never this package's.
const codecName = "ingest-envelope"

func init() {
	gob.Register(map[string]any{})
	gob.Register(uint64(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(false)
	gob.Register("")
	encoding.RegisterCodec(envelopeCodec{})
}

// envelope is the single message type exchanged over the subscription
// stream: a tagged union of the opaque account/transaction records §1
// describes.
type envelope struct {
	IsAccount   bool
	Account     *decode.AccountUpdate
	Transaction *decode.TransactionUpdate
}

type envelopeCodec struct{}

func (envelopeCodec) Name() string { return codecName }

func (envelopeCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (envelopeCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
