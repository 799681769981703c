package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"token-ingest-engine/internal/errs"
)

const subscribeMethod = "/ingest.FeedService/Subscribe"

// subscribeRequest is the one message sent to open a subscription; Filter
// travels as configuration, never as source-embedded program ids (§6).
type subscribeRequest struct {
	SubscriptionID string
	Filter         Filter
}

// dialer opens the transport-level stream for a subscription. The real
// implementation wraps a *grpc.ClientConn; tests inject a fake.
type dialer interface {
	openStream(ctx context.Context, subscriptionID string, filter Filter) (rawStream, error)
}

type grpcDialer struct {
	conn *grpc.ClientConn
}

func (g grpcDialer) openStream(ctx context.Context, subscriptionID string, filter Filter) (rawStream, error) {
	cs, err := g.conn.NewStream(ctx, &grpc.StreamDesc{StreamName: "Subscribe", ServerStreams: true},
		subscribeMethod, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(&subscribeRequest{SubscriptionID: subscriptionID, Filter: filter}); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return cs, nil
}

// Client is the process-wide pool of block-subscription connections (§4.2):
// at most one active Stream per subscriptionId.
type Client struct {
	mu      sync.Mutex
	streams map[string]*Stream
	dial    dialer

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewClient wraps an established grpc connection to the block-subscription
// endpoint. initialBackoff/maxBackoff default to the §4.2 failure policy
// (1s initial, 30s cap) when zero.
func NewClient(conn *grpc.ClientConn, initialBackoff, maxBackoff time.Duration) *Client {
	if initialBackoff <= 0 {
		initialBackoff = time.Second
	}
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	return newClientWithDialer(grpcDialer{conn: conn}, initialBackoff, maxBackoff)
}

func newClientWithDialer(d dialer, initialBackoff, maxBackoff time.Duration) *Client {
	return &Client{
		streams:        make(map[string]*Stream),
		dial:           d,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// Acquire returns the Stream for subscriptionId, opening it (with capped
// exponential backoff on transport failure) if none is active. Acquiring an
// id that already has an active stream is an invariant violation — callers
// are expected to Release before re-acquiring.
func (c *Client) Acquire(ctx context.Context, subscriptionID string, filter Filter) (*Stream, error) {
	c.mu.Lock()
	if _, exists := c.streams[subscriptionID]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("feed: subscription %q already active: %w", subscriptionID, errs.ErrInvariant)
	}
	c.mu.Unlock()

	raw, err := c.dialWithBackoff(ctx, subscriptionID, filter)
	if err != nil {
		return nil, err
	}

	_, cancel := context.WithCancel(ctx)
	s := &Stream{
		subscriptionID: subscriptionID,
		filter:         filter,
		raw:            raw,
		cancel:         cancel,
		onClose:        func() { c.forget(subscriptionID) },
	}

	c.mu.Lock()
	c.streams[subscriptionID] = s
	c.mu.Unlock()
	return s, nil
}

// Release closes and forgets the Stream for subscriptionId, if any. A
// no-op if the id has no active stream.
func (c *Client) Release(subscriptionID string) error {
	c.mu.Lock()
	s, ok := c.streams[subscriptionID]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close()
}

// ActiveCount reports the number of currently acquired streams, used by
// shutdown to confirm the pool drained (§5: "close the FeedClient pool").
func (c *Client) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

// CloseAll releases every active stream, best-effort.
func (c *Client) CloseAll() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.streams))
	for id := range c.streams {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	for _, id := range ids {
		_ = c.Release(id)
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.streams, id)
	c.mu.Unlock()
}

func (c *Client) dialWithBackoff(ctx context.Context, subscriptionID string, filter Filter) (rawStream, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialBackoff
	eb.MaxInterval = c.maxBackoff
	eb.MaxElapsedTime = 0 // retry until the caller's context is cancelled

	var raw rawStream
	op := func() error {
		r, err := c.dial.openStream(ctx, subscriptionID, filter)
		if err != nil {
			log.Warn().Err(err).Str("subscription", subscriptionID).Msg("feed stream dial failed, backing off")
			return err
		}
		raw = r
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(eb, ctx)); err != nil {
		return nil, fmt.Errorf("feed: acquire %q: %w: %w", subscriptionID, errs.ErrTransient, err)
	}
	return raw, nil
}

func reportStreamError(subscriptionID string, err error) {
	log.Warn().Err(err).Str("subscription", subscriptionID).Msg("feed stream closed, consumer must re-acquire")
}
