package feed

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"token-ingest-engine/internal/errs"
)

type fakeRawStream struct {
	mu     sync.Mutex
	queue  []envelope
	closed bool
}

func (f *fakeRawStream) RecvMsg(m any) error {
	env, ok := m.(*envelope)
	if !ok {
		return errors.New("unexpected message type")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return io.EOF
	}
	*env = f.queue[0]
	f.queue = f.queue[1:]
	return nil
}

func (f *fakeRawStream) CloseSend() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

type fakeDialer struct {
	mu        sync.Mutex
	failTimes int
	stream    *fakeRawStream
	opened    int
}

func (d *fakeDialer) openStream(ctx context.Context, subscriptionID string, filter Filter) (rawStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened++
	if d.failTimes > 0 {
		d.failTimes--
		return nil, errors.New("dial failed")
	}
	return d.stream, nil
}

func TestAcquireRejectsDuplicateSubscription(t *testing.T) {
	d := &fakeDialer{stream: &fakeRawStream{}}
	c := newClientWithDialer(d, time.Millisecond, time.Millisecond)

	if _, err := c.Acquire(context.Background(), "sub1", Filter{}); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	_, err := c.Acquire(context.Background(), "sub1", Filter{})
	if !errors.Is(err, errs.ErrInvariant) {
		t.Fatalf("expected ErrInvariant on duplicate acquire, got %v", err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	d := &fakeDialer{stream: &fakeRawStream{}}
	c := newClientWithDialer(d, time.Millisecond, time.Millisecond)

	s, err := c.Acquire(context.Background(), "sub1", Filter{})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if s.subscriptionID != "sub1" {
		t.Fatalf("expected stream bound to sub1, got %q", s.subscriptionID)
	}
	if err := c.Release("sub1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if c.ActiveCount() != 0 {
		t.Fatalf("expected 0 active streams after release, got %d", c.ActiveCount())
	}
	if !d.stream.closed {
		t.Fatal("expected underlying stream to be closed")
	}

	if _, err := c.Acquire(context.Background(), "sub1", Filter{}); err != nil {
		t.Fatalf("re-acquire after release: %v", err)
	}
	_ = s
}

func TestAcquireRetriesOnDialFailure(t *testing.T) {
	d := &fakeDialer{stream: &fakeRawStream{}, failTimes: 2}
	c := newClientWithDialer(d, time.Millisecond, 10*time.Millisecond)

	_, err := c.Acquire(context.Background(), "sub1", Filter{})
	if err != nil {
		t.Fatalf("expected eventual success after retries, got %v", err)
	}
	if d.opened != 3 {
		t.Fatalf("expected 3 dial attempts, got %d", d.opened)
	}
}

func TestAcquireGivesUpWhenContextCancelled(t *testing.T) {
	d := &fakeDialer{stream: &fakeRawStream{}, failTimes: 1000}
	c := newClientWithDialer(d, time.Millisecond, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Acquire(ctx, "sub1", Filter{})
	if !errors.Is(err, errs.ErrTransient) {
		t.Fatalf("expected ErrTransient once context is exhausted, got %v", err)
	}
}

func TestStreamUpdatesYieldsUntilEOF(t *testing.T) {
	raw := &fakeRawStream{queue: []envelope{
		{IsAccount: true, Account: nil},
		{IsAccount: false, Transaction: nil},
	}}
	d := &fakeDialer{stream: raw}
	c := newClientWithDialer(d, time.Millisecond, time.Millisecond)

	s, err := c.Acquire(context.Background(), "sub1", Filter{})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	var kinds []UpdateKind
	for u := range s.Updates() {
		kinds = append(kinds, u.Kind)
	}
	if len(kinds) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(kinds))
	}
	if kinds[0] != UpdateKindAccount || kinds[1] != UpdateKindTransaction {
		t.Fatalf("unexpected kind sequence: %v", kinds)
	}
}

func TestCloseAllReleasesEveryStream(t *testing.T) {
	d := &fakeDialer{stream: &fakeRawStream{}}
	c := newClientWithDialer(d, time.Millisecond, time.Millisecond)

	for _, id := range []string{"a", "b", "c"} {
		if _, err := c.Acquire(context.Background(), id, Filter{}); err != nil {
			t.Fatalf("acquire %s: %v", id, err)
		}
	}
	c.CloseAll()
	if c.ActiveCount() != 0 {
		t.Fatalf("expected 0 active streams after CloseAll, got %d", c.ActiveCount())
	}
}
