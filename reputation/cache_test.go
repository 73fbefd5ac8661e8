package reputation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aegis402/clearinghouse/domain"
	"github.com/shopspring/decimal"
)

type fakeReader struct {
	calls int
	rho   decimal.Decimal
	err   error
}

func (f *fakeReader) Reputation(ctx context.Context, agentID, address string) (domain.Reputation, error) {
	f.calls++
	if f.err != nil {
		return domain.Reputation{}, f.err
	}
	return domain.NewReputation(f.rho), nil
}

func TestCached_ServesFromCacheWithoutCallingInnerTwice(t *testing.T) {
	inner := &fakeReader{rho: decimal.NewFromFloat(1.25)}
	c := NewCached(inner, WithTTL(time.Minute))

	rho1, err := c.Reputation(context.Background(), "agent-1", "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rho2, err := c.Reputation(context.Background(), "agent-1", "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.calls != 1 {
		t.Fatalf("expected inner reader to be called once, got %d", inner.calls)
	}
	if rho1.Permille() != rho2.Permille() {
		t.Fatalf("expected cached value to match original: %d vs %d", rho1.Permille(), rho2.Permille())
	}
}

func TestCached_FallsBackToAddressKey(t *testing.T) {
	inner := &fakeReader{rho: decimal.NewFromFloat(2)}
	c := NewCached(inner, WithTTL(time.Minute))

	if _, err := c.Reputation(context.Background(), "", "0xABC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Reputation(context.Background(), "0", "0xabc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.calls != 1 {
		t.Fatalf("expected agent_id=\"\" and agent_id=\"0\" to share the normalized address key, got %d calls", inner.calls)
	}
}

func TestCached_NeverCachesAnError(t *testing.T) {
	inner := &fakeReader{err: errors.New("oracle unavailable")}
	c := NewCached(inner, WithTTL(time.Minute))

	if _, err := c.Reputation(context.Background(), "agent-1", "0xabc"); err == nil {
		t.Fatal("expected error to propagate")
	}
	if _, err := c.Reputation(context.Background(), "agent-1", "0xabc"); err == nil {
		t.Fatal("expected error to propagate again")
	}
	if inner.calls != 2 {
		t.Fatalf("expected inner reader to be retried after a failure, got %d calls", inner.calls)
	}
}

func TestCached_ExpiresAfterTTL(t *testing.T) {
	inner := &fakeReader{rho: decimal.NewFromFloat(1.5)}
	c := NewCached(inner, WithTTL(10*time.Millisecond))

	if _, err := c.Reputation(context.Background(), "agent-1", "0xabc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := c.Reputation(context.Background(), "agent-1", "0xabc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.calls != 2 {
		t.Fatalf("expected the cache entry to expire and the inner reader to be called again, got %d calls", inner.calls)
	}
}
