package facilitator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/aegis402/clearinghouse/ports"
)

// defaultIdempotencyTTL bounds how long a Settle result is served from
// cache on retry, per the coinbase-x402 idempotency pattern this package
// is modeled on.
const defaultIdempotencyTTL = 10 * time.Minute

// Store is the dedup backend an Idempotent facilitator reads and writes
// through, keyed on a hash of the submitted payment payload.
type Store interface {
	Get(ctx context.Context, key string) (ports.SettleResult, bool)
	Set(ctx context.Context, key string, result ports.SettleResult, ttl time.Duration)
}

// Idempotent wraps any ports.Facilitator so that a retried Settle call for
// the same payment payload returns the first call's result instead of
// attempting to settle the payment twice. Verify is never deduplicated —
// it has no side effect to protect against double-submission.
type Idempotent struct {
	inner ports.Facilitator
	store Store
	ttl   time.Duration
	log   *slog.Logger
}

// Option configures an Idempotent facilitator.
type Option func(*Idempotent)

// WithStore overrides the default in-process store (e.g. with a
// RedisStore, for clearinghouse deployments running more than one
// process behind the same facilitator).
func WithStore(s Store) Option {
	return func(i *Idempotent) { i.store = s }
}

// WithTTL overrides the default 10-minute dedup window.
func WithTTL(ttl time.Duration) Option {
	return func(i *Idempotent) { i.ttl = ttl }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(log *slog.Logger) Option {
	return func(i *Idempotent) { i.log = log }
}

// NewIdempotent wraps inner. Absent WithStore, the default is an
// in-process TTL cache (github.com/hashicorp/golang-lru/v2/expirable).
func NewIdempotent(inner ports.Facilitator, opts ...Option) *Idempotent {
	i := &Idempotent{inner: inner, ttl: defaultIdempotencyTTL}
	for _, opt := range opts {
		opt(i)
	}
	if i.store == nil {
		i.store = newLocalSettleStore(i.ttl)
	}
	if i.log == nil {
		i.log = slog.Default()
	}
	return i
}

func (i *Idempotent) Verify(submission ports.PaymentSubmission) (ports.VerifyResult, error) {
	return i.inner.Verify(submission)
}

func (i *Idempotent) Settle(submission ports.PaymentSubmission) (ports.SettleResult, error) {
	key := submissionKey(submission)
	ctx := context.Background()
	correlationID := uuid.New().String()

	if cached, found := i.store.Get(ctx, key); found {
		i.log.Info("facilitator: settle served from idempotency cache", "correlation_id", correlationID, "key", key)
		return cached, nil
	}

	result, err := i.inner.Settle(submission)
	if err != nil {
		// Never cache a failed call — a gateway timeout on the way out
		// must not pin a non-result for the TTL window, since the
		// underlying settlement may or may not have actually happened.
		i.log.Warn("facilitator: settle failed", "correlation_id", correlationID, "key", key, "err", err)
		return ports.SettleResult{}, err
	}

	i.log.Info("facilitator: settle succeeded", "correlation_id", correlationID, "key", key, "transaction", result.Transaction)
	i.store.Set(ctx, key, result, i.ttl)
	return result, nil
}

func submissionKey(submission ports.PaymentSubmission) string {
	buf, err := json.Marshal(submission)
	if err != nil {
		// Marshal of a map[string]any + struct cannot fail in practice;
		// fall back to a key that simply never dedups rather than panic.
		return fmt.Sprintf("unhashable:%p", &submission)
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

type localSettleStore struct {
	cache *lru.LRU[string, ports.SettleResult]
}

func newLocalSettleStore(ttl time.Duration) *localSettleStore {
	return &localSettleStore{cache: lru.NewLRU[string, ports.SettleResult](4096, nil, ttl)}
}

func (s *localSettleStore) Get(ctx context.Context, key string) (ports.SettleResult, bool) {
	return s.cache.Get(key)
}

func (s *localSettleStore) Set(ctx context.Context, key string, result ports.SettleResult, ttl time.Duration) {
	s.cache.Add(key, result)
}

// RedisStore is the opt-in shared backend for deployments running more
// than one clearinghouse process behind the same facilitator.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps client with prefix (defaulting to
// "aegis402:settle") ahead of every key.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "aegis402:settle"
	}
	prefix = strings.TrimSuffix(prefix, ":")
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return fmt.Sprintf("%s:%s", s.prefix, k)
}

func (s *RedisStore) Get(ctx context.Context, key string) (ports.SettleResult, bool) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		return ports.SettleResult{}, false
	}
	var result ports.SettleResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return ports.SettleResult{}, false
	}
	return result, true
}

func (s *RedisStore) Set(ctx context.Context, key string, result ports.SettleResult, ttl time.Duration) {
	buf, err := json.Marshal(result)
	if err != nil {
		return
	}
	s.client.Set(ctx, s.key(key), buf, ttl)
}
