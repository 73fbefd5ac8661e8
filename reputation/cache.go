package reputation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/aegis402/clearinghouse/domain"
	"github.com/aegis402/clearinghouse/ports"
)

const defaultTTL = 60 * time.Second

// Store is the cache backend a Cached reader reads and writes through. Its
// Get/Set work in permille (an int64) rather than domain.Reputation so a
// Redis-backed Store never needs to know how to (de)serialize a
// decimal.Decimal.
type Store interface {
	Get(ctx context.Context, key string) (permille int64, found bool)
	Set(ctx context.Context, key string, permille int64, ttl time.Duration)
}

// Cached wraps any ports.ReputationReader with a TTL cache keyed on
// agent_id (falling back to address exactly as the wrapped reader itself
// would), per SPEC_FULL.md §4.5: Subscribe, every Quote candidate, and
// Recovery all read reputation, and the reader is assumed to be an
// external, possibly rate-limited, oracle.
type Cached struct {
	inner ports.ReputationReader
	store Store
	ttl   time.Duration
}

// Option configures a Cached reader.
type Option func(*Cached)

// WithStore overrides the default in-process store (e.g. with a
// RedisStore, for clearinghouse deployments running more than one
// process).
func WithStore(s Store) Option {
	return func(c *Cached) { c.store = s }
}

// WithTTL overrides the default 60s cache lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cached) { c.ttl = ttl }
}

// NewCached wraps inner with a cache. Absent WithStore, the default is an
// in-process TTL cache (github.com/hashicorp/golang-lru/v2/expirable) —
// the simplest backend, requiring no external service to run the
// clearinghouse at all.
func NewCached(inner ports.ReputationReader, opts ...Option) *Cached {
	c := &Cached{inner: inner, ttl: defaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = newLocalStore(c.ttl)
	}
	return c
}

func (c *Cached) Reputation(ctx context.Context, agentID, address string) (domain.Reputation, error) {
	key := cacheKey(agentID, address)
	if permille, found := c.store.Get(ctx, key); found {
		return domain.ReputationFromPermille(permille), nil
	}

	rho, err := c.inner.Reputation(ctx, agentID, address)
	if err != nil {
		// Never cache a failure — a transient oracle outage must not pin a
		// stale-looking non-result into the cache for the TTL window.
		return domain.Reputation{}, err
	}

	c.store.Set(ctx, key, rho.Permille(), c.ttl)
	return rho, nil
}

func cacheKey(agentID, address string) string {
	key := agentID
	if key == "" || key == "0" {
		key = domain.NormalizeAddress(address)
	}
	return key
}

// localStore is the default in-process Store over golang-lru/v2/expirable.
type localStore struct {
	cache *lru.LRU[string, int64]
}

func newLocalStore(ttl time.Duration) *localStore {
	return &localStore{cache: lru.NewLRU[string, int64](1024, nil, ttl)}
}

func (s *localStore) Get(ctx context.Context, key string) (int64, bool) {
	return s.cache.Get(key)
}

func (s *localStore) Set(ctx context.Context, key string, permille int64, ttl time.Duration) {
	s.cache.Add(key, permille)
}

// RedisStore is the opt-in shared backend (SPEC_FULL.md §4.5), for
// deployments running more than one clearinghouse process that need to
// agree on cached reputation factors.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps client with prefix (defaulting to
// "aegis402:reputation") ahead of every key.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "aegis402:reputation"
	}
	prefix = strings.TrimSuffix(prefix, ":")
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return fmt.Sprintf("%s:%s", s.prefix, k)
}

func (s *RedisStore) Get(ctx context.Context, key string) (int64, bool) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		return 0, false
	}
	permille, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return permille, true
}

func (s *RedisStore) Set(ctx context.Context, key string, permille int64, ttl time.Duration) {
	s.client.Set(ctx, s.key(key), strconv.FormatInt(permille, 10), ttl)
}
