package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aretw0/sessionvault/internal/logging"
	"github.com/aretw0/sessionvault/pkg/domain"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix is prepended to every key the store touches.
const DefaultPrefix = "sessionvault:"

// Store implements ports.StorageProvider using Redis.
//
// Layout: <prefix>data:<id> holds the payload, <prefix>lock:<id> marks a lock and
// the <prefix>index sorted set scores every id by its last write in Unix microseconds.
type Store struct {
	client     *backend.Client
	prefix     string
	lockTTL    time.Duration
	instanceID string
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithLockTTL makes lock keys expire after ttl, so a crashed holder cannot keep a
// session locked forever. Zero means locks never expire.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.lockTTL = ttl
	}
}

// WithClock overrides the time source used to stamp writes and compute sweep cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client:     client,
		prefix:     DefaultPrefix,
		instanceID: uuid.NewString(),
		now:        time.Now,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) dataKey(id string) string {
	return s.prefix + "data:" + id
}

func (s *Store) lockKey(id string) string {
	return s.prefix + "lock:" + id
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// InstanceID is the value this store writes into the lock keys it creates.
func (s *Store) InstanceID() string {
	return s.instanceID
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Save writes the payload and its index entry in one MULTI/EXEC transaction.
func (s *Store) Save(ctx context.Context, id string, payload []byte) error {
	if err := domain.ValidateID(id); err != nil {
		return err
	}
	score := float64(s.now().UnixMicro())

	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Set(ctx, s.dataKey(id), payload, 0)
		pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: id})
		return nil
	})
	if err != nil {
		return domain.NewStorageError(domain.OpWrite, id, fmt.Errorf("failed to save to redis: %w", err))
	}
	return nil
}

// Get retrieves the payload from Redis.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.dataKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, domain.NewStorageError(domain.OpRead, id, fmt.Errorf("failed to get from redis: %w", err))
	}
	return val, nil
}

// SessionExists reports whether the payload key exists.
func (s *Store) SessionExists(ctx context.Context, id string) bool {
	n, err := s.client.Exists(ctx, s.dataKey(id)).Result()
	if err != nil {
		s.logger.Warn("Failed to check session existence", "session_id", id, "err", err)
		return false
	}
	return n == 1
}

// Destroy removes the payload and its index entry. The lock key is kept.
func (s *Store) Destroy(ctx context.Context, id string) error {
	var del *backend.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		del = pipe.Del(ctx, s.dataKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return domain.NewStorageError(domain.OpDelete, id, fmt.Errorf("failed to delete from redis: %w", err))
	}
	if del.Val() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// sweepScript removes every indexed session scored at or below ARGV[1] in one
// atomic server-side step. Data keys are derived from ARGV[2], so the script is
// not cluster-safe.
var sweepScript = backend.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
for _, id in ipairs(ids) do
	redis.call("DEL", ARGV[2] .. id)
end
if #ids > 0 then
	redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
end
return #ids
`)

// ClearOld removes sessions written at or before now-maxAge.
func (s *Store) ClearOld(ctx context.Context, maxAge time.Duration) error {
	_, err := s.Sweep(ctx, maxAge)
	return err
}

// Sweep is ClearOld returning the number of sessions removed.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := domain.Cutoff(s.now(), maxAge).UnixMicro()

	n, err := sweepScript.Run(ctx, s.client,
		[]string{s.indexKey()},
		strconv.FormatInt(cutoff, 10), s.prefix+"data:",
	).Int()
	if err != nil {
		return 0, domain.NewStorageError(domain.OpDelete, "", fmt.Errorf("failed to sweep redis: %w", err))
	}
	if n > 0 {
		s.logger.Debug("Swept stale sessions", "removed", n, "cutoff_us", cutoff)
	}
	return n, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
