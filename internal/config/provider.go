package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/sessionvault/internal/logging"
	"github.com/aretw0/sessionvault/pkg/adapters/file"
	"github.com/aretw0/sessionvault/pkg/adapters/memory"
	"github.com/aretw0/sessionvault/pkg/adapters/redis"
	"github.com/aretw0/sessionvault/pkg/ports"
)

// Logger builds the application logger described by the config.
func (c *Config) Logger() *slog.Logger {
	level, _ := logging.ParseLevel(c.Log.Level)
	format, _ := logging.ParseFormat(c.Log.Format)
	return logging.New(level, format)
}

// OpenProvider builds the configured backend. The returned close function releases
// network resources and is never nil.
func (c *Config) OpenProvider(ctx context.Context, logger *slog.Logger) (ports.StorageProvider, func() error, error) {
	noop := func() error { return nil }

	switch c.Backend {
	case BackendMemory:
		return memory.NewStore(nil, memory.WithLogger(logger)), noop, nil
	case BackendFile:
		return file.New(c.File.Dir, file.WithLogger(logger)), noop, nil
	case BackendRedis:
		store := redis.New(c.Redis.Addr, c.Redis.Password, c.Redis.DB,
			redis.WithPrefix(c.Redis.Prefix),
			redis.WithLockTTL(c.Redis.LockTTL),
			redis.WithLogger(logger),
		)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", c.Redis.Addr, err)
		}
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", c.Backend)
}
