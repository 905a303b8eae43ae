package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/sessionvault/internal/config"
	"github.com/aretw0/sessionvault/internal/logging"
	"github.com/aretw0/sessionvault/pkg/adapters/file"
	"github.com/aretw0/sessionvault/pkg/adapters/memory"
	"github.com/aretw0/sessionvault/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessionvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, config.Default(), *cfg)
	assert.Equal(t, config.BackendMemory, cfg.Backend)
	assert.Equal(t, 24*time.Hour, cfg.GC.MaxAge)
	assert.Equal(t, 10*time.Minute, cfg.GC.Interval)
	assert.Equal(t, ":2112", cfg.Metrics.Addr)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
backend: redis
redis:
  addr: cache:6380
  db: 2
  lock_ttl: 30s
gc:
  max_age: 90m
log:
  level: debug
  format: json
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, config.BackendRedis, cfg.Backend)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "sessionvault:", cfg.Redis.Prefix, "unset keys keep their default")
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, 90*time.Minute, cfg.GC.MaxAge)
	assert.Equal(t, 10*time.Minute, cfg.GC.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_OverridesWinOverFile(t *testing.T) {
	path := writeConfig(t, "backend: redis\nfile:\n  dir: /from/file\n")

	cfg, err := config.Load(path, map[string]any{
		"backend":    "file",
		"file.dir":   "/from/flag",
		"gc.max_age": "2h",
		"redis.db":   "5",
	})
	require.NoError(t, err)

	assert.Equal(t, config.BackendFile, cfg.Backend)
	assert.Equal(t, "/from/flag", cfg.File.Dir)
	assert.Equal(t, 2*time.Hour, cfg.GC.MaxAge)
	assert.Equal(t, 5, cfg.Redis.DB)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown backend", "backend: etcd\n", "unknown backend"},
		{"unknown key", "bakend: memory\n", "invalid config"},
		{"bad duration", "gc:\n  max_age: soon\n", "invalid config"},
		{"negative interval", "gc:\n  interval: -1m\n", "gc.interval"},
		{"bad level", "log:\n  level: loud\n", "unknown log level"},
		{"bad yaml", "backend: [\n", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_OverrideIntoScalar(t *testing.T) {
	path := writeConfig(t, "backend: memory\n")

	_, err := config.Load(path, map[string]any{"backend.name": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a section")
}

func TestOpenProvider(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewNop()

	t.Run("memory", func(t *testing.T) {
		cfg := config.Default()
		p, closeFn, err := cfg.OpenProvider(ctx, logger)
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, p)
		assert.NoError(t, closeFn())
	})

	t.Run("file", func(t *testing.T) {
		cfg := config.Default()
		cfg.Backend = config.BackendFile
		cfg.File.Dir = t.TempDir()

		p, closeFn, err := cfg.OpenProvider(ctx, logger)
		require.NoError(t, err)
		require.IsType(t, &file.Store{}, p)
		assert.Equal(t, cfg.File.Dir, p.(*file.Store).BasePath)
		assert.NoError(t, closeFn())
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Default()
		cfg.Backend = config.BackendRedis
		cfg.Redis.Addr = mr.Addr()
		cfg.Redis.Prefix = "test:"

		p, closeFn, err := cfg.OpenProvider(ctx, logger)
		require.NoError(t, err)
		require.IsType(t, &redis.Store{}, p)

		require.NoError(t, p.Save(ctx, "s1", []byte("x")))
		assert.True(t, mr.Exists("test:data:s1"))
		assert.NoError(t, closeFn())
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()

		cfg := config.Default()
		cfg.Backend = config.BackendRedis
		cfg.Redis.Addr = addr

		_, _, err = cfg.OpenProvider(ctx, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to redis")
	})
}
