package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/sessionvault"
	"github.com/aretw0/sessionvault/internal/config"
	"github.com/aretw0/sessionvault/pkg/domain"
	"github.com/aretw0/sessionvault/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI against a file backend rooted at dir.
func run(t *testing.T, dir string, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(append([]string{"--backend", "file", "--dir", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_PutGetRm(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, nil, "put", "s1", "--data", "hello")
	require.NoError(t, err)

	out, err := run(t, dir, nil, "get", "s1")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	out, err = run(t, dir, nil, "exists", "s1")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = run(t, dir, nil, "rm", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed session 's1'")

	_, err = run(t, dir, nil, "get", "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Equal(t, "session not found", err.Error())
}

func TestCLI_PutFromStdin(t *testing.T) {
	dir := t.TempDir()
	payload := "line one\nline two\x00"

	_, err := run(t, dir, strings.NewReader(payload), "put", "s1")
	require.NoError(t, err)

	out, err := run(t, dir, nil, "get", "s1")
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestCLI_RmReportsMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, nil, "put", "s1", "--data", "x")
	require.NoError(t, err)

	out, err := run(t, dir, nil, "rm", "s1", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Contains(t, out, "Removed session 's1'")
}

func TestCLI_LockUnlock(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, nil, "lock", "s1")
	require.NoError(t, err)

	_, err = run(t, dir, nil, "lock", "s1")
	assert.ErrorIs(t, err, errAlreadyLocked)

	_, err = run(t, dir, nil, "unlock", "s1")
	require.NoError(t, err)

	_, err = run(t, dir, nil, "lock", "s1")
	assert.NoError(t, err)
}

func TestCLI_GC(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, nil, "put", "s1", "--data", "x")
	require.NoError(t, err)

	out, err := run(t, dir, nil, "gc", "--max-age", "1h")
	require.NoError(t, err)
	assert.Equal(t, "Removed 0 stale sessions\n", out)

	out, err = run(t, dir, nil, "gc", "--max-age", "0s")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 stale sessions\n", out)
}

func TestCLI_GCRejectsNegativeMaxAge(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, nil, "put", "s1", "--data", "x")
	require.NoError(t, err)

	_, err = run(t, dir, nil, "gc", "--max-age=-1h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be negative")

	out, err := run(t, dir, nil, "exists", "s1")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
}

func TestCLI_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "sessionvault.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("backend: file\nfile:\n  dir: "+dir+"\n"), 0o644))

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--config", cfgPath, "put", "s1", "--data", "x"})
	require.NoError(t, cmd.Execute())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestCLI_InvalidBackend(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--backend", "etcd", "exists", "s1"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestCLI_Version(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "sessionvault version "+sessionvault.Version+"\n", out.String())
}

func TestRouter(t *testing.T) {
	cfg := config.Default()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, closeFn, err := cfg.OpenProvider(ctx, cfg.Logger())
	require.NoError(t, err)
	defer closeFn()

	metrics, err := observability.NewMetrics(nil)
	require.NoError(t, err)
	metrics.Swept.Add(3)

	srv := httptest.NewServer(newRouter(&env{cfg: &cfg, provider: p, backend: p}, metrics))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "sessionvault_swept_sessions_total 3")
}
