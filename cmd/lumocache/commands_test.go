package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumotrade/backend-go/internal/cachestore"
)

func seedFileCache(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "cache")
	b, err := cachestore.NewFileBackend(dir)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Minute).UnixMilli()
	future := now.Add(time.Hour).UnixMilli()
	for _, e := range []cachestore.Entry{
		{CacheKey: "market:breadth:v1", Scope: "daily:2024-06-07", Payload: json.RawMessage(`{"advancers":1}`)},
		{CacheKey: "market:breadth:v1", Scope: "daily:2024-06-10", Payload: json.RawMessage(`{"advancers":2}`)},
		{CacheKey: "news:v1:AAPL", Scope: cachestore.TTLScope, Payload: json.RawMessage(`[]`), ExpiresAt: &past},
		{CacheKey: "quotes:v1:abc", Scope: cachestore.TTLScope, Payload: json.RawMessage(`{}`), ExpiresAt: &future},
	} {
		e.CreatedAt, e.UpdatedAt = now, now
		require.NoError(t, b.Upsert(ctx, e))
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LUMO_CONFIG_FILE", "")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	dir := seedFileCache(t)
	out, err := runCLI(t, "--backend", "file", "--dir", dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "market:breadth:v1")
	assert.Contains(t, out, "daily:2024-06-10")
	assert.Contains(t, out, "expired")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "4 entries via file backend")

	out, err = runCLI(t, "--backend", "file", "--dir", dir, "list", "news:v1:AAPL")
	require.NoError(t, err)
	assert.Contains(t, out, "1 entries via file backend")
}

func TestShowCommand(t *testing.T) {
	dir := seedFileCache(t)
	out, err := runCLI(t, "--backend", "file", "--dir", dir, "show", "market:breadth:v1", "daily:2024-06-10")
	require.NoError(t, err)
	assert.Contains(t, out, "Scope:   daily:2024-06-10")
	assert.Contains(t, out, `"advancers": 2`)

	_, err = runCLI(t, "--backend", "file", "--dir", dir, "show", "market:breadth:v1", "daily:1999-01-01")
	assert.ErrorIs(t, err, cachestore.ErrNotFound)
}

func TestPurgeCommand(t *testing.T) {
	dir := seedFileCache(t)
	out, err := runCLI(t, "--backend", "file", "--dir", dir, "purge", "market:breadth:v1", "--keep", "daily:2024-06-10")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 entries")

	out, err = runCLI(t, "--backend", "file", "--dir", dir, "purge", "quotes:v1:abc", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 entries")

	b, err := cachestore.NewFileBackend(dir)
	require.NoError(t, err)
	defer b.Close()
	left, err := b.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestSweepCommand(t *testing.T) {
	dir := seedFileCache(t)
	out, err := runCLI(t, "--backend", "file", "--dir", dir, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "Swept 1 expired entries")
}

func TestDisabledBackendIsAnError(t *testing.T) {
	_, err := runCLI(t, "--backend", "none", "list")
	assert.ErrorContains(t, err, "disabled")
}
