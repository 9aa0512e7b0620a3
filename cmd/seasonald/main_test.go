package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SeasonalDesk/internal/config"
	"SeasonalDesk/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	cfg.Database.SQLitePath = filepath.Join(dir, "db", "seasonal.db")
	cfg.Snapshot.Dir = filepath.Join(dir, "snapshots")
	cfg.Snapshot.Cron = "@every 1h"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, ln) }()

	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := `{"rows": [{"Date": "2023-01-02", "Close": 100}, {"Date": "2023-01-03", "Close": 110}]}`
	resp, err = client.Post(base+"/api/process", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var env struct {
		Success bool               `json:"success"`
		Data    []model.DerivedRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.True(t, env.Success)
	require.Len(t, env.Data, 2)
	assert.InDelta(t, 10, env.Data[1].PctChange, 1e-9)

	resp, err = client.Get(base + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	assert.FileExists(t, cfg.Database.SQLitePath)
}

func TestRun_BadCron(t *testing.T) {
	cfg := testConfig(t)
	cfg.Snapshot.Cron = "not a spec"
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	assert.Error(t, run(context.Background(), cfg, ln))
}
