package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sunrised/internal/config"
	"github.com/dokzlo13/sunrised/internal/eventbus"
	"github.com/dokzlo13/sunrised/internal/gateway"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	cfg.Gateway.URL = "http://bridge.local"
	cfg.Gateway.APIKey = "secret"
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = freePort(t)
	cfg.Database.Path = ":memory:"
	cfg.ShutdownTimeout = config.Duration(2 * time.Second)
	require.NoError(t, cfg.Validate())
	return cfg
}

func unreachable() gateway.Dialer {
	return gateway.DialFunc(func(endpoint, credential string) (gateway.Gateway, error) {
		return nil, &gateway.ConnectionError{Endpoint: endpoint, Err: errors.New("no route to host")}
	})
}

func TestServices_Lifecycle(t *testing.T) {
	cfg := testConfig(t)

	s, err := NewServicesWithDialer(cfg, unreachable())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx, func(err error) {
		t.Errorf("unexpected fatal error: %v", err)
	}))

	require.Eventually(t, s.Alarm.Ready, 2*time.Second, 10*time.Millisecond)

	// The failing run is recorded through the bus.
	require.Eventually(t, func() bool {
		entries, err := s.Ledger.Ledger.Recent(10)
		return err == nil && len(entries) > 0
	}, 2*time.Second, 10*time.Millisecond)

	entries, err := s.Ledger.Ledger.Recent(10)
	require.NoError(t, err)
	assert.Equal(t, eventbus.EventTypeRunExited, entries[len(entries)-1].EventType)
	assert.Equal(t, "error", entries[len(entries)-1].Payload["reason"])

	base := fmt.Sprintf("http://%s", cfg.API.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/ready")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(base + "/api/v1/alarm")
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "7h0m0s", body["end"])
	assert.Equal(t, "30m0s", body["fadeDuration"])

	cancel()
	require.NoError(t, s.Stop())
	assert.False(t, s.Alarm.Ready())
}

func TestServices_LedgerDisabled(t *testing.T) {
	cfg := testConfig(t)
	disabled := false
	cfg.Ledger.Enabled = &disabled

	s, err := NewServicesWithDialer(cfg, unreachable())
	require.NoError(t, err)
	defer s.Close()

	assert.Nil(t, s.Ledger.DB)
	assert.Nil(t, s.Ledger.History())
}

func TestServices_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Alarm.WakeTime = "later"

	_, err := NewServicesWithDialer(cfg, unreachable())
	assert.Error(t, err)
}

func TestApp_StartStop(t *testing.T) {
	cfg := testConfig(t)

	a, err := NewWithDialer(cfg, unreachable())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Start(ctx))

	cancel()
	a.Wait()
	require.NoError(t, a.Stop())
	require.NoError(t, a.Stop())
}

func TestApp_RunReturnsOnCancel(t *testing.T) {
	cfg := testConfig(t)

	a, err := NewWithDialer(cfg, unreachable())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, a.Services().Alarm.Ready, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
