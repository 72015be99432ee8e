package vaultd

import (
	"context"
	"io"
	"math/big"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"yzyvault/crypto"
	"yzyvault/services/vaultd/config"
	"yzyvault/storage"
	"yzyvault/storage/journal"
)

var (
	yzy   = crypto.MustParseAddress("0x0000000000000000000000000000000000000a01")
	bob   = crypto.MustParseAddress("0x0000000000000000000000000000000000000b02")
	carol = crypto.MustParseAddress("0x0000000000000000000000000000000000000b05")
)

func testConfig(t *testing.T, backend string) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		ListenAddress:   "127.0.0.1:0",
		Genesis:         filepath.Join("..", "..", "core", "genesis", "testdata", "genesis.toml"),
		ShutdownTimeout: config.Duration{Duration: 2 * time.Second},
		Storage:         config.StorageConfig{Backend: backend, Path: filepath.Join(dir, "ledger")},
		Journal:         config.JournalConfig{Driver: journal.DriverSQLite, DSN: filepath.Join(dir, "journal.db")},
		Auth:            config.AuthConfig{HMACSecret: "0123456789abcdef0123", AnonymousReads: true},
		Stream:          config.StreamConfig{Buffer: 8, WriteTimeout: config.Duration{Duration: time.Second}},
	}
	return cfg
}

func TestServiceRestartKeepsLedger(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, storage.BackendLevelDB)

	svc, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	amount := new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil)
	require.NoError(t, svc.App().Transfer(ctx, yzy, bob, carol, amount))
	before, err := svc.App().Balance(yzy, carol)
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	svc, err = New(ctx, cfg, nil)
	require.NoError(t, err)
	defer svc.Close()
	after, err := svc.App().Balance(yzy, carol)
	require.NoError(t, err)
	require.Zero(t, before.Cmp(after))

	last, err := svc.journal.LastSequence(ctx)
	require.NoError(t, err)
	require.NotZero(t, last)
	journaled, err := svc.journal.Query(ctx, journal.Filter{})
	require.NoError(t, err)
	require.Len(t, journaled, int(last), "events are journaled once across restarts")
}

func TestServiceServesUntilCancelled(t *testing.T) {
	cfg := testConfig(t, storage.BackendMemory)
	cfg.Journal.DSN = ""

	svc, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer svc.Close()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx, listener) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	resp, err = http.Get("http://" + listener.Addr().String() + "/v1/events")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

func TestServiceRejectsMissingGenesis(t *testing.T) {
	cfg := testConfig(t, storage.BackendMemory)
	cfg.Genesis = filepath.Join(t.TempDir(), "missing.toml")
	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
}
