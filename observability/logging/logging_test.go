package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Service: "vaultd", Env: "test", Level: "debug"})
	logger.Debug("stake", "amount", "100")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "stake", line["message"])
	require.Equal(t, "vaultd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Service: "vaultd", Level: "warn"})
	logger.Info("quiet")
	require.Zero(t, buf.Len())
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("jwt_secret", "hunter2").Value.String())
	require.Equal(t, "", MaskField("jwt_secret", "").Value.String())
	require.Equal(t, "0xabc", MaskField("account", "0xabc").Value.String())
}

func TestSetupWithOptionsRotatesToFile(t *testing.T) {
	path := t.TempDir() + "/vaultd.log"
	logger, closer := SetupWithOptions(Options{Service: "vaultd", File: path})
	logger.Info("hello")
	require.NoError(t, closer.Close())
}
