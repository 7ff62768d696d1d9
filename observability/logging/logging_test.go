package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerMasksSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, slog.LevelInfo))

	logger.Info("withdraw", slog.String("password", "hunter2"), slog.String("method", "withdraw"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, RedactedValue, line["password"])
	require.Equal(t, "withdraw", line["method"])
	require.Equal(t, "withdraw", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Contains(t, line, "timestamp")
	require.NotContains(t, buf.String(), "hunter2")
}

func TestHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, ParseLevel("warn")))
	logger.Info("dropped")
	require.Zero(t, buf.Len())
	logger.Warn("kept")
	require.NotZero(t, buf.Len())
}

func TestMaskField(t *testing.T) {
	require.Equal(t, "0xabc", MaskField("key", "0xabc").Value.String())
	require.Equal(t, RedactedValue, MaskField("email", "a@b.c").Value.String())
	require.Equal(t, RedactedValue, MaskField("passphrase", "x").Value.String())
	require.Equal(t, "", MaskField("password", "").Value.String())
	require.Contains(t, RedactionAllowlist(), "request_id")
}
