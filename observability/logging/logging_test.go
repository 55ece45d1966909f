package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "ontlockd.log")
	logger, closer := Setup(Options{Service: "ontlockd", Environment: "test", File: file, Output: &buf})
	defer closer.Close()

	logger.Info("stored", MaskField("website", "example.com"), MaskField("op", "put"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "stored", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "ontlockd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, RedactedValue, line["website"])
	require.Equal(t, "put", line["op"])
	require.Contains(t, line, "timestamp")
	require.FileExists(t, file)
}

func TestMaskValue(t *testing.T) {
	require.Equal(t, "", MaskValue(" "[:0]))
	require.Equal(t, RedactedValue, MaskValue("hunter2"))
	require.True(t, IsAllowlisted(" Account "))
	require.False(t, IsAllowlisted("password"))
	require.Contains(t, RedactionAllowlist(), "request_id")
}
