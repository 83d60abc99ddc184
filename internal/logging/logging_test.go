package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_ConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New("warn", "", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", zap.String("cid", "bafk"))
	require.NoError(t, closeFn())

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "shown")
	require.Contains(t, out, `"cid": "bafk"`)
}

func TestNew_FileIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wxmsg.log")
	logger, closeFn, err := New("debug", path, nil)
	require.NoError(t, err)

	logger.Debug("archived callback", zap.Int("bytes", 42))
	require.NoError(t, closeFn())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(b))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	require.Equal(t, "archived callback", entry["msg"])
	require.Equal(t, "debug", entry["level"])
	require.EqualValues(t, 42, entry["bytes"])
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New("loud", "", nil)
	require.Error(t, err)
}
