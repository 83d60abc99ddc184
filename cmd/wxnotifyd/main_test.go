package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"xdao.co/wxmsg/notify"
)

func TestRun_ConfigErrors(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"--config", filepath.Join(t.TempDir(), "missing.json")}, &out, &errOut)
	require.Equal(t, 2, code)
	require.Contains(t, errOut.String(), "config:")

	path := filepath.Join(t.TempDir(), "wxmsg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"http_addr":":0"}`), 0o600))
	t.Setenv("WXMSG_TOKEN", "")
	t.Setenv("WXMSG_API_KEY", "")
	t.Setenv("WXMSG_ENDPOINTS", "")
	errOut.Reset()
	code = run(context.Background(), []string{"--config", path}, &out, &errOut)
	require.Equal(t, 2, code)
	require.Contains(t, errOut.String(), "requires token")

	code = run(context.Background(), []string{"--bogus"}, &out, &errOut)
	require.Equal(t, 2, code)
}

func TestRun_ServesUntilCanceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wxmsg.json")
	body := `{"token":"token","endpoints":["wechat"],"log_level":"error","archive":{"backends":[{"name":"memory"}]}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("WXMSG_API_KEY", "")
	t.Setenv("WXMSG_ENDPOINTS", "")

	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	var errOut bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"--config", path, "--addr", "127.0.0.1:0"}, pw, &errOut)
		_ = pw.Close()
	}()

	var addr string
	line := make([]byte, 256)
	n, err := pr.Read(line)
	require.NoError(t, err)
	_, err = fmt.Sscanf(string(line[:n]), "wxnotifyd listening on %s", &addr)
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/-/live")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Only the wechat endpoint is enabled.
	resp, err = http.Post("http://"+addr+"/pay/notify", "application/xml", strings.NewReader("<xml></xml>"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case code := <-done:
		require.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestServe_ReturnsOnCancel(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, 0, serve(ctx, lis, notify.New(notify.Options{Token: "t"}), zap.NewNop()))
}
