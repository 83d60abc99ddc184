package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"xdao.co/wxmsg/archive/grpcarchive"
)

func TestRun_FlagErrors(t *testing.T) {
	var out, errOut bytes.Buffer
	require.Equal(t, 2, run(context.Background(), nil, &out, &errOut))
	require.Contains(t, errOut.String(), "one of --dir or --config")

	errOut.Reset()
	require.Equal(t, 2, run(context.Background(), []string{"--dir", t.TempDir(), "--config", "x.json"}, &out, &errOut))
	require.Contains(t, errOut.String(), "mutually exclusive")

	require.Equal(t, 2, run(context.Background(), []string{"--dir", t.TempDir(), "--log-level", "loud"}, &out, &errOut))
}

func TestRun_ListBackends(t *testing.T) {
	var out, errOut bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"--list-backends"}, &out, &errOut))
	require.Equal(t, "grpc\nlocalfs\nmemory\n", out.String())
}

func TestRun_ServesArchive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	var errOut bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"--dir", t.TempDir(), "--listen", "127.0.0.1:0", "--log-level", "error"}, pw, &errOut)
		_ = pw.Close()
	}()

	line := make([]byte, 256)
	n, err := pr.Read(line)
	require.NoError(t, err)
	var addr string
	_, err = fmt.Sscanf(string(line[:n]), "wxarchived listening on %s", &addr)
	require.NoError(t, err)

	client, err := grpcarchive.Dial(addr, grpcarchive.DialOptions{})
	require.NoError(t, err)
	client.Timeout = 5 * time.Second
	defer client.Close()

	doc := []byte("<xml><MsgType><![CDATA[event]]></MsgType></xml>")
	id, err := client.Put(context.Background(), doc)
	require.NoError(t, err)
	got, err := client.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, doc, got)

	cancel()
	select {
	case code := <-done:
		require.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
