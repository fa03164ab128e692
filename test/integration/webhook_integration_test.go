package integration

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"updatehook/internal/config"
	"updatehook/internal/logging"
	"updatehook/internal/server"
	"updatehook/internal/update"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "integration-secret-with-plenty-of-entropy-9f3k2"

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type listener struct {
	url    string
	out    string
	logs   *lockedBuffer
	cancel context.CancelFunc
	done   chan error
	once   sync.Once
}

// startListener runs the full serve stack with a script that appends its
// argument count and arguments to a file on every run.
func startListener(t *testing.T, secret string) *listener {
	t.Helper()

	dir := t.TempDir()
	out := filepath.Join(dir, "runs.txt")
	script := filepath.Join(dir, "update.sh")
	body := fmt.Sprintf("#!/bin/bash\necho \"argc=$# args=$*\" >> %q\necho updated\n", out)
	require.NoError(t, os.WriteFile(script, []byte(body), 0755))

	cfg := config.Default()
	cfg.Secret = secret
	cfg.UpdateScript = script
	cfg.LogFile = filepath.Join(dir, "update.log")
	require.NoError(t, cfg.Validate())

	logs := &lockedBuffer{}
	logger := logging.New(nil, logging.Options{Stdout: logs, Stderr: logs})

	runner, err := update.NewScriptRunner(cfg)
	require.NoError(t, err)
	srv := server.NewServer(cfg, update.NewDispatcher(runner, logger), logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	l := &listener{
		url:    "http://" + ln.Addr().String(),
		out:    out,
		logs:   logs,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() { l.done <- srv.Serve(ctx, ln) }()
	t.Cleanup(l.stop)

	return l
}

func (l *listener) stop() {
	l.once.Do(func() {
		l.cancel()
		select {
		case <-l.done:
		case <-time.After(10 * time.Second):
		}
	})
}

func (l *listener) post(t *testing.T, path, payload, signature string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, l.url+path, strings.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	if signature != "" {
		req.Header.Set(server.SignatureHeader, signature)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (l *listener) runs() []string {
	data, err := os.ReadFile(l.out)
	if err != nil {
		return nil
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestPushToMainRunsScript(t *testing.T) {
	l := startListener(t, secret)

	payload := `{"ref":"refs/heads/main","pusher":{"name":"octocat"},"commits":[{"id":"a"},{"id":"b"}]}`
	resp := l.post(t, "/", payload, server.Sign(secret, []byte(payload)))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		return strings.Contains(l.logs.String(), "Update completed successfully")
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, []string{"argc=0 args="}, l.runs())
	logs := l.logs.String()
	assert.Contains(t, logs, "Received push to main branch")
	assert.Contains(t, logs, "pusher=octocat")
	assert.Contains(t, logs, "commits=2")
	assert.Contains(t, logs, `stdout="updated\n"`)
}

func TestPayloadFieldsNeverReachScript(t *testing.T) {
	l := startListener(t, secret)

	payload := `{"ref":"refs/heads/main","pusher":{"name":"$(touch /tmp/pwned); rm -rf ~"},"commits":[{"message":"` + "`id`" + `"}]}`
	resp := l.post(t, "/hooks/anything", payload, server.Sign(secret, []byte(payload)))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		return len(l.runs()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "argc=0 args=", l.runs()[0])
}

func TestRejectedRequestsDoNotRunScript(t *testing.T) {
	l := startListener(t, secret)

	mainPush := `{"ref":"refs/heads/main","pusher":{"name":"octocat"},"commits":[]}`

	tests := []struct {
		name      string
		payload   string
		signature string
		want      int
	}{
		{"missing signature", mainPush, "", http.StatusUnauthorized},
		{"wrong secret", mainPush, server.Sign("not-the-secret", []byte(mainPush)), http.StatusUnauthorized},
		{"malformed json", "{not json", server.Sign(secret, []byte("{not json")), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := l.post(t, "/", tt.payload, tt.signature)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	ignored := `{"ref":"refs/heads/develop","pusher":{"name":"octocat"},"commits":[]}`
	resp := l.post(t, "/", ignored, server.Sign(secret, []byte(ignored)))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(l.url + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	// Give any stray run time to show up before asserting none happened.
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, l.runs())
}

func TestPlaceholderSecretAcceptsUnsigned(t *testing.T) {
	l := startListener(t, config.DefaultSecret)

	payload := `{"ref":"refs/heads/main","pusher":{"name":"octocat"},"commits":[]}`
	resp := l.post(t, "/", payload, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		return len(l.runs()) == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestShutdownWaitsForRunningUpdate(t *testing.T) {
	l := startListener(t, secret)

	payload := `{"ref":"refs/heads/main","pusher":{"name":"octocat"},"commits":[]}`
	for i := 0; i < 3; i++ {
		resp := l.post(t, "/", payload, server.Sign(secret, []byte(payload)))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	l.stop()

	assert.Len(t, l.runs(), 3)
	assert.Contains(t, l.logs.String(), "Webhook listener shutting down...")
}
