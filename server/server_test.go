package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/prompt2json/config"
	"github.com/teilomillet/prompt2json/enhancer"
	"github.com/teilomillet/prompt2json/errors"
	"github.com/teilomillet/prompt2json/server/mocks"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) *Server {
	t.Helper()
	s, err := NewServer(cfg, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	return s
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServerEndToEnd(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.Handler()

	var first, second enhancer.Result
	rec := post(t, h, "/transform", `{"prompt": "first create a database, then export it to csv and handle errors"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Response-Time"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = post(t, h, "/transform", `{"prompt": "FIRST create a database, then export it to CSV and handle errors   "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Contains(t, first.ExpectedSolution, "multi-step solution with clear sequence of operations")
	assert.Contains(t, first.ExpectedSolution, "step-by-step implementation with proper sequencing")
	assert.Contains(t, first.ExpectedSolution, "error handling")

	rec = get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"prompt-to-json-enhancer"}`, rec.Body.String())

	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "prompt2json_cache_hits_total 1")
	assert.Contains(t, body, "prompt2json_cache_misses_total 1")
	assert.Contains(t, body, `prompt2json_http_requests_total{endpoint="/transform",status="200"} 2`)
	assert.Contains(t, body, `prompt2json_circuit_breaker_state{name="transform"} 0`)

	rec = get(t, h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<textarea")
}

func TestServerErrorResponses(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	tests := []struct {
		name     string
		rec      *httptest.ResponseRecorder
		wantCode int
		wantType errors.ErrorType
	}{
		{"unknown route", get(t, h, "/v1/completions"), http.StatusNotFound, errors.NotFoundError},
		{"wrong method", get(t, h, "/transform"), http.StatusMethodNotAllowed, errors.MethodNotAllowedError},
		{"missing prompt", post(t, h, "/transform", `{}`), http.StatusBadRequest, errors.BadRequestError},
		{"short prompt", post(t, h, "/transform/custom", `{"prompt": "hi"}`), http.StatusBadRequest, errors.ValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.rec.Code)
			var resp errors.ErrorResponse
			require.NoError(t, json.Unmarshal(tt.rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantType, resp.Type)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestServerPreflight(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/transform", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2}
	h := newTestServer(t, cfg).Handler()

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, post(t, h, "/transform", `{"prompt": "explain recursion"}`).Code)
	}
	rec := post(t, h, "/transform/custom", `{"prompt": "explain recursion"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	assert.Equal(t, http.StatusOK, post(t, h, "/cache/clear", "").Code, "routes without the ratelimit middleware are not limited")
	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)
}

func TestNewServerRejectsUnknownHandler(t *testing.T) {
	cfg := testConfig()
	cfg.Routes = append(cfg.Routes, config.RouteConfig{Path: "/v1/completions", Handler: "completion"})

	_, err := NewServer(cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unknown handler")

	_, err = NewServer(nil, nil)
	assert.Error(t, err)
}

func TestApplyConfig(t *testing.T) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	s := newTestServer(t, cfg, WithLogLevel(level))
	h := s.Handler()

	for _, prompt := range []string{"explain one", "explain two", "explain three"} {
		s.processor.Process(context.Background(), prompt)
	}

	next := testConfig()
	next.Logging.Level = "debug"
	next.Cache.MaxEntries = 1
	next.RateLimit.Enabled = false
	s.ApplyConfig(next)

	assert.Equal(t, zapcore.DebugLevel, level.Level())
	var r enhancer.Result
	for i := 0; i < 3; i++ {
		rec := post(t, h, "/transform", `{"prompt": "explain three"}`)
		require.Equal(t, http.StatusOK, rec.Code, "rate limiting was disabled")
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
		assert.True(t, r.Cached)
	}
	rec := post(t, h, "/transform", `{"prompt": "explain one"}`)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.False(t, r.Cached, "older entries were trimmed")
}

func TestWatchConfig(t *testing.T) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	s := newTestServer(t, testConfig(), WithLogLevel(level))
	initial := testConfig()
	initial.Logging.Level = "warn"
	watcher := mocks.NewMockConfigWatcher(initial)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.WatchConfig(ctx, watcher)
		close(done)
	}()

	require.Eventually(t, func() bool { return level.Level() == zapcore.WarnLevel }, time.Second, 5*time.Millisecond)

	next := testConfig()
	next.Logging.Level = "error"
	watcher.UpdateConfig(next)
	require.Eventually(t, func() bool { return level.Level() == zapcore.ErrorLevel }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchConfig did not return after cancel")
	}
}

func TestWatchConfigStopsWhenWatcherCloses(t *testing.T) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	s := newTestServer(t, testConfig(), WithLogLevel(level))
	initial := testConfig()
	initial.Logging.Level = "warn"
	watcher := mocks.NewMockConfigWatcher(initial)

	done := make(chan struct{})
	go func() {
		s.WatchConfig(context.Background(), watcher)
		close(done)
	}()
	// The watcher replays its current config on Subscribe.
	require.Eventually(t, func() bool { return level.Level() == zapcore.WarnLevel }, time.Second, 5*time.Millisecond)
	require.NoError(t, watcher.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchConfig did not return after the watcher closed")
	}
}

func TestServeAndShutdown(t *testing.T) {
	s := newTestServer(t, testConfig())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Post("http://"+ln.Addr().String()+"/transform", "application/json",
		strings.NewReader(`{"prompt": "create a docker compose file"}`))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), enhancer.FormatDocker)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
