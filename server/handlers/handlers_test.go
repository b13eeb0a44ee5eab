package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/prompt2json/enhancer"
	"github.com/teilomillet/prompt2json/errors"
	"github.com/teilomillet/prompt2json/server/cache"
	"github.com/teilomillet/prompt2json/server/circuitbreaker"
	"github.com/teilomillet/prompt2json/server/metrics"
	"github.com/teilomillet/prompt2json/server/middleware"
	"github.com/teilomillet/prompt2json/server/processing"
	"github.com/teilomillet/prompt2json/server/static"
	"go.uber.org/zap/zaptest"
)

type testEnv struct {
	handler http.Handler
	cache   *cache.Cache
}

func newTestEnv(t *testing.T, opts ...processing.Option) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cb, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		Name:             "transform",
		MaxRequests:      1,
		Timeout:          time.Minute,
		FailureThreshold: 3,
		TestMode:         true,
	}, logger, nil)
	require.NoError(t, err)

	c := cache.New(cache.DefaultMaxEntries)
	p, err := processing.NewProcessor(c, true, cb, metrics.NewMetrics(), logger, opts...)
	require.NoError(t, err)

	api := NewAPI(p, logger, 1024)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Post("/transform", api.Transform)
	r.Post("/transform/custom", api.TransformCustom)
	r.Post("/cache/clear", api.ClearCache)
	r.Get("/health", Health)
	r.Get("/", Index(static.FS()))
	r.Handle("/static/*", Static("/static/", static.FS()))

	return &testEnv{handler: r, cache: c}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(v))
}

func TestTransform(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/transform", `{"prompt": "write a python script to read a csv file"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got enhancer.Result
	decode(t, rec, &got)
	assert.Equal(t, enhancer.ContextGenerateCode, got.Context)
	assert.Equal(t, "write a python script to read a csv file", got.Problem)
	assert.Equal(t, enhancer.FormatPython, got.OutputFormat)
	assert.Contains(t, got.ExpectedSolution, "CSV file generation and data export")
	assert.False(t, got.Cached)

	var raw map[string]interface{}
	decode(t, rec, &raw)
	assert.ElementsMatch(t,
		[]string{"context", "problem", "expected_solution", "output_format", "cached"},
		keys(raw))
}

func TestTransformCachesNormalizedPrompts(t *testing.T) {
	env := newTestEnv(t)

	var first, second enhancer.Result
	rec := env.do(t, http.MethodPost, "/transform", `{"prompt": "Explain the difference between SQL joins"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &first)

	rec = env.do(t, http.MethodPost, "/transform", `{"prompt": "  explain THE difference between sql joins \n"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &second)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Context, second.Context)
	assert.Equal(t, first.Problem, second.Problem)
	assert.Equal(t, first.ExpectedSolution, second.ExpectedSolution)
	assert.Equal(t, first.OutputFormat, second.OutputFormat)
	assert.Equal(t, 1, env.cache.Len())
}

func TestTransformRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantType errors.ErrorType
		wantMsg  string
	}{
		{"missing prompt", `{"text": "hello"}`, http.StatusBadRequest, errors.BadRequestError, "Missing 'prompt' field in request body"},
		{"empty object", `{}`, http.StatusBadRequest, errors.BadRequestError, "Missing 'prompt' field in request body"},
		{"null body", `null`, http.StatusBadRequest, errors.BadRequestError, "Missing 'prompt' field in request body"},
		{"malformed json", `{"prompt": `, http.StatusBadRequest, errors.BadRequestError, "Invalid JSON body"},
		{"empty body", ``, http.StatusBadRequest, errors.BadRequestError, "Invalid JSON body"},
		{"array body", `["prompt"]`, http.StatusBadRequest, errors.BadRequestError, "Invalid JSON body"},
		{"null prompt", `{"prompt": null}`, http.StatusBadRequest, errors.ValidationError, "Prompt must be a non-empty string"},
		{"numeric prompt", `{"prompt": 42}`, http.StatusBadRequest, errors.ValidationError, "Prompt must be a non-empty string"},
		{"empty prompt", `{"prompt": ""}`, http.StatusBadRequest, errors.ValidationError, "Prompt must be a non-empty string"},
		{"short prompt", `{"prompt": "  ab  "}`, http.StatusBadRequest, errors.ValidationError, "Prompt must be at least 3 characters long"},
		{"oversized body", `{"prompt": "` + strings.Repeat("a", 5001) + `"}`, http.StatusRequestEntityTooLarge, errors.BadRequestError, "Request body too large"},
	}

	for _, tt := range tests {
		for _, path := range []string{"/transform", "/transform/custom"} {
			t.Run(tt.name+" "+path, func(t *testing.T) {
				env := newTestEnv(t)
				rec := env.do(t, http.MethodPost, path, tt.body)

				require.Equal(t, tt.wantCode, rec.Code)
				var resp errors.ErrorResponse
				decode(t, rec, &resp)
				assert.Equal(t, tt.wantMsg, resp.Error)
				assert.Equal(t, tt.wantType, resp.Type)
				assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), resp.RequestID)
				assert.Equal(t, 0, env.cache.Len())
			})
		}
	}
}

func TestTransformPromptLengthBoundary(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cb, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		Name: "transform", MaxRequests: 1, Timeout: time.Minute, FailureThreshold: 1, TestMode: true,
	}, logger, nil)
	require.NoError(t, err)
	p, err := processing.NewProcessor(cache.New(10), true, cb, metrics.NewMetrics(), logger)
	require.NoError(t, err)
	// A body bound large enough that validation, not the reader, judges the prompt.
	handler := http.HandlerFunc(NewAPI(p, logger, 64<<10).Transform)

	tests := []struct {
		length   int
		wantCode int
	}{
		{2, http.StatusBadRequest},
		{3, http.StatusOK},
		{5000, http.StatusOK},
		{5001, http.StatusBadRequest},
	}
	for _, tt := range tests {
		body, err := json.Marshal(map[string]string{"prompt": strings.Repeat("é", tt.length)})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transform", bytes.NewReader(body)))
		assert.Equal(t, tt.wantCode, rec.Code, "length %d", tt.length)
	}
}

func TestTransformCustom(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKeys []string
		check    func(t *testing.T, got map[string]interface{})
	}{
		{
			name:     "defaults",
			body:     `{"prompt": "fix this react component error"}`,
			wantKeys: []string{"context", "problem", "expected_solution", "output_format", "cached"},
			check: func(t *testing.T, got map[string]interface{}) {
				assert.Equal(t, enhancer.FormatReact, got["output_format"])
				assert.Equal(t, string(enhancer.ContextDebugFix), got["context"])
			},
		},
		{
			name:     "subset with unknown keys",
			body:     `{"prompt": "fix this react component error", "include_keys": ["output_format", "bogus", "cached"]}`,
			wantKeys: []string{"output_format", "cached"},
		},
		{
			name:     "empty key list",
			body:     `{"prompt": "fix this react component error", "include_keys": []}`,
			wantKeys: []string{"cached"},
		},
		{
			name:     "null key list",
			body:     `{"prompt": "fix this react component error", "include_keys": null}`,
			wantKeys: []string{"context", "problem", "expected_solution", "output_format", "cached"},
		},
		{
			name:     "short style",
			body:     `{"prompt": "fix this react component error", "output_style": "short", "include_keys": ["expected_solution"]}`,
			wantKeys: []string{"expected_solution", "cached"},
			check: func(t *testing.T, got map[string]interface{}) {
				assert.Equal(t, "A solution that identifies and fixes the issue with clear explanations.", got["expected_solution"])
			},
		},
		{
			name:     "unknown style is detailed",
			body:     `{"prompt": "fix this react component error", "output_style": "terse", "include_keys": ["expected_solution"]}`,
			wantKeys: []string{"expected_solution", "cached"},
			check: func(t *testing.T, got map[string]interface{}) {
				assert.Contains(t, got["expected_solution"], "The solution should include")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			for i := 0; i < 2; i++ {
				rec := env.do(t, http.MethodPost, "/transform/custom", tt.body)
				require.Equal(t, http.StatusOK, rec.Code)

				var got map[string]interface{}
				decode(t, rec, &got)
				assert.ElementsMatch(t, tt.wantKeys, keys(got))
				assert.Equal(t, false, got["cached"])
				if tt.check != nil {
					tt.check(t, got)
				}
			}
			assert.Equal(t, 0, env.cache.Len(), "custom transforms never touch the cache")
		})
	}
}

func TestTransformCustomRejectsWrongTypes(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/transform/custom", `{"prompt": "explain recursion", "include_keys": "context"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransformInternalError(t *testing.T) {
	env := newTestEnv(t, processing.WithTransform(func(prompt string) enhancer.Result {
		panic("index out of range")
	}))

	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/transform", `{"prompt": "explain recursion"}`)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		var resp errors.ErrorResponse
		decode(t, rec, &resp)
		assert.Equal(t, errors.InternalError, resp.Type)
		assert.Equal(t, "Internal server error: transform panicked: index out of range", resp.Error)
	}

	rec := env.do(t, http.MethodPost, "/transform/custom", `{"prompt": "explain recursion"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp errors.ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, errors.UnavailableError, resp.Type)
	assert.Equal(t, "Service temporarily unavailable", resp.Error)
}

func TestClearCache(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/transform", `{"prompt": "explain recursion"}`)
	require.Equal(t, 1, env.cache.Len())

	rec := env.do(t, http.MethodPost, "/cache/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]string
	decode(t, rec, &got)
	assert.Equal(t, map[string]string{"message": "Cache cleared successfully"}, got)
	assert.Equal(t, 0, env.cache.Len())

	var result enhancer.Result
	decode(t, env.do(t, http.MethodPost, "/transform", `{"prompt": "explain recursion"}`), &result)
	assert.False(t, result.Cached)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]string
	decode(t, rec, &got)
	assert.Equal(t, map[string]string{"status": "healthy", "service": "prompt-to-json-enhancer"}, got)
}

func TestIndexAndStatic(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "prompt-input")

	rec = env.do(t, http.MethodGet, "/static/app.js", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/transform/custom")

	rec = env.do(t, http.MethodGet, "/static/missing.js", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
