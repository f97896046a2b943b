package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"deepseek-proxy/internal/deepseek"
	"deepseek-proxy/internal/handlers"
	"deepseek-proxy/internal/middleware"
	"deepseek-proxy/internal/usage"
)

type staticClient struct {
	body string
}

func (c staticClient) ChatCompletion(context.Context, *deepseek.Payload) (*deepseek.Response, error) {
	return &deepseek.Response{StatusCode: http.StatusOK, Body: []byte(c.body)}, nil
}

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	ledger := usage.NewMemoryLedger(time.Hour, time.Minute)
	t.Cleanup(func() { ledger.Close() })

	client := staticClient{body: `{"model":"deepseek-chat","choices":[{"message":{"content":"hello"}}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`}

	r := chi.NewRouter()
	SetupRouter(r, zaptest.NewLogger(t), Handlers{
		Proxy: handlers.NewProxyHandler(client, ledger, handlers.ProxyConfig{
			EnforcePath: true,
			CORS:        middleware.DefaultCORSOptions(),
		}),
		Health: handlers.NewHealthHandler("", Endpoints()),
		Usage:  handlers.NewUsageHandler(ledger),
	}, Options{MaxBodyBytes: 1 << 20, RequestDeadline: 5 * time.Second})
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRouterProxyRoutes(t *testing.T) {
	r := newTestRouter(t)
	body := `{"messages":[{"role":"user","content":"hi"}]}`

	for _, path := range []string{"/api/deepseek", "/"} {
		rr := do(r, http.MethodPost, path, body)
		require.Equal(t, http.StatusOK, rr.Code, path)
		require.JSONEq(t, `{"model":"deepseek-chat","choices":[{"message":{"content":"hello"}}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`, rr.Body.String())
	}

	rr := do(r, http.MethodOptions, "/api/deepseek", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, rr.Body.String())

	rr = do(r, http.MethodGet, "/api/deepseek", "")
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRouterHealthAndUsage(t *testing.T) {
	r := newTestRouter(t)

	rr := do(r, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	var health map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	require.Equal(t, "healthy", health["status"])

	rr = do(r, http.MethodPost, "/api/deepseek", `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(r, http.MethodGet, "/api/usage", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"model":"deepseek-chat"`)
}

func TestRouterHealthAnyMethod(t *testing.T) {
	r := newTestRouter(t)

	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions, http.MethodPut} {
		rr := do(r, m, "/api/health", "")
		require.Equal(t, http.StatusOK, rr.Code, m)
		require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"), m)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	r := newTestRouter(t)

	rr := do(r, http.MethodPost, "/api/unknown", "{}")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	require.JSONEq(t, `{"error":"Endpoint not found. Use /api/deepseek"}`, rr.Body.String())
}
