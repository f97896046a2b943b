package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"deepseek-proxy/internal/deepseek"
	"deepseek-proxy/internal/metrics"
	"deepseek-proxy/internal/middleware"
	"deepseek-proxy/internal/usage"
	"deepseek-proxy/pkg/logging"
)

const (
	ProxyPath = "/api/deepseek"

	// Upstream text echoed back in a 502 is cut to this many characters.
	detailsExcerptLen = 200

	msgMethodNotAllowed = "Method not allowed. Use POST."
	msgNotFound         = "Endpoint not found. Use /api/deepseek"
	msgMissingMessages  = "Missing required field: messages"
	msgMessagesNotArray = "Invalid field: messages must be an array"
	msgInvalidJSON      = "Invalid JSON body"
	msgBodyTooLarge     = "Request body too large"
	msgConfigError      = "Server configuration error"
	msgInvalidUpstream  = "Invalid response from DeepSeek API"
	msgUpstreamError    = "DeepSeek API error"
	msgUpstreamTimeout  = "DeepSeek API timeout"
	msgInternalError    = "Internal server error"
)

type ProxyConfig struct {
	// EnforcePath rejects paths outside AllowedPaths with 404.
	EnforcePath  bool
	AllowedPaths []string // default: /api/deepseek and /
	CORS         middleware.CORSOptions
}

// ProxyHandler forwards one chat request to DeepSeek and translates the
// answer. It holds no per-request state.
type ProxyHandler struct {
	client  deepseek.Client
	ledger  usage.Ledger
	cfg     ProxyConfig
	allowed map[string]struct{}
	now     func() time.Time
}

// NewProxyHandler wires the handler. ledger may be nil.
func NewProxyHandler(client deepseek.Client, ledger usage.Ledger, cfg ProxyConfig) *ProxyHandler {
	paths := cfg.AllowedPaths
	if len(paths) == 0 {
		paths = []string{ProxyPath, "/"}
	}
	allowed := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		allowed[p] = struct{}{}
	}

	return &ProxyHandler{
		client:  client,
		ledger:  ledger,
		cfg:     cfg,
		allowed: allowed,
		now:     time.Now,
	}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SetCORSHeaders(w.Header(), h.cfg.CORS)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	if h.cfg.EnforcePath {
		if _, ok := h.allowed[r.URL.Path]; !ok {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}
	}

	h.forward(w, r)
}

func (h *ProxyHandler) forward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	req, status, msg := decodeChatRequest(r)
	if status != 0 {
		logger.Warn("rejected chat request", zap.Int("status", status), zap.String("reason", msg))
		writeError(w, status, msg)
		return
	}

	messages, err := req.Validate()
	if err != nil {
		msg := msgMissingMessages
		if errors.Is(err, deepseek.ErrMessagesNotArray) {
			msg = msgMessagesNotArray
		}
		logger.Warn("rejected chat request", zap.Int("status", http.StatusBadRequest), zap.Error(err))
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	payload := deepseek.BuildPayload(req, messages)
	logger = logger.With(
		zap.String("model", payload.Model),
		zap.Int("message_count", len(payload.Messages)),
	)
	logger.Info("forwarding request to deepseek")

	resp, err := h.client.ChatCompletion(ctx, payload)
	if err != nil {
		h.writeCallError(w, logger, err)
		return
	}

	metrics.UpstreamLatencySeconds.Observe(resp.Duration.Seconds())
	h.translate(ctx, w, logger, payload, resp)
}

// decodeChatRequest reads the body. A non-zero status means the request was
// rejected with msg.
func decodeChatRequest(r *http.Request) (*deepseek.ChatRequest, int, string) {
	if r.Body == nil {
		return nil, http.StatusBadRequest, msgMissingMessages
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, http.StatusRequestEntityTooLarge, msgBodyTooLarge
		}
		return nil, http.StatusBadRequest, msgInvalidJSON
	}

	var req deepseek.ChatRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return &req, 0, ""
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, http.StatusBadRequest, msgInvalidJSON
	}
	return &req, 0, ""
}

func (h *ProxyHandler) writeCallError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, deepseek.ErrMissingAPIKey):
		logger.Error("DEEPSEEK_API_KEY is not configured")
		writeError(w, http.StatusInternalServerError, msgConfigError)

	case errors.Is(err, deepseek.ErrTimeout):
		metrics.UpstreamRequestsTotal.WithLabelValues("timeout").Inc()
		logger.Error("deepseek call timed out", zap.Error(err))
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{
			Error:   msgUpstreamTimeout,
			Message: err.Error(),
		})

	default:
		metrics.UpstreamRequestsTotal.WithLabelValues("error").Inc()
		logger.Error("proxy error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   msgInternalError,
			Message: err.Error(),
		})
	}
}

func (h *ProxyHandler) translate(
	ctx context.Context,
	w http.ResponseWriter,
	logger *zap.Logger,
	payload *deepseek.Payload,
	resp *deepseek.Response,
) {
	logger = logger.With(
		zap.Int("upstream_status", resp.StatusCode),
		zap.Duration("upstream_duration", resp.Duration),
	)

	if !json.Valid(resp.Body) {
		metrics.UpstreamRequestsTotal.WithLabelValues("invalid").Inc()
		excerpt := truncateChars(string(resp.Body), detailsExcerptLen)
		logger.Error("failed to parse deepseek response", zap.String("body", excerpt))
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:   msgInvalidUpstream,
			Details: excerpt,
		})
		return
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(metrics.StatusClass(resp.StatusCode)).Inc()

	if !resp.OK() {
		details := upstreamErrorDetails(resp.Body)
		logger.Error("deepseek api error", zap.ByteString("details", details))
		writeJSON(w, resp.StatusCode, errorResponse{
			Error:   msgUpstreamError,
			Details: details,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		logger.Warn("write response failed", zap.Error(err))
	}
	logger.Info("proxied request")

	h.recordUsage(context.WithoutCancel(ctx), payload, resp.Body)
}

// upstreamErrorDetails returns the upstream "error" member verbatim, or the
// whole body when the member is missing or falsy (null, false, 0, "").
func upstreamErrorDetails(body []byte) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil {
		if e, ok := obj["error"]; ok && !isFalsy(e) {
			return e
		}
	}
	return json.RawMessage(body)
}

func isFalsy(v json.RawMessage) bool {
	var x any
	if err := json.Unmarshal(v, &x); err != nil {
		return true
	}
	switch x := x.(type) {
	case nil:
		return true
	case bool:
		return !x
	case float64:
		return x == 0
	case string:
		return x == ""
	}
	return false
}

func (h *ProxyHandler) recordUsage(ctx context.Context, payload *deepseek.Payload, body []byte) {
	if h.ledger == nil {
		return
	}
	model, u, ok := deepseek.ParseUsage(body)
	if !ok {
		return
	}
	if model == "" {
		model = payload.Model
	}
	// Errors are logged by the ledger wrapper; the response is already sent.
	_ = h.ledger.Add(ctx, usage.Day(h.now()), usage.Record{
		Model:            model,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	})
}

// truncateChars cuts s to at most n characters without splitting a rune.
func truncateChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
