package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"deepseek-proxy/internal/usage"
	"deepseek-proxy/pkg/logging"
)

type usageResponse struct {
	Day    string         `json:"day"`
	Models []usage.Totals `json:"models"`
}

// UsageHandler reports the token totals of one UTC day.
type UsageHandler struct {
	ledger usage.Ledger
	now    func() time.Time
}

func NewUsageHandler(ledger usage.Ledger) *UsageHandler {
	return &UsageHandler{ledger: ledger, now: time.Now}
}

// ServeHTTP handles GET /api/usage?day=YYYY-MM-DD (default: today).
func (h *UsageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	day := usage.Day(h.now())
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := usage.ParseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid day, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	totals, err := h.ledger.Totals(ctx, day)
	if err != nil {
		logging.L(ctx).Error("usage lookup failed", zap.String("day", day), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Usage ledger unavailable")
		return
	}
	if totals == nil {
		totals = []usage.Totals{}
	}

	writeJSON(w, http.StatusOK, usageResponse{Day: day, Models: totals})
}
