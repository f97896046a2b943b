package usage

import (
	"context"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// Record is the token usage of one successful completion.
type Record struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Totals aggregates every Record of one model on one day.
type Totals struct {
	Model            string `json:"model"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
	Requests         int64  `json:"requests"`
}

func (t *Totals) add(r Record) {
	t.PromptTokens += int64(r.PromptTokens)
	t.CompletionTokens += int64(r.CompletionTokens)
	t.TotalTokens += int64(r.TotalTokens)
	t.Requests++
}

// Ledger accumulates token usage per model and UTC day.
// Implemented by the memory ledger (dev) and the Redis ledger (prod).
type Ledger interface {
	Add(ctx context.Context, day string, rec Record) error
	Totals(ctx context.Context, day string) ([]Totals, error)
}

// Day formats t as the ledger day key (UTC).
func Day(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// ParseDay validates a YYYY-MM-DD day string.
func ParseDay(s string) (string, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return "", err
	}
	return t.Format(dayLayout), nil
}

// Key is the storage key of one model's totals on one day:
// usage:<YYYY-MM-DD>:<model>
func Key(day, model string) string {
	return "usage:" + day + ":" + normalizeModel(model)
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return "unknown"
	}
	return model
}

// splitKey is the inverse of Key.
func splitKey(key string) (day, model string, ok bool) {
	rest, found := strings.CutPrefix(key, "usage:")
	if !found {
		return "", "", false
	}
	day, model, found = strings.Cut(rest, ":")
	if !found || day == "" || model == "" {
		return "", "", false
	}
	return day, model, true
}

// nopLedger drops every record.
type nopLedger struct{}

func (nopLedger) Add(context.Context, string, Record) error        { return nil }
func (nopLedger) Totals(context.Context, string) ([]Totals, error) { return []Totals{}, nil }
