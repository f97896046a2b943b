package usage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"deepseek-proxy/internal/metrics"
	"deepseek-proxy/pkg/logging"
)

// LoggingLedger wraps a Ledger with logging + metrics.
type LoggingLedger struct {
	inner Ledger
}

// NewLoggingLedger returns a ledger that logs every call and counts tokens.
func NewLoggingLedger(inner Ledger) Ledger {
	return &LoggingLedger{inner: inner}
}

func (l *LoggingLedger) Add(ctx context.Context, day string, rec Record) error {
	start := time.Now()
	err := l.inner.Add(ctx, day, rec)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	model := normalizeModel(rec.Model)
	fields := []zap.Field{
		zap.String("usage_key", Key(day, model)),
		zap.String("model", model),
		zap.Int("prompt_tokens", rec.PromptTokens),
		zap.Int("completion_tokens", rec.CompletionTokens),
		zap.Int("total_tokens", rec.TotalTokens),
		zap.Float64("latency_ms", latencyMs),
	}

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("usage_add", append(fields, zap.Error(err))...)
		return err
	}

	label := metrics.ModelLabel(model)
	metrics.TokensTotal.WithLabelValues(label, "prompt").Add(float64(rec.PromptTokens))
	metrics.TokensTotal.WithLabelValues(label, "completion").Add(float64(rec.CompletionTokens))
	logger.Info("usage_add", fields...)

	return nil
}

func (l *LoggingLedger) Totals(ctx context.Context, day string) ([]Totals, error) {
	start := time.Now()
	totals, err := l.inner.Totals(ctx, day)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	fields := []zap.Field{
		zap.String("day", day),
		zap.Int("models", len(totals)),
		zap.Float64("latency_ms", latencyMs),
	}

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("usage_totals", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("usage_totals", fields...)
	}

	return totals, err
}

// Close closes the wrapped ledger when it holds resources.
func (l *LoggingLedger) Close() error {
	if closer, ok := l.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
