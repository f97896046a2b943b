package usage

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"deepseek-proxy/internal/metrics"
	"deepseek-proxy/pkg/logging"
)

func TestKeyRoundTrip(t *testing.T) {
	key := Key("2026-10-19", " deepseek-chat ")
	require.Equal(t, "usage:2026-10-19:deepseek-chat", key)

	day, model, ok := splitKey(key)
	require.True(t, ok)
	require.Equal(t, "2026-10-19", day)
	require.Equal(t, "deepseek-chat", model)

	_, _, ok = splitKey("exact:foo")
	require.False(t, ok)
}

func TestParseDay(t *testing.T) {
	day, err := ParseDay("2026-10-19")
	require.NoError(t, err)
	require.Equal(t, "2026-10-19", day)

	_, err = ParseDay("19/10/2026")
	require.Error(t, err)

	require.Equal(t, "2026-10-19", Day(time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)))
}

func TestNewLedgerBackends(t *testing.T) {
	l, err := NewLedger(Config{Backend: BackendMemory}, nil)
	require.NoError(t, err)
	require.IsType(t, &MemoryLedger{}, l)
	require.NoError(t, l.(*MemoryLedger).Close())

	l, err = NewLedger(Config{Backend: BackendNone}, nil)
	require.NoError(t, err)
	require.NoError(t, l.Add(context.Background(), "2026-10-19", Record{Model: "m"}))
	totals, err := l.Totals(context.Background(), "2026-10-19")
	require.NoError(t, err)
	require.Empty(t, totals)

	_, err = NewLedger(Config{Backend: BackendRedis}, nil)
	require.Error(t, err)

	_, err = NewLedger(Config{Backend: "etcd"}, nil)
	require.Error(t, err)
}

func TestLoggingLedgerLogsAdds(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := logging.WithLogger(context.Background(), zap.New(core))

	mem := NewMemoryLedger(time.Hour, time.Minute)
	l := NewLoggingLedger(mem)
	defer l.(*LoggingLedger).Close()

	require.NoError(t, l.Add(ctx, "2026-10-19", Record{Model: "deepseek-chat", PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3}))

	entries := logs.FilterMessage("usage_add").All()
	require.Len(t, entries, 1)
	require.Equal(t, "usage:2026-10-19:deepseek-chat", entries[0].ContextMap()["usage_key"])

	totals, err := l.Totals(ctx, "2026-10-19")
	require.NoError(t, err)
	require.Len(t, totals, 1)
	require.EqualValues(t, 3, totals[0].TotalTokens)
}

func TestLoggingLedgerBoundsModelLabel(t *testing.T) {
	mem := NewMemoryLedger(time.Hour, time.Minute)
	l := NewLoggingLedger(mem)
	defer l.(*LoggingLedger).Close()

	other := metrics.TokensTotal.WithLabelValues("other", "prompt")
	before := testutil.ToFloat64(other)
	seriesBefore := testutil.CollectAndCount(metrics.TokensTotal)

	ctx := logging.WithLogger(context.Background(), zap.NewNop())
	for _, model := range []string{"client-model-1", "client-model-2", "client-model-3"} {
		require.NoError(t, l.Add(ctx, "2026-10-19", Record{Model: model, PromptTokens: 2}))
	}

	require.InDelta(t, before+6, testutil.ToFloat64(other), 0.001)
	require.LessOrEqual(t, testutil.CollectAndCount(metrics.TokensTotal), seriesBefore+2)

	totals, err := l.Totals(ctx, "2026-10-19")
	require.NoError(t, err)
	require.Len(t, totals, 3)
}
