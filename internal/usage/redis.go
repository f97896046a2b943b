package usage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldPrompt     = "prompt_tokens"
	fieldCompletion = "completion_tokens"
	fieldTotal      = "total_tokens"
	fieldRequests   = "requests"
)

// RedisLedger implements Ledger with one hash per (day, model) and one set
// per day indexing the models seen.
type RedisLedger struct {
	client    redis.Cmdable
	prefix    string
	retention time.Duration
}

type RedisConfig struct {
	Prefix    string
	Retention time.Duration
}

// NewRedisLedger creates a Redis-backed ledger.
func NewRedisLedger(client redis.Cmdable, config RedisConfig) *RedisLedger {
	retention := config.Retention
	if retention <= 0 {
		retention = 48 * time.Hour
	}
	return &RedisLedger{
		client:    client,
		prefix:    config.Prefix,
		retention: retention,
	}
}

// key builds the final Redis key with prefix.
func (l *RedisLedger) key(k string) string {
	if l.prefix == "" {
		return k
	}
	return l.prefix + ":" + k
}

// indexKey lives outside the usage: namespace so no model name can collide
// with it.
func (l *RedisLedger) indexKey(day string) string {
	return l.key("usage-index:" + day)
}

func (l *RedisLedger) Add(ctx context.Context, day string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	model := normalizeModel(rec.Model)
	hashKey := l.key(Key(day, model))
	indexKey := l.indexKey(day)

	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, hashKey, fieldPrompt, int64(rec.PromptTokens))
		pipe.HIncrBy(ctx, hashKey, fieldCompletion, int64(rec.CompletionTokens))
		pipe.HIncrBy(ctx, hashKey, fieldTotal, int64(rec.TotalTokens))
		pipe.HIncrBy(ctx, hashKey, fieldRequests, 1)
		pipe.Expire(ctx, hashKey, l.retention)
		pipe.SAdd(ctx, indexKey, model)
		pipe.Expire(ctx, indexKey, l.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis usage add failed: %w", err)
	}
	return nil
}

// Totals returns one row per model for day, sorted by model.
func (l *RedisLedger) Totals(ctx context.Context, day string) ([]Totals, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	models, err := l.client.SMembers(ctx, l.indexKey(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis usage index failed: %w", err)
	}
	if len(models) == 0 {
		return []Totals{}, nil
	}
	sort.Strings(models)

	cmds := make([]*redis.MapStringStringCmd, len(models))
	_, err = l.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range models {
			cmds[i] = pipe.HGetAll(ctx, l.key(Key(day, m)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis usage read failed: %w", err)
	}

	out := make([]Totals, 0, len(models))
	for i, m := range models {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			// Hash expired before the index did.
			continue
		}
		out = append(out, Totals{
			Model:            m,
			PromptTokens:     parseCount(fields[fieldPrompt]),
			CompletionTokens: parseCount(fields[fieldCompletion]),
			TotalTokens:      parseCount(fields[fieldTotal]),
			Requests:         parseCount(fields[fieldRequests]),
		})
	}
	return out, nil
}

// Ping checks if Redis connection is healthy.
func (l *RedisLedger) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return l.client.Ping(ctx).Err()
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
