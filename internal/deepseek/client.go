package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const maxResponseSize = 16 * 1024 * 1024

// ChatCompletion posts payload to the completions endpoint once and returns
// the raw answer whatever its status. Transport failures are errors;
// exceeding UpstreamTimeout yields an error wrapping ErrTimeout.
func (c *client) ChatCompletion(parentCtx context.Context, payload *Payload) (*Response, error) {
	start := time.Now()

	if payload == nil {
		return nil, errNilPayload
	}
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	payload.Stream = false

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("deepseek: marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("deepseek: build HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug("deepseek request starting",
		zap.String("model", payload.Model),
		zap.Int("message_count", len(payload.Messages)),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.wrapErr(ctx, "send request", err, start)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, c.wrapErr(ctx, "read response", err, start)
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("%w (max %d bytes)", ErrResponseTooLarge, maxResponseSize)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Duration:   time.Since(start),
	}

	c.logger.Debug("deepseek request completed",
		zap.String("model", payload.Model),
		zap.Int("status", out.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", out.Duration),
	)

	return out, nil
}

func (c *client) wrapErr(ctx context.Context, op string, err error, start time.Time) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn("deepseek request timed out",
			zap.String("op", op),
			zap.Duration("timeout", c.cfg.UpstreamTimeout),
			zap.Duration("duration", time.Since(start)),
		)
		return fmt.Errorf("%w after %s: %v", ErrTimeout, time.Since(start).Round(time.Millisecond), err)
	}

	c.logger.Error("deepseek request failed",
		zap.String("op", op),
		zap.Error(err),
		zap.Duration("duration", time.Since(start)),
	)
	return fmt.Errorf("deepseek: %s: %w", op, err)
}
