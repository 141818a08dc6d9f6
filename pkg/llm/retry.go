package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry configuration constants.
const (
	// MaxAttempts is the total attempts per provider (initial + retries).
	MaxAttempts = 3

	// InitialBackoff is the delay before the first retry, doubled after each.
	InitialBackoff = 1 * time.Second
)

// callWithRetry invokes one provider up to MaxAttempts times with exponential
// backoff and reports how many attempts it made. Only rate limits, transient
// API failures, and the first occurrence of an unexpected error are retried;
// content blocks, auth failures, missing libraries, and malformed responses
// break immediately.
func callWithRetry(ctx context.Context, inst *ProviderInstance, prompt string, params GenerateParams) (string, int, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = InitialBackoff
	bo.Multiplier = 2.0
	bo.RandomizationFactor = 0 // deterministic schedule: 1s, 2s
	bo.Reset()

	log := slog.With("provider", inst.ProviderTag, "model", inst.ModelName)

	var lastErr error
	attempts := 0
	for attempts < MaxAttempts {
		attempts++
		text, err := inst.Client.Call(ctx, inst.ModelName, prompt, params)
		if err == nil {
			return text, attempts, nil
		}
		lastErr = err

		kind := KindOf(err)
		if !retryable(kind, attempts) || attempts == MaxAttempts {
			break
		}

		delay := bo.NextBackOff()
		log.Warn("Provider call failed, retrying",
			"kind", string(kind),
			"attempt", attempts,
			"max_attempts", MaxAttempts,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return "", attempts, NewProviderError(inst.ProviderTag, inst.ModelName, KindTransientAPI, ctx.Err())
		case <-time.After(delay):
		}
	}

	return "", attempts, lastErr
}
