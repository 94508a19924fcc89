package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// TokenLimiter limits token consumption per minute.
type TokenLimiter struct {
	limiter *rate.Limiter
	max     int
}

// NewTokenLimiter creates a limiter that allows maxPerMinute tokens per minute.
func NewTokenLimiter(maxPerMinute int) *TokenLimiter {
	return &TokenLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), maxPerMinute),
		max:     maxPerMinute,
	}
}

// Wait blocks until n tokens are available or the context is canceled.
func (t *TokenLimiter) Wait(ctx context.Context, n int) error {
	if n > t.max {
		n = t.max
	}
	return t.limiter.WaitN(ctx, n)
}

// GetRemaining returns the number of tokens currently available.
func (t *TokenLimiter) GetRemaining() int {
	return int(t.limiter.TokensAt(time.Now()))
}
