// Package ratelimit throttles failed logins with fixed-window counters in Redis.
//
// Keys: "login:email:<normalized email>" and "login:ip:<address>". The TTL is set on the first
// failure of a window, so a window starts at the first failure and ends LoginWindow later.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned when the email or the address has used its failure budget.
	ErrRateLimited = errors.New("too many failed login attempts")
	// ErrUnavailable wraps Redis failures. Callers fail open on it.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// LoginThrottle counts failed logins per email and per client address.
// A nil *LoginThrottle allows everything.
type LoginThrottle struct {
	redis       redis.UniversalClient
	maxAttempts int
	window      time.Duration
}

// NewLoginThrottle returns a throttle allowing maxAttempts failures per window.
func NewLoginThrottle(client redis.UniversalClient, maxAttempts int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{redis: client, maxAttempts: maxAttempts, window: window}
}

// NewRedisClient parses a redis:// URL. Empty url returns (nil, nil): throttling disabled.
func NewRedisClient(url string) (*redis.Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func emailKey(email string) string { return "login:email:" + strings.ToLower(strings.TrimSpace(email)) }
func ipKey(ip string) string       { return "login:ip:" + ip }

func (l *LoginThrottle) keys(email, ip string) []string {
	keys := []string{emailKey(email)}
	if ip != "" {
		keys = append(keys, ipKey(ip))
	}
	return keys
}

// Check returns ErrRateLimited if either counter has reached the budget.
func (l *LoginThrottle) Check(ctx context.Context, email, ip string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	for _, key := range l.keys(email, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if count >= int64(l.maxAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// RecordFailure increments both counters, starting a window on the first failure.
func (l *LoginThrottle) RecordFailure(ctx context.Context, email, ip string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	for _, key := range l.keys(email, ip) {
		count, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if count == 1 {
			if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
	}
	return nil
}

// Reset clears the email counter after a successful login. The address counter is kept,
// so one host cannot spray many accounts by logging into its own.
func (l *LoginThrottle) Reset(ctx context.Context, email string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	if err := l.redis.Del(ctx, emailKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping checks Redis connectivity. Nil throttles are always healthy.
func (l *LoginThrottle) Ping(ctx context.Context) error {
	if l == nil || l.redis == nil {
		return nil
	}
	return l.redis.Ping(ctx).Err()
}
