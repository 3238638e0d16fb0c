package redisstore

import (
	"context"
	"time"
)

// LoginThrottle limits password attempts per email. A nil *LoginThrottle
// allows everything, which is how the server runs without Redis.
type LoginThrottle struct {
	store       *Store
	maxFailures int64
	window      time.Duration
}

func NewLoginThrottle(store *Store, maxFailures int, window time.Duration) *LoginThrottle {
	if store == nil || maxFailures <= 0 {
		return nil
	}
	return &LoginThrottle{store: store, maxFailures: int64(maxFailures), window: window}
}

// Allowed reports whether another attempt may be made. Redis errors fail open.
func (t *LoginThrottle) Allowed(ctx context.Context, email string) bool {
	if t == nil {
		return true
	}
	n, err := t.store.LoginFailures(ctx, email)
	if err != nil {
		return true
	}
	return n < t.maxFailures
}

func (t *LoginThrottle) Failed(ctx context.Context, email string) {
	if t == nil {
		return
	}
	_, _ = t.store.RecordLoginFailure(ctx, email, t.window)
}

func (t *LoginThrottle) Succeeded(ctx context.Context, email string) {
	if t == nil {
		return
	}
	_ = t.store.ResetLoginFailures(ctx, email)
}
