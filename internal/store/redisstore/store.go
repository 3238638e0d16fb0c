package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.rdb.Ping(cctx).Err()
}

func (s *Store) Close() error { return s.rdb.Close() }

func loginFailKey(email string) string { return "login:fail:" + email }

// LoginFailures returns the failures recorded for email in the current window.
func (s *Store) LoginFailures(ctx context.Context, email string) (int64, error) {
	n, err := s.rdb.Get(ctx, loginFailKey(email)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// RecordLoginFailure bumps the counter. The window starts at the first
// failure and is not extended by later ones.
func (s *Store) RecordLoginFailure(ctx context.Context, email string, window time.Duration) (int64, error) {
	key := loginFailKey(email)
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *Store) ResetLoginFailures(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, loginFailKey(email)).Err()
}
