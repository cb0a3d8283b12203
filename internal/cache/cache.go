package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by GetAndParse when key holds no value.
var ErrMiss = errors.New("cache: miss")

type (
	Cache interface {
		GetAndParse(ctx context.Context, key string, dst interface{}) error
		Set(ctx context.Context, key string, value interface{}) error
		SetExp(ctx context.Context, key string, value interface{}, exp time.Duration) error
		Ping(ctx context.Context) error
		Close() error
	}
)
