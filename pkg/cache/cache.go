package cache

import (
	"context"
	"fmt"
	"time"
)

var (
	ErrKeyNotExist = fmt.Errorf("cache key not exists")
)

// Cache stores JSON-serializable values by key.
// A non-positive expireDur on SetExp means the value never expires.
type Cache interface {
	GetAs(ctx context.Context, key string, out interface{}) error
	SetExp(ctx context.Context, key string, inValue interface{}, expireDur time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Watcher is implemented by caches whose entries can be dropped by another process.
// fn runs before the keys are removed locally.
type Watcher interface {
	OnRemoteDelete(fn func(ctx context.Context, keys []string))
}
