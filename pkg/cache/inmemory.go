package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/fastcache"
)

const defaultInMemoryBytes = 32 * 1048576 // 32MB

// entry wraps the stored value with its deadline, fastcache itself has no TTL.
type entry struct {
	ExpireAt int64           `json:"e,omitempty"` // unix nano, 0 means no expiry
	Value    json.RawMessage `json:"v"`
}

type InMemoryOption func(*InMemory)

// WithClock replaces time.Now, mostly for testing expiry.
func WithClock(now func() time.Time) InMemoryOption {
	return func(i *InMemory) {
		i.now = now
	}
}

// WithMaxBytes sets the fastcache capacity.
func WithMaxBytes(n int) InMemoryOption {
	return func(i *InMemory) {
		i.maxBytes = n
	}
}

type InMemory struct {
	DB       *fastcache.Cache
	now      func() time.Time
	maxBytes int
}

var _ Cache = (*InMemory)(nil)

func NewInMemory(opts ...InMemoryOption) (*InMemory, error) {
	i := &InMemory{
		now:      time.Now,
		maxBytes: defaultInMemoryBytes,
	}

	for _, opt := range opts {
		opt(i)
	}

	if i.maxBytes <= 0 {
		return nil, fmt.Errorf("in-memory cache size must be positive, got %d", i.maxBytes)
	}

	i.DB = fastcache.New(i.maxBytes)
	return i, nil
}

func (i *InMemory) GetAs(_ context.Context, key string, out interface{}) error {
	// values are always written with SetBig since an app listing easily exceeds 64KB
	raw := i.DB.GetBig(nil, []byte(key))
	if len(raw) == 0 {
		return ErrKeyNotExist
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return fmt.Errorf("corrupted cache entry %s: %w", key, err)
	}

	if e.ExpireAt > 0 && i.now().UnixNano() >= e.ExpireAt {
		i.DB.Del([]byte(key))
		return ErrKeyNotExist
	}

	return json.Unmarshal(e.Value, out)
}

func (i *InMemory) SetExp(_ context.Context, key string, inValue interface{}, expireDur time.Duration) error {
	val, err := json.Marshal(inValue)
	if err != nil {
		err = fmt.Errorf("cannot marshal json value: %w", err)
		return err
	}

	e := entry{Value: val}
	if expireDur > 0 {
		e.ExpireAt = i.now().Add(expireDur).UnixNano()
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cannot marshal cache entry: %w", err)
	}

	i.DB.SetBig([]byte(key), raw)
	return nil
}

func (i *InMemory) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		i.DB.Del([]byte(key))
	}

	return nil
}
