package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/satori/uuid"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/katalog/pkg/pubsub"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
)

type BroadcastConfig struct {
	Local      Cache              `validate:"required"`
	Publisher  pubsub.IPublisher  `validate:"required"`
	Subscriber pubsub.ISubscriber `validate:"required"`
}

// Broadcast keeps per-process caches consistent: every Delete is published,
// and deletes published by other processes are applied to Local.
type Broadcast struct {
	conf BroadcastConfig
	id   string

	mu       sync.RWMutex
	watchers []func(ctx context.Context, keys []string)
}

var _ Cache = (*Broadcast)(nil)
var _ Watcher = (*Broadcast)(nil)

// NewBroadcast subscribes before returning, so no invalidation published afterwards is missed.
func NewBroadcast(ctx context.Context, conf BroadcastConfig) (*Broadcast, error) {
	if err := validator.Validate(conf); err != nil {
		return nil, fmt.Errorf("error validate cache broadcast: %w", err)
	}

	b := &Broadcast{
		conf: conf,
		id:   uuid.NewV4().String(),
	}

	if err := conf.Subscriber.Subscribe(ctx, b.apply); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Broadcast) GetAs(ctx context.Context, key string, out interface{}) error {
	return b.conf.Local.GetAs(ctx, key, out)
}

func (b *Broadcast) SetExp(ctx context.Context, key string, inValue interface{}, expireDur time.Duration) error {
	return b.conf.Local.SetExp(ctx, key, inValue, expireDur)
}

func (b *Broadcast) Delete(ctx context.Context, keys ...string) error {
	if err := b.conf.Local.Delete(ctx, keys...); err != nil {
		return err
	}

	body, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("encode invalidated keys: %w", err)
	}

	err = b.conf.Publisher.Publish(ctx, &pubsub.Message{Source: b.id, Body: body})
	if err != nil {
		return fmt.Errorf("broadcast invalidation: %w", err)
	}

	return nil
}

func (b *Broadcast) OnRemoteDelete(fn func(ctx context.Context, keys []string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watchers = append(b.watchers, fn)
}

func (b *Broadcast) apply(ctx context.Context, msg *pubsub.Message) error {
	if msg.Source == b.id {
		return nil
	}

	var keys []string
	if err := json.Unmarshal(msg.Body, &keys); err != nil {
		return fmt.Errorf("decode invalidated keys: %w", err)
	}

	ylog.Debug(ctx, "cache invalidated by peer", ylog.KV("keys", keys), ylog.KV("peer", msg.Source))

	b.mu.RLock()
	watchers := b.watchers
	b.mu.RUnlock()

	for _, fn := range watchers {
		fn(ctx, keys)
	}

	return b.conf.Local.Delete(ctx, keys...)
}
