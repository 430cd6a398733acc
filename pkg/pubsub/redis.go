package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/multierr"
)

type RedisConfig struct {
	Client  redis.UniversalClient `validate:"required"`
	Channel string                `validate:"required"`
}

// Redis fans messages out with redis PUBLISH/SUBSCRIBE. Delivery is at most once,
// a subscriber that is not connected when a message is published never sees it.
type Redis struct {
	conf RedisConfig

	mu   sync.Mutex
	subs []*redis.PubSub
	wg   sync.WaitGroup
}

var _ IPublisher = (*Redis)(nil)
var _ ISubscriber = (*Redis)(nil)

func NewRedis(conf RedisConfig) (*Redis, error) {
	if err := validator.Validate(conf); err != nil {
		return nil, fmt.Errorf("pubsub redis config: %w", err)
	}

	return &Redis{
		conf: conf,
		subs: make([]*redis.PubSub, 0),
	}, nil
}

func (r *Redis) Publish(ctx context.Context, msg *Message) (err error) {
	if msg == nil {
		return fmt.Errorf("pubsub: nil message")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("pubsub: encode message: %w", err)
	}

	err = r.conf.Client.Publish(ctx, r.conf.Channel, payload).Err()
	if err != nil {
		return fmt.Errorf("pubsub: publish to %s: %w", r.conf.Channel, err)
	}

	return nil
}

func (r *Redis) Subscribe(ctx context.Context, handler SubscribeHandler) error {
	ps := r.conf.Client.Subscribe(ctx, r.conf.Channel)

	// wait for the subscription confirmation, otherwise early messages are lost
	if _, err := ps.Receive(ctx); err != nil {
		return multierr.Append(fmt.Errorf("pubsub: subscribe to %s: %w", r.conf.Channel, err), ps.Close())
	}

	r.mu.Lock()
	r.subs = append(r.subs, ps)
	r.mu.Unlock()

	ch := ps.Channel()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		for m := range ch {
			msg := &Message{}
			if err := json.Unmarshal([]byte(m.Payload), msg); err != nil {
				ylog.Error(ctx, "pubsub: drop undecodable message", ylog.KV("channel", m.Channel), ylog.KV("error", err))
				continue
			}

			msg.LoggableID = m.Channel
			if err := handler(ctx, msg); err != nil {
				ylog.Error(ctx, "pubsub: handler failed", ylog.KV("channel", m.Channel), ylog.KV("error", err))
			}
		}
	}()

	return nil
}

// Shutdown closes every subscription and waits for in-flight handlers. The client itself is not closed.
func (r *Redis) Shutdown(ctx context.Context) (err error) {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, ps := range subs {
		err = multierr.Append(err, ps.Close())
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}

	return
}
