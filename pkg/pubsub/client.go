package pubsub

import (
	"context"
)

type IPublisher interface {
	Publish(ctx context.Context, msg *Message) (err error)
	Shutdown(ctx context.Context) (err error)
}

// SubscribeHandler errors are logged, the message is not redelivered.
type SubscribeHandler = func(ctx context.Context, msg *Message) error

type ISubscriber interface {
	// Subscribe returns once the subscription is active, messages are handled in the background.
	Subscribe(ctx context.Context, handler SubscribeHandler) error
	Shutdown(ctx context.Context) error
}
