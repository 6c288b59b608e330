package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBroker publishes and subscribes to events through Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker creates a broker on top of the given client.
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, event Event, channels ...string) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not encode event: %w", err)
	}
	for _, channel := range channels {
		if err = b.client.Publish(ctx, channel, payload).Err(); err != nil {
			return fmt.Errorf("could not publish to %s: %w", channel, err)
		}
	}
	return nil
}

// Subscription is an open subscription to a channel.
type Subscription struct {
	pubsub *redis.PubSub
}

// Messages returns the payloads received on the subscription.
func (s *Subscription) Messages() <-chan *redis.Message {
	return s.pubsub.Channel()
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

// Subscribe subscribes to the given channel, returning once Redis confirmed the subscription.
func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("could not subscribe to %s: %w", channel, err)
	}
	return &Subscription{pubsub: pubsub}, nil
}
