package live

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel case events publish to
// when none is configured.
const DefaultChannel = "chimerascript:events"

// RedisBroadcaster publishes per-case JSON events to a Redis pub/sub
// channel, grounded on the teacher's redisrouter.RedisRouter but using
// PUBLISH/SUBSCRIBE rather than XADD/XREAD streams: ChimeraScript has
// no request/response device protocol to correlate, so a stream's
// consumer-group bookkeeping buys nothing here.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

// NewRedisBroadcaster connects to the Redis instance at addr.
func NewRedisBroadcaster(addr, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisBroadcaster{client: client, channel: channel}
}

// Publish marshals a case event and publishes it to the configured
// channel. Errors are logged, not returned, so a Redis outage never
// interrupts a running script.
func (b *RedisBroadcaster) Publish(ctx context.Context, ev CaseEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("live: failed to marshal case event for redis: %v", err)
		return
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		log.Printf("live: redis publish failed: %v", err)
	}
}

// Close closes the underlying Redis connection.
func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}

// SubscribeAndForward subscribes to channel on the Redis instance at
// addr and invokes onEvent for every CaseEvent received, until ctx is
// cancelled. Used by cmd/chimerascript-dashboard to rebroadcast events
// published by a separate `chimerascript run` process to its own
// WebSocket clients, so a dashboard instance never needs to be the same
// process that ran the script.
func SubscribeAndForward(ctx context.Context, addr, channel string, onEvent func(CaseEvent)) error {
	if channel == "" {
		channel = DefaultChannel
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev CaseEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("live: dropping malformed case event from redis: %v", err)
				continue
			}
			onEvent(ev)
		}
	}
}
