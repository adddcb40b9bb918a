package messaging

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisTransport publishes events on Redis Pub/Sub. Redis has no exchanges, so the exchange
// name prefixes the channel and subscribers pattern-match on it, e.g. "identity.events.*.USER.*".
type RedisTransport struct {
	client redis.UniversalClient
}

// NewRedisTransport wraps an existing client.
func NewRedisTransport(client redis.UniversalClient) *RedisTransport {
	return &RedisTransport{client: client}
}

// DeclareExchange only checks that Redis is reachable.
func (t *RedisTransport) DeclareExchange(ctx context.Context, _ string) error {
	return t.client.Ping(ctx).Err()
}

func (t *RedisTransport) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	return t.client.Publish(ctx, Channel(exchange, routingKey), body).Err()
}

// Channel names the Pub/Sub channel for a routing key.
func Channel(exchange, routingKey string) string {
	return exchange + "." + routingKey
}
