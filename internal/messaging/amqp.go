package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// amqpChannel is the subset of *amqp.Channel the transport drives.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPTransport publishes onto RabbitMQ topic exchanges over a single channel.
type AMQPTransport struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	ch     amqpChannel
	logger *zap.Logger
}

// DialAMQP opens a connection and a channel to url.
func DialAMQP(url string, logger *zap.Logger) (*AMQPTransport, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	logger.Info("connected to amqp broker")
	return &AMQPTransport{conn: conn, ch: ch, logger: logger}, nil
}

// DeclareExchange declares a non-durable topic exchange. Delivery is best effort, and consumers
// declare the same exchange with identical arguments.
func (t *AMQPTransport) DeclareExchange(_ context.Context, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ch.ExchangeDeclare(name, amqp.ExchangeTopic, false, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	return nil
}

// Publish sends body as a transient JSON message.
func (t *AMQPTransport) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Close shuts the channel and the connection.
func (t *AMQPTransport) Close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ch.Close(); err != nil {
		t.logger.Warn("close amqp channel", zap.Error(err))
	}
	if t.conn == nil {
		return
	}
	if err := t.conn.Close(); err != nil {
		t.logger.Warn("close amqp connection", zap.Error(err))
	}
}
