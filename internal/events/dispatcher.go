package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AnonymousAuthor stands in for a null author in routing keys.
const AnonymousAuthor = "anonymous"

const publishTimeout = 5 * time.Second

// Dispatcher relays domain events. Dispatch never fails the mutation that produced the event.
type Dispatcher interface {
	Dispatch(ctx context.Context, event DomainEvent)
}

// EventHandler handles a dispatched event.
type EventHandler func(context.Context, DomainEvent) error

// Transport is the message bus boundary.
type Transport interface {
	DeclareExchange(ctx context.Context, name string) error
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// RoutingKey joins author, entity type, event type and entity id with dots.
func RoutingKey(event DomainEvent) string {
	author := AnonymousAuthor
	if event.AuthorUserID != nil && *event.AuthorUserID != "" {
		author = *event.AuthorUserID
	}
	return strings.Join([]string{author, event.EntityType, event.Type, event.EntityID}, ".")
}

// BusDispatcher publishes events onto a topic exchange, best effort.
type BusDispatcher struct {
	transport Transport
	exchange  string
	logger    *zap.Logger
}

// NewBusDispatcher creates a dispatcher for the given exchange.
func NewBusDispatcher(transport Transport, exchange string, logger *zap.Logger) *BusDispatcher {
	return &BusDispatcher{transport: transport, exchange: exchange, logger: logger}
}

// Init declares the exchange. Declaring is idempotent.
func (d *BusDispatcher) Init(ctx context.Context) error {
	return d.transport.DeclareExchange(ctx, d.exchange)
}

// Dispatch serializes and publishes the event. Failures are logged and dropped.
func (d *BusDispatcher) Dispatch(ctx context.Context, event DomainEvent) {
	key := RoutingKey(event)
	body, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("encode event", zap.String("routing_key", key), zap.Error(err))
		return
	}

	// The mutation already committed; a caller hanging up now must not drop the event.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := d.transport.Publish(pubCtx, d.exchange, key, body); err != nil {
		d.logger.Error("publish event",
			zap.String("exchange", d.exchange),
			zap.String("routing_key", key),
			zap.Error(err))
		return
	}
	d.logger.Info("publish event",
		zap.String("exchange", d.exchange),
		zap.String("routing_key", key),
		zap.Time("created_at", event.CreatedAt))
}

// InMemoryDispatcher synchronously invokes in-process subscribers.
type InMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]EventHandler
	all       []EventHandler
	logger    *zap.Logger
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher(logger *zap.Logger) *InMemoryDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryDispatcher{
		listeners: make(map[string][]EventHandler),
		logger:    logger,
	}
}

// Dispatch invokes handlers for the event's name, then catch-all handlers.
func (d *InMemoryDispatcher) Dispatch(ctx context.Context, event DomainEvent) {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Name()]...)
	handlers = append(handlers, d.all...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			d.logger.Warn("event handler failed", zap.String("event", event.Name()), zap.Error(err))
		}
	}
}

// Subscribe registers a handler for ENTITY/TYPE.
func (d *InMemoryDispatcher) Subscribe(name string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[name] = append(d.listeners[name], handler)
}

// SubscribeAll registers a handler for every event.
func (d *InMemoryDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all = append(d.all, handler)
}

// Fanout dispatches to several dispatchers in order.
type Fanout []Dispatcher

func (f Fanout) Dispatch(ctx context.Context, event DomainEvent) {
	for _, d := range f {
		d.Dispatch(ctx, event)
	}
}
