// Package fakebroker is an in-process stand-in for a topic exchange, used
// to test node wiring and the self-suppression / routing properties (see
// the TESTABLE PROPERTIES scenarios) without a live broker. It models just
// enough of AMQP topic-exchange semantics — named queues, routing-key
// bindings, ack-or-drop delivery — to drive those tests; it does not model
// reconnect behavior, which lives in messaging.Client.
package fakebroker

import (
	"context"
	"sync"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
)

// Bus is a single in-memory topic exchange.
type Bus struct {
	mu     sync.Mutex
	queues map[string]*queue
}

type queue struct {
	bindings []equipment.SubscriptionRoutingKey
	deliver  chan messaging.Message
}

// NewBus creates an empty exchange.
func NewBus() *Bus {
	return &Bus{queues: make(map[string]*queue)}
}

// Declare registers a named queue bound to the given subscription keys. A
// second Declare for the same name replaces its bindings, mirroring the
// durable-queue redeclare-with-new-bindings path a real subscriber takes on
// reconnect.
func (b *Bus) Declare(name string, bindings []equipment.SubscriptionRoutingKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		q = &queue{deliver: make(chan messaging.Message, 64)}
		b.queues[name] = q
	}
	q.bindings = bindings
}

// Publish delivers msg to every declared queue whose bindings match its
// routing key. Delivery is asynchronous and non-blocking: a full queue
// drops the message rather than stalling the publisher, since this fake
// only needs to exercise application-level routing, not backpressure.
func (b *Bus) Publish(msg messaging.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.queues {
		for _, binding := range q.bindings {
			if equipment.Matches(binding.Source, msg.RoutingKey.Source) && filterMatchesFilter(binding.Target, msg.RoutingKey.Target) {
				select {
				case q.deliver <- msg:
				default:
				}
				break
			}
		}
	}
}

// filterMatchesFilter reports whether a publication's target filter could
// satisfy a subscription's target filter: every non-wildcard field the
// subscription names must either be wildcarded or identical on the
// publication side.
func filterMatchesFilter(sub, pub equipment.Filter) bool {
	if sub.Type != nil && (pub.Type == nil || *sub.Type != *pub.Type) {
		return false
	}
	if sub.Sector != nil && (pub.Sector == nil || *sub.Sector != *pub.Sector) {
		return false
	}
	if sub.Serial != nil && (pub.Serial == nil || *sub.Serial != *pub.Serial) {
		return false
	}
	return true
}

// Client is a messaging.Client-shaped adapter over a Bus, for nodes under
// test that expect to Publish/Consume through the same shape of object as
// the real broker client.
type Client struct {
	bus      *Bus
	identity equipment.Id
	queue    string
}

// NewClient binds a Client to name within bus.
func NewClient(bus *Bus, identity equipment.Id, name string) *Client {
	return &Client{bus: bus, identity: identity, queue: name}
}

// Publish hands msg to the bus.
func (c *Client) Publish(_ context.Context, msg messaging.Message) error {
	c.bus.Publish(msg)
	return nil
}

// Run declares the client's bindings and feeds matching, non-self
// deliveries to handle until ctx is cancelled.
func (c *Client) Run(ctx context.Context, bindings []equipment.SubscriptionRoutingKey, onConsuming func(), handle messaging.Handler) error {
	c.bus.Declare(c.queue, bindings)
	b := c.bus
	b.mu.Lock()
	q := b.queues[c.queue]
	b.mu.Unlock()

	if onConsuming != nil {
		onConsuming()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q.deliver:
			if msg.RoutingKey.Source.Equal(c.identity) {
				continue
			}
			_ = handle(ctx, msg)
		}
	}
}
