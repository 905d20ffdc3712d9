package messaging

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/mrcserr"
)

// Subscriber is a Client that also owns a durable, exclusively-named queue
// bound to a set of subscription routing keys. The queue name is
// "<exchange>.<equipment id>", so every node gets its own durable backlog
// and two nodes never share a queue.
type Subscriber struct {
	*Client
	queue    string
	identity equipment.Id
}

// NewSubscriber builds a Subscriber for the given node identity.
func NewSubscriber(cfg Config, identity equipment.Id, log *logrus.Entry) *Subscriber {
	queue := fmt.Sprintf("%s.%s", cfg.Exchange, identity.Format())
	return &Subscriber{
		Client:   NewClient(cfg, identity.Format(), log),
		queue:    queue,
		identity: identity,
	}
}

// Run declares the subscriber's queue, binds it to every key in bindings,
// starts consuming, and feeds each delivery to handle. onConsuming, if
// non-nil, is invoked every time a fresh consume loop starts (including
// after a reconnect) — callers that need "exactly once, ever" semantics
// (the handle_startup hook) must guard it themselves, since a transport
// failure legitimately restarts this loop.
//
// Run blocks until ctx is cancelled; a failed bind, consume or channel
// close redials and starts over rather than returning.
func (s *Subscriber) Run(ctx context.Context, bindings []equipment.SubscriptionRoutingKey, onConsuming func(), handle Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.Connect(ctx); err != nil {
			return err
		}

		if err := s.bind(bindings); err != nil {
			s.log.WithError(err).Warn("messaging: bind failed, reconnecting")
			s.invalidate()
			continue
		}

		ch := s.channel()
		deliveries, err := ch.Consume(s.queue, "", false, false, false, false, nil)
		if err != nil {
			s.log.WithError(err).Warn("messaging: consume failed, reconnecting")
			s.invalidate()
			continue
		}
		closed := ch.NotifyClose(make(chan *amqp.Error, 1))

		if onConsuming != nil {
			onConsuming()
		}

		if s.consumeLoop(ctx, deliveries, closed, handle) {
			return ctx.Err()
		}
		// fell out because the channel closed underneath us; reconnect.
	}
}

// consumeLoop drains deliveries until ctx is done (returns true) or the
// channel closes out from under it (returns false, caller should redial).
func (s *Subscriber) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery, closed <-chan *amqp.Error, handle Handler) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case err, ok := <-closed:
			if ok {
				s.log.WithError(err).Warn("messaging: channel closed, reconnecting")
			}
			s.invalidate()
			return false
		case d, ok := <-deliveries:
			if !ok {
				return false
			}
			s.handleDelivery(ctx, d, handle)
		}
	}
}

func (s *Subscriber) handleDelivery(ctx context.Context, d amqp.Delivery, handle Handler) {
	msg, err := ConstructFromCallback(d.RoutingKey, d.Body, Origin(d.CorrelationId))
	if err != nil {
		s.log.WithError(err).WithField("routing_key", d.RoutingKey).Warn("messaging: dropping malformed frame")
		if errors.Is(err, mrcserr.ErrMalformedKey) {
			d.Ack(false)
		}
		// ErrMalformedPayload: leave the delivery unacknowledged entirely;
		// the broker redelivers once this consumer disconnects.
		return
	}

	// Self-message suppression: a node never processes its own publications.
	if s.identity != (equipment.Id{}) && msg.RoutingKey.Source.Equal(s.identity) {
		d.Ack(false)
		return
	}

	if err := handle(ctx, msg); err != nil {
		// Leave the delivery unacknowledged; the broker redelivers it once
		// this consumer's channel closes.
		s.log.WithError(err).WithField("origin", msg.Origin).Warn("messaging: handler failed, leaving unacknowledged")
		return
	}
	d.Ack(false)
}

func (s *Subscriber) bind(bindings []equipment.SubscriptionRoutingKey) error {
	ch := s.channel()
	if ch == nil {
		return fmt.Errorf("messaging: bind: not connected")
	}

	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("messaging: declare queue %q: %w", s.queue, err)
	}

	for _, b := range bindings {
		if err := ch.QueueBind(s.queue, b.Format(), string(s.cfg.Exchange), false, nil); err != nil {
			return fmt.Errorf("messaging: bind %q to %q: %w", s.queue, b.Format(), err)
		}
	}
	return nil
}
