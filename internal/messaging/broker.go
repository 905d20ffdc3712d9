package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Exchange names the two operating-mode topic exchanges every node talks
// to. A node started in test mode never shares an exchange with one started
// in live mode.
type Exchange string

const (
	ExchangeLive Exchange = "mrcs.live"
	ExchangeTest Exchange = "mrcs.test"
)

// Config is the connection configuration shared by every broker client.
type Config struct {
	URL      string
	Exchange Exchange

	// ReconnectDelay is the pause between dial attempts. Zero selects the
	// package default.
	ReconnectDelay time.Duration
}

func (c Config) reconnectDelay() time.Duration {
	if c.ReconnectDelay <= 0 {
		return 2 * time.Second
	}
	return c.ReconnectDelay
}

// Handler processes one inbound message. A nil return acks the delivery; a
// non-nil return leaves it unacknowledged, so the broker redelivers it once
// the consumer's channel closes.
type Handler func(ctx context.Context, msg Message) error

// Client owns a single AMQP connection/channel pair and transparently
// redials on failure. Used on its own it only publishes; Subscriber embeds
// it and adds consuming.
type Client struct {
	cfg      Config
	identity string // formatted equipment.Id of the owning node, "" for anonymous publishers

	log *logrus.Entry

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewClient builds a Client. identity names the owning node and is only
// stored; self-message suppression is done by Subscriber against its own
// equipment id. Pass the empty string for a client that never subscribes.
func NewClient(cfg Config, identity string, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{cfg: cfg, identity: identity, log: log.WithField("exchange", string(cfg.Exchange))}
}

// Connect dials the broker, retrying every ReconnectDelay until it succeeds
// or ctx is cancelled.
func (c *Client) Connect(ctx context.Context) error {
	for {
		if err := c.dial(); err != nil {
			c.log.WithError(err).Warn("messaging: dial failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.reconnectDelay()):
			}
			continue
		}
		return nil
	}
}

func (c *Client) dial() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("messaging: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("messaging: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(string(c.cfg.Exchange), "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("messaging: declare exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("messaging: enable confirms: %w", err)
	}

	c.mu.Lock()
	c.conn, c.ch = conn, ch
	c.mu.Unlock()
	return nil
}

// channel returns the live channel, or nil if the client is currently
// disconnected.
func (c *Client) channel() *amqp.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch
}

// invalidate tears down the current connection so the next operation
// redials from scratch.
func (c *Client) invalidate() {
	c.mu.Lock()
	conn, ch := c.conn, c.ch
	c.conn, c.ch = nil, nil
	c.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	if conn != nil {
		conn.Close()
	}
}

// Publish sends msg on the client's exchange. There is no retry cap: a
// transport failure redials and the outstanding publish is retried
// indefinitely until it succeeds or ctx is cancelled.
func (c *Client) Publish(ctx context.Context, msg Message) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ch := c.channel()
		if ch == nil {
			if err := c.Connect(ctx); err != nil {
				return err
			}
			continue
		}

		confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, string(c.cfg.Exchange), msg.RoutingKey.Format(), false, false, amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			CorrelationId: string(msg.Origin),
			Body:          msg.Payload,
		})
		if err != nil {
			c.log.WithError(err).Warn("messaging: publish failed, reconnecting")
			c.invalidate()
			continue
		}

		if confirm != nil {
			ok, err := confirm.WaitContext(ctx)
			if err != nil {
				return fmt.Errorf("messaging: publish confirm: %w", err)
			}
			if !ok {
				return fmt.Errorf("messaging: publish nacked by broker")
			}
		}
		return nil
	}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	c.invalidate()
	return nil
}
