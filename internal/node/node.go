// Package node implements C4: the messaging-node runtime lifecycle shared
// by every fleet-control node (ClockManager, Crontab, Cron, the message
// recorder). The Handler and the OnStartup hook run on the transport's
// consume goroutine, one call at a time. A task that OnStartup launches
// (Cron's clock monitor) runs on a goroutine of its own, not on the consume
// goroutine: Cron hands clock updates to it over a channel, and clockconf
// guards the state its startup hook shares with its Handler with a mutex.
package node

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
)

// Descriptor names a node's identity and the routing keys it binds on
// startup.
type Descriptor struct {
	ID            equipment.Id
	Subscriptions []equipment.SubscriptionRoutingKey
}

// Transport is the subset of messaging.Subscriber (or fakebroker.Client)
// a Runtime drives. Both the AMQP-backed subscriber and the in-memory fake
// satisfy it.
type Transport interface {
	Publish(ctx context.Context, msg messaging.Message) error
	Run(ctx context.Context, bindings []equipment.SubscriptionRoutingKey, onConsuming func(), handle messaging.Handler) error
}

// Runtime drives a Descriptor's transport loop and dispatches deliveries to
// Handle. State field is exported so package-specific nodes (clockmanager,
// cron, ...) can embed Runtime and add their own fields without an
// intermediate accessor layer.
type Runtime struct {
	Desc      Descriptor
	Transport Transport
	Handle    messaging.Handler
	Log       *logrus.Entry

	// OnStartup, if set, is invoked exactly once, the first time the
	// transport reaches the consuming state — a later reconnect does not
	// re-invoke it. This matches handle_startup in the source system,
	// which runs its one-time setup (e.g. Cron launching its clock
	// monitor) after the node's bindings are live.
	OnStartup func(ctx context.Context)

	startupOnce sync.Once
}

// New builds a Runtime. log may be nil, in which case the standard logger
// is used.
func New(desc Descriptor, transport Transport, handle messaging.Handler, log *logrus.Entry) *Runtime {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runtime{
		Desc:      desc,
		Transport: transport,
		Handle:    handle,
		Log:       log.WithField("node", desc.ID.Format()),
	}
}

// Run blocks, dispatching inbound messages to Handle, until ctx is
// cancelled or the transport gives up.
func (r *Runtime) Run(ctx context.Context) error {
	r.Log.Info("node: starting")
	err := r.Transport.Run(ctx, r.Desc.Subscriptions, r.fireStartup(ctx), r.Handle)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("node %s: %w", r.Desc.ID, err)
	}
	return err
}

func (r *Runtime) fireStartup(ctx context.Context) func() {
	return func() {
		r.startupOnce.Do(func() {
			if r.OnStartup != nil {
				r.Log.Debug("node: running startup hook")
				r.OnStartup(ctx)
			}
		})
	}
}

// Publish sends msg through the node's own transport.
func (r *Runtime) Publish(ctx context.Context, msg messaging.Message) error {
	return r.Transport.Publish(ctx, msg)
}
