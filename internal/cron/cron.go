// Package cron implements the other half of C8/C9: it watches the virtual
// clock ClockManager broadcasts and fires due Cronjobs as they cross the
// clock's current model time.
//
// A node is specified as a single-threaded cooperative loop where the
// inbound-message handler and the clock-monitor task interleave on the
// same thread of control, so neither needs a lock to touch the node's
// clock state. Go has no such single OS thread by default; this package
// gets the same "no lock needed" property by never sharing the clock
// across goroutines directly — handle sends clock updates down a channel,
// and only the monitor goroutine ever reads or mutates its own copy.
package cron

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/clock"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/clockmanager"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/crn"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/node"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/store"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/timer"
)

// Identity returns Cron's well-known equipment id: CRN.*.2.
func Identity() equipment.Id {
	return equipment.New(equipment.CRN, nil, uint(crn.Cron))
}

// SubscriptionKeys returns the binding Cron listens on: ClockManager's
// broadcasts, and nothing else.
func SubscriptionKeys() []equipment.SubscriptionRoutingKey {
	return []equipment.SubscriptionRoutingKey{
		{Source: equipment.FilterFromId(clockmanager.Identity()), Target: equipment.Any()},
	}
}

// modelTimeStore is the persistence surface for Cron's own "last seen
// model time" bookmark, satisfied by *store.ModelTimeStore.
type modelTimeStore interface {
	Load() (time.Time, bool, error)
	Save(time.Time) error
	Delete() error
}

// cronjobStore is the persistence surface for due-job lookup, satisfied
// by *store.CronjobStore.
type cronjobStore interface {
	FindDue(now time.Time) ([]store.Cronjob, error)
	Delete(id int) error
}

// clockStore is the persistence surface for the authoritative Clock,
// satisfied by *store.ClockStore.
type clockStore interface {
	Load() (clock.Clock, bool, error)
}

// Node watches ClockManager's broadcasts and fires due Cronjobs.
type Node struct {
	*node.Runtime

	clocks    clockStore
	modelTime modelTimeStore
	cronjobs  cronjobStore

	saveModelTime bool
	clockUpdates  chan clock.Clock
}

// New builds a Cron Node. When saveModelTime is true, every distinct model
// tick is persisted via mts; when false, any previously persisted bookmark
// is discarded at startup (fresh-run semantics). The Node never reads the
// bookmark back: after a restart, model time comes from the Clock alone.
func New(transport node.Transport, cs clockStore, mts modelTimeStore, cjs cronjobStore, saveModelTime bool, log *logrus.Entry) *Node {
	n := &Node{
		clocks:        cs,
		modelTime:     mts,
		cronjobs:      cjs,
		saveModelTime: saveModelTime,
		clockUpdates:  make(chan clock.Clock, 1),
	}
	n.Runtime = node.New(node.Descriptor{ID: Identity(), Subscriptions: SubscriptionKeys()}, transport, n.handle, log)
	n.Runtime.OnStartup = n.startMonitor
	return n
}

func (n *Node) handle(ctx context.Context, msg messaging.Message) error {
	var c clock.Clock
	if err := json.Unmarshal(msg.Payload, &c); err != nil {
		n.Log.WithError(err).Warn("cron: dropping invalid clock payload")
		return nil
	}

	select {
	case n.clockUpdates <- c:
	case <-ctx.Done():
	default:
		// monitor hasn't drained the previous update yet; replace it so the
		// latest clock always wins, matching "Cron uses the latest clock it
		// has seen".
		select {
		case <-n.clockUpdates:
		default:
		}
		n.clockUpdates <- c
	}
	return nil
}

func (n *Node) startMonitor(ctx context.Context) {
	go n.monitorClock(ctx)
}

func (n *Node) monitorClock(ctx context.Context) {
	if !n.saveModelTime {
		if err := n.modelTime.Delete(); err != nil {
			n.Log.WithError(err).Warn("cron: failed to clear stale model-time bookmark")
		}
	}

	var current clock.Clock
	if c, ok, err := n.clocks.Load(); err == nil && ok {
		current = c
	} else {
		// No authoritative clock persisted yet; block until ClockManager's
		// first broadcast arrives.
		select {
		case current = <-n.clockUpdates:
		case <-ctx.Done():
			return
		}
	}

	tm := timer.NewCooperative(current.TickInterval)
	nextTick := tm.Next()

	var prev *time.Time
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-n.clockUpdates:
			current = c
			tm.SetInterval(current.TickInterval)
			nextTick = tm.Next()

		case <-nextTick:
			nextTick = tm.Next()

			now := current.Now()
			if prev != nil && now.Equal(*prev) {
				continue
			}
			prev = &now

			if n.saveModelTime {
				if err := n.modelTime.Save(now); err != nil {
					n.Log.WithError(err).Warn("cron: failed to persist model time")
				}
			}

			n.fireDue(ctx, now)
		}
	}
}

func (n *Node) fireDue(ctx context.Context, now time.Time) {
	for {
		due, err := n.cronjobs.FindDue(now)
		if err != nil {
			n.Log.WithError(err).Warn("cron: failed to query due cronjobs")
			return
		}
		if len(due) == 0 {
			return
		}

		job := due[0]
		routing := equipment.PublicationRoutingKey{Source: Identity(), Target: equipment.FilterFromId(job.Target)}
		msg, err := messaging.New(routing, job)
		if err != nil {
			n.Log.WithError(err).Warn("cron: failed to encode fired job")
			return
		}

		if err := n.Publish(ctx, msg); err != nil {
			n.Log.WithError(err).Warn("cron: failed to publish fired job")
			return
		}
		if err := n.cronjobs.Delete(*job.Id); err != nil {
			n.Log.WithError(err).Warn("cron: failed to delete fired job")
			return
		}
		n.Log.WithField("event_id", job.EventId).WithField("target", job.Target).Info("cron: fired job")
	}
}
