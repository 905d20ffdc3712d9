// Package clockmanager implements C7: the authoritative owner of the
// fleet's virtual clock. It is the only node permitted to persist a Clock;
// every other node learns the current Clock only from its broadcasts.
package clockmanager

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/clock"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/crn"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/node"
)

// Identity returns the ClockManager's well-known equipment id: CRN.*.1.
func Identity() equipment.Id {
	return equipment.New(equipment.CRN, nil, uint(crn.ClockManager))
}

// SubscriptionKeys returns the binding ClockManager listens on: any
// traffic addressed to itself.
func SubscriptionKeys() []equipment.SubscriptionRoutingKey {
	return []equipment.SubscriptionRoutingKey{
		{Source: equipment.All(), Target: equipment.FilterFromId(Identity())},
	}
}

// PublicationKey is the routing key ClockManager broadcasts its echoes on:
// itself, to everyone.
func PublicationKey() equipment.PublicationRoutingKey {
	return equipment.PublicationRoutingKey{Source: Identity(), Target: equipment.All()}
}

// Node wraps the persisted clock state behind a node.Runtime. It never
// needs a lock: Handle only ever runs on the Runtime's own goroutine.
type Node struct {
	*node.Runtime
	store clockStore
}

// clockStore is the persistence surface Node depends on — satisfied by
// *store.ClockStore; narrowed here so tests can substitute an in-memory
// fake without touching SQLite.
type clockStore interface {
	Load() (clock.Clock, bool, error)
	Save(clock.Clock) error
}

// New builds a ClockManager Node over transport, persisting through cs.
func New(transport node.Transport, cs clockStore, log *logrus.Entry) *Node {
	n := &Node{store: cs}
	n.Runtime = node.New(node.Descriptor{ID: Identity(), Subscriptions: SubscriptionKeys()}, transport, n.handle, log)
	return n
}

func (n *Node) handle(ctx context.Context, msg messaging.Message) error {
	var proposed clock.Clock
	if err := json.Unmarshal(msg.Payload, &proposed); err != nil {
		n.Log.WithError(err).Warn("clockmanager: dropping invalid clock payload")
		return nil
	}

	current, ok, err := n.store.Load()
	if err != nil {
		return err
	}
	if ok && current.Equal(proposed) {
		n.Log.Debug("clockmanager: clock unchanged, suppressing broadcast")
		return nil
	}

	if err := n.store.Save(proposed); err != nil {
		return err
	}

	echo := messaging.Forward(PublicationKey(), msg.Payload, msg.Origin)
	n.Log.WithField("origin", msg.Origin).Info("clockmanager: broadcasting accepted clock")
	return n.Publish(ctx, echo)
}
