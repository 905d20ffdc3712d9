// Package recorder implements the message-recorder node supplemented from
// the source system's operations/recorder subsystem: a node that
// subscribes to all fleet traffic and durably logs every message it
// observes, for later audit or replay.
package recorder

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/node"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/store"
)

// serial is the recorder's well-known serial within the MLG equipment
// type, giving it the address MLG.*.1 (there is only ever one recorder,
// so it does not need a CRN-style multi-node serial registry).
const serial = 1

// Identity returns the recorder's well-known equipment id.
func Identity() equipment.Id {
	return equipment.New(equipment.MLG, nil, serial)
}

// SubscriptionKeys subscribes the recorder to every message on the
// exchange.
func SubscriptionKeys() []equipment.SubscriptionRoutingKey {
	return []equipment.SubscriptionRoutingKey{
		{Source: equipment.All(), Target: equipment.All()},
	}
}

// messageLogStore is the persistence surface the recorder depends on,
// satisfied by *store.MessageLogStore.
type messageLogStore interface {
	Save(msg messaging.Message, recordedAt time.Time) (store.MessageRecord, error)
}

// Node widens and persists every message it observes.
type Node struct {
	*node.Runtime
	store messageLogStore
}

// New builds a recorder Node over transport, persisting through ls.
func New(transport node.Transport, ls messageLogStore, log *logrus.Entry) *Node {
	n := &Node{store: ls}
	n.Runtime = node.New(node.Descriptor{ID: Identity(), Subscriptions: SubscriptionKeys()}, transport, n.handle, log)
	return n
}

func (n *Node) handle(ctx context.Context, msg messaging.Message) error {
	if _, err := n.store.Save(msg, time.Now()); err != nil {
		n.Log.WithError(err).Warn("recorder: failed to persist message")
		return err
	}
	return nil
}
