// Package clockconf implements the clock-configuration interlock:
// a node that publishes exactly one Clock proposal to ClockManager and
// halts the moment it observes ClockManager's own echo of that same
// proposal come back, identified by a fresh Origin minted for the
// proposal alone. Grounded on the source system's ClockConfNode, which
// runs the same publish-then-wait-for-matching-origin handshake from a
// short-lived CLI process rather than a long-running service.
package clockconf

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/clock"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/clockmanager"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/crn"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/node"
)

// Identity returns the clock-conf tool's well-known equipment id.
func Identity() equipment.Id {
	return equipment.New(equipment.CRN, nil, uint(crn.ClockConf))
}

// SubscriptionKeys subscribes only to traffic from ClockManager, so the
// interlock never has to filter out unrelated fleet chatter.
func SubscriptionKeys() []equipment.SubscriptionRoutingKey {
	return []equipment.SubscriptionRoutingKey{
		{Source: equipment.FilterFromId(clockmanager.Identity()), Target: equipment.Any()},
	}
}

// PublicationKey addresses a proposal at ClockManager specifically.
func PublicationKey() equipment.PublicationRoutingKey {
	return equipment.PublicationRoutingKey{Source: Identity(), Target: equipment.FilterFromId(clockmanager.Identity())}
}

// Node publishes proposal once on startup and reports completion on Done
// once ClockManager's echo of that same proposal is observed.
type Node struct {
	*node.Runtime

	proposal clock.Clock

	mu     sync.Mutex
	origin messaging.Origin

	done     chan struct{}
	closeOne sync.Once
}

// New builds a Node that will publish proposal the moment its Runtime
// starts consuming.
func New(transport node.Transport, proposal clock.Clock, log *logrus.Entry) *Node {
	n := &Node{proposal: proposal, done: make(chan struct{})}
	n.Runtime = node.New(node.Descriptor{ID: Identity(), Subscriptions: SubscriptionKeys()}, transport, n.handle, log)
	n.Runtime.OnStartup = n.publishProposal
	return n
}

// Done is closed once ClockManager's echo of the proposal this Node sent
// is observed, or never, if it is not.
func (n *Node) Done() <-chan struct{} { return n.done }

func (n *Node) publishProposal(ctx context.Context) {
	msg, err := messaging.New(PublicationKey(), n.proposal)
	if err != nil {
		n.Log.WithError(err).Error("clockconf: failed to encode proposal")
		return
	}

	n.mu.Lock()
	n.origin = msg.Origin
	n.mu.Unlock()

	if err := n.Publish(ctx, msg); err != nil {
		n.Log.WithError(err).Error("clockconf: failed to publish proposal")
	}
}

func (n *Node) handle(ctx context.Context, msg messaging.Message) error {
	n.mu.Lock()
	origin := n.origin
	n.mu.Unlock()

	if origin != "" && msg.Origin == origin {
		n.closeOne.Do(func() { close(n.done) })
	}
	return nil
}
