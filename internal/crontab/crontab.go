// Package crontab implements half of C8/C9: the durable schedule-request
// intake for the cron subsystem. It accepts Cronjob proposals addressed to
// it and persists them; Cron (see the cron package) is what actually fires
// them against the virtual clock.
package crontab

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/crn"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/node"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/store"
)

// Identity returns Crontab's well-known equipment id: CRN.*.3.
func Identity() equipment.Id {
	return equipment.New(equipment.CRN, nil, uint(crn.Crontab))
}

// SubscriptionKeys returns the binding Crontab listens on: any traffic
// addressed to itself.
func SubscriptionKeys() []equipment.SubscriptionRoutingKey {
	return []equipment.SubscriptionRoutingKey{
		{Source: equipment.All(), Target: equipment.FilterFromId(Identity())},
	}
}

// request is the wire shape of a schedule proposal. Target is optional: if
// absent, the job is scheduled against the publishing message's own source
// equipment.
type request struct {
	Target     *string `json:"target,omitempty"`
	EventId    string  `json:"event_id"`
	OnDatetime string  `json:"on"`
}

// cronjobStore is the persistence surface Node depends on, satisfied by
// *store.CronjobStore.
type cronjobStore interface {
	Save(store.Cronjob) (store.Cronjob, error)
}

// Node accepts schedule requests over the broker and persists them as
// Cronjobs.
type Node struct {
	*node.Runtime
	store cronjobStore
}

// New builds a Crontab Node over transport, persisting through cs.
func New(transport node.Transport, cs cronjobStore, log *logrus.Entry) *Node {
	n := &Node{store: cs}
	n.Runtime = node.New(node.Descriptor{ID: Identity(), Subscriptions: SubscriptionKeys()}, transport, n.handle, log)
	return n
}

func (n *Node) handle(ctx context.Context, msg messaging.Message) error {
	var req request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		n.Log.WithError(err).Warn("crontab: dropping invalid schedule request")
		return nil
	}

	onDatetime, err := time.Parse(time.RFC3339, req.OnDatetime)
	if err != nil {
		n.Log.WithError(err).WithField("on", req.OnDatetime).Warn("crontab: dropping unparseable on-datetime")
		return nil
	}

	target := msg.RoutingKey.Source
	if req.Target != nil {
		parsed, err := equipment.ParseId(*req.Target)
		if err != nil {
			n.Log.WithError(err).WithField("target", *req.Target).Warn("crontab: dropping unparseable target")
			return nil
		}
		target = parsed
	}

	job, err := n.store.Save(store.Cronjob{Target: target, EventId: req.EventId, OnDatetime: onDatetime})
	if err != nil {
		return err
	}
	n.Log.WithField("id", *job.Id).WithField("event_id", job.EventId).Info("crontab: saved cronjob")
	return nil
}
