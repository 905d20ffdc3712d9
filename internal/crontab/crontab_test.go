package crontab_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/crontab"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging/fakebroker"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/store"
)

type memCronjobStore struct {
	saved []store.Cronjob
}

func (m *memCronjobStore) Save(job store.Cronjob) (store.Cronjob, error) {
	id := len(m.saved) + 1
	job.Id = &id
	m.saved = append(m.saved, job)
	return job, nil
}

func sectorOf(n uint) *uint { return &n }

func TestCrontabSavesJobWithExplicitTarget(t *testing.T) {
	bus := fakebroker.NewBus()
	transport := fakebroker.NewClient(bus, crontab.Identity(), "crontab")
	cs := &memCronjobStore{}
	n := crontab.New(transport, cs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)
	time.Sleep(5 * time.Millisecond)

	operator := equipment.New(equipment.SCH, nil, 9)
	target := equipment.New(equipment.SCH, sectorOf(1), 1)
	body := []byte(`{"target":"` + target.Format() + `","event_id":"abc","on":"2026-01-02T06:25:00Z"}`)
	msg, err := messaging.New(equipment.PublicationRoutingKey{Source: operator, Target: equipment.FilterFromId(crontab.Identity())}, nil)
	require.NoError(t, err)
	msg.Payload = body

	bus.Publish(msg)

	require.Eventually(t, func() bool { return len(cs.saved) == 1 }, time.Second, time.Millisecond)
	assert.True(t, cs.saved[0].Target.Equal(target))
	assert.Equal(t, "abc", cs.saved[0].EventId)
}

func TestCrontabDefaultsTargetToMessageSource(t *testing.T) {
	bus := fakebroker.NewBus()
	transport := fakebroker.NewClient(bus, crontab.Identity(), "crontab2")
	cs := &memCronjobStore{}
	n := crontab.New(transport, cs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)
	time.Sleep(5 * time.Millisecond)

	source := equipment.New(equipment.SCH, nil, 3)
	msg, err := messaging.New(equipment.PublicationRoutingKey{Source: source, Target: equipment.FilterFromId(crontab.Identity())}, nil)
	require.NoError(t, err)
	msg.Payload = []byte(`{"event_id":"xyz","on":"2026-01-02T06:25:00Z"}`)

	bus.Publish(msg)

	require.Eventually(t, func() bool { return len(cs.saved) == 1 }, time.Second, time.Millisecond)
	assert.True(t, cs.saved[0].Target.Equal(source))
}
