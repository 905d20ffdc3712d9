package cron_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/clock"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/clockmanager"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/cron"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging/fakebroker"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/store"
)

type memClockStore struct {
	c  clock.Clock
	ok bool
}

func (m *memClockStore) Load() (clock.Clock, bool, error) { return m.c, m.ok, nil }

type memModelTimeStore struct{ t time.Time }

func (m *memModelTimeStore) Load() (time.Time, bool, error) { return m.t, !m.t.IsZero(), nil }
func (m *memModelTimeStore) Save(t time.Time) error          { m.t = t; return nil }
func (m *memModelTimeStore) Delete() error                   { m.t = time.Time{}; return nil }

type memCronjobStore struct{ jobs []store.Cronjob }

func (m *memCronjobStore) FindDue(now time.Time) ([]store.Cronjob, error) {
	var due []store.Cronjob
	var rest []store.Cronjob
	for _, j := range m.jobs {
		if !j.OnDatetime.After(now) {
			due = append(due, j)
		} else {
			rest = append(rest, j)
		}
	}
	return due, nil
}

func (m *memCronjobStore) Delete(id int) error {
	var rest []store.Cronjob
	for _, j := range m.jobs {
		if j.Id == nil || *j.Id != id {
			rest = append(rest, j)
		}
	}
	m.jobs = rest
	return nil
}

func sectorOf(n uint) *uint { return &n }

func idPtr(n int) *int { return &n }

func TestCronFiresDueJobOnClockTick(t *testing.T) {
	bus := fakebroker.NewBus()
	transport := fakebroker.NewClient(bus, cron.Identity(), "cron")

	target := equipment.New(equipment.SCH, sectorOf(1), 1)
	cjs := &memCronjobStore{jobs: []store.Cronjob{
		{Id: idPtr(1), Target: target, EventId: "abc", OnDatetime: time.Now().Add(-time.Hour)},
	}}
	cs := &memClockStore{}
	mts := &memModelTimeStore{}

	n := cron.New(transport, cs, mts, cjs, false, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)
	time.Sleep(5 * time.Millisecond)

	fired := make(chan messaging.Message, 1)
	listener := fakebroker.NewClient(bus, equipment.New(equipment.SCH, nil, 99), "listener")
	go listener.Run(ctx, []equipment.SubscriptionRoutingKey{{Source: equipment.FilterFromId(cron.Identity()), Target: equipment.Any()}}, nil,
		func(ctx context.Context, msg messaging.Message) error {
			fired <- msg
			return nil
		})
	time.Sleep(5 * time.Millisecond)

	// Running clock. The wire payload carries no tick interval, so Cron's
	// timer runs with a zero interval and checks for due jobs without pacing.
	c, err := clock.New(true, 1, time.Now(), time.Now(), 10*time.Millisecond)
	require.NoError(t, err)
	payload, err := c.MarshalJSON()
	require.NoError(t, err)
	bus.Publish(messaging.Forward(
		equipment.PublicationRoutingKey{Source: clockmanager.Identity(), Target: equipment.Any()},
		payload, messaging.NewOrigin(),
	))

	select {
	case msg := <-fired:
		assert.True(t, msg.RoutingKey.Source.Equal(cron.Identity()))
		assert.True(t, msg.RoutingKey.Target.Format() != equipment.All().Format())
	case <-time.After(time.Second):
		t.Fatal("job never fired")
	}

	require.Eventually(t, func() bool { return len(cjs.jobs) == 0 }, time.Second, time.Millisecond)
}
