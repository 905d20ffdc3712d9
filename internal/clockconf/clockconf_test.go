package clockconf_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/clock"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/clockconf"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/clockmanager"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging/fakebroker"
)

type memClockStore struct {
	c  clock.Clock
	ok bool
}

func (m *memClockStore) Load() (clock.Clock, bool, error) { return m.c, m.ok, nil }
func (m *memClockStore) Save(c clock.Clock) error          { m.c, m.ok = c, true; return nil }

func TestClockConfHaltsOnMatchingEcho(t *testing.T) {
	bus := fakebroker.NewBus()

	cmTransport := fakebroker.NewClient(bus, clockmanager.Identity(), "clockmanager")
	cm := clockmanager.New(cmTransport, &memClockStore{}, nil)

	proposal, err := clock.New(true, 2, time.Now(), time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC), time.Second)
	require.NoError(t, err)

	ccTransport := fakebroker.NewClient(bus, clockconf.Identity(), "clockconf")
	cc := clockconf.New(ccTransport, proposal, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cm.Run(ctx)
	go cc.Run(ctx)

	select {
	case <-cc.Done():
	case <-time.After(time.Second):
		t.Fatal("clockconf never observed ClockManager's echo")
	}
}

func TestClockConfIgnoresUnrelatedTraffic(t *testing.T) {
	bus := fakebroker.NewBus()
	proposal, err := clock.New(true, 1, time.Now(), time.Now(), time.Second)
	require.NoError(t, err)

	ccTransport := fakebroker.NewClient(bus, clockconf.Identity(), "clockconf2")
	cc := clockconf.New(ccTransport, proposal, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cc.Run(ctx)
	time.Sleep(5 * time.Millisecond)

	bus.Publish(messaging.Forward(
		equipment.PublicationRoutingKey{Source: clockmanager.Identity(), Target: equipment.Any()},
		[]byte(`{"is_running":true,"speed":1,"year":2026,"month":1,"day":1,"hour":0,"minute":0}`),
		messaging.NewOrigin(),
	))

	select {
	case <-cc.Done():
		t.Fatal("clockconf halted on an echo carrying a different origin")
	case <-time.After(50 * time.Millisecond):
	}
}
