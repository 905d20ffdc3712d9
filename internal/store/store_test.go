package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/clock"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/messaging"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/store"
)

func makeTestMessage(rk equipment.PublicationRoutingKey) (messaging.Message, error) {
	return messaging.New(rk, map[string]string{"hello": "world"})
}

func openTestDB(t *testing.T) *store.Handle {
	t.Helper()
	h, err := store.OpenMemory(store.DbTest)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestClockStoreSaveAndLoadRoundTrips(t *testing.T) {
	h := openTestDB(t)
	s, err := store.NewClockStore(h, "host-a")
	require.NoError(t, err)

	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	c, err := clock.New(true, 2, time.Now(), time.Date(2026, 1, 17, 6, 25, 0, 0, time.UTC), time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Save(c))

	loaded, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, c.Equal(loaded))
}

func TestModelTimeStoreSaveLoadAndDelete(t *testing.T) {
	h := openTestDB(t)
	s, err := store.NewModelTimeStore(h, "host-a")
	require.NoError(t, err)

	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Date(2026, 1, 17, 6, 25, 0, 0, time.UTC)
	require.NoError(t, s.Save(now))

	loaded, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, now.Equal(loaded))

	require.NoError(t, s.Delete())
	_, ok, err = s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func sectorOf(n uint) *uint { return &n }

func TestCronjobStoreSaveFindDueAndDelete(t *testing.T) {
	h := openTestDB(t)
	s, err := store.NewCronjobStore(h)
	require.NoError(t, err)

	target := equipment.New(equipment.SCH, sectorOf(1), 1)
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	saved, err := s.Save(store.Cronjob{Target: target, EventId: "abc", OnDatetime: past})
	require.NoError(t, err)
	require.NotNil(t, saved.Id)

	_, err = s.Save(store.Cronjob{Target: target, EventId: "future", OnDatetime: future})
	require.NoError(t, err)

	due, err := s.FindDue(time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "abc", due[0].EventId)

	require.NoError(t, s.Delete(*saved.Id))
	due, err = s.FindDue(time.Now())
	require.NoError(t, err)
	assert.Len(t, due, 0)
}

func TestCronjobStoreSaveReplacesDuplicateTriple(t *testing.T) {
	h := openTestDB(t)
	s, err := store.NewCronjobStore(h)
	require.NoError(t, err)

	target := equipment.New(equipment.SCH, sectorOf(2), 1)
	on := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err = s.Save(store.Cronjob{Target: target, EventId: "dup", OnDatetime: on})
	require.NoError(t, err)

	second, err := s.Save(store.Cronjob{Target: target, EventId: "dup", OnDatetime: on})
	require.NoError(t, err)

	all, err := s.FindAll()
	require.NoError(t, err)
	require.Len(t, all, 1, "re-saving the same (target, event_id, on_datetime) triple must replace, not duplicate")
	assert.Equal(t, *second.Id, *all[0].Id, "the surviving row is the second write")
}

func TestCronjobStoreSaveRejectsAlreadyAssignedId(t *testing.T) {
	h := openTestDB(t)
	s, err := store.NewCronjobStore(h)
	require.NoError(t, err)

	id := 7
	_, err = s.Save(store.Cronjob{Id: &id, Target: equipment.New(equipment.SCH, nil, 1), EventId: "x", OnDatetime: time.Now()})
	require.Error(t, err)
}

func TestMessageLogStoreSaveAndFindSince(t *testing.T) {
	h := openTestDB(t)
	s, err := store.NewMessageLogStore(h)
	require.NoError(t, err)

	source := equipment.New(equipment.MPU, sectorOf(1), 1)
	rk := equipment.PublicationRoutingKey{Source: source, Target: equipment.All()}
	msg, err := makeTestMessage(rk)
	require.NoError(t, err)

	before := time.Now().Add(-time.Second)
	_, err = s.Save(msg, time.Now())
	require.NoError(t, err)

	records, err := s.FindSince(before)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, msg.Origin, records[0].Origin)
}

func TestAdminStoreSaveAndFindByEmail(t *testing.T) {
	h := openTestDB(t)
	s, err := store.NewAdminStore(h)
	require.NoError(t, err)

	u, err := s.Save(store.User{Email: "bbeloff@me.com", Role: store.RoleAdmin, GivenName: "Bruno", FamilyName: "Beloff"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.Uid)

	found, err := s.FindByEmail("bbeloff@me.com")
	require.NoError(t, err)
	assert.Equal(t, u.Uid, found.Uid)
}

func TestAdminStoreFindByEmailNotFound(t *testing.T) {
	h := openTestDB(t)
	s, err := store.NewAdminStore(h)
	require.NoError(t, err)

	_, err = s.FindByEmail("nobody@example.com")
	require.ErrorIs(t, err, store.ErrUserNotFound)
}
