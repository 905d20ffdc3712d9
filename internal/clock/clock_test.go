package clock_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/clock"
)

func TestNowWhileRunningAdvancesBySpeed(t *testing.T) {
	anchorReal := time.Now().Add(-10 * time.Second)
	anchorModel := time.Date(2026, 1, 17, 6, 25, 0, 0, time.UTC)

	c, err := clock.New(true, 2, anchorReal, anchorModel, time.Second)
	require.NoError(t, err)

	now := c.Now()
	assert.True(t, now.Sub(anchorModel) >= 19*time.Second)
}

func TestNowWhileStoppedFreezesAtAnchor(t *testing.T) {
	anchorModel := time.Date(2026, 1, 17, 6, 25, 0, 0, time.UTC)
	c, err := clock.New(false, 1, time.Now(), anchorModel, time.Second)
	require.NoError(t, err)

	assert.Equal(t, anchorModel, c.Now())
}

func TestNewRejectsOutOfRangeSpeed(t *testing.T) {
	_, err := clock.New(true, 0, time.Now(), time.Now(), time.Second)
	require.Error(t, err)

	_, err = clock.New(true, 11, time.Now(), time.Now(), time.Second)
	require.Error(t, err)
}

func TestMarshalUnmarshalRoundTripsWireFields(t *testing.T) {
	anchorModel := time.Date(2026, 1, 17, 6, 25, 0, 0, time.UTC)
	c, err := clock.New(true, 2, time.Now(), anchorModel, time.Second)
	require.NoError(t, err)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_running":true,"speed":2,"year":2026,"month":1,"day":17,"hour":6,"minute":25}`, string(data))

	var decoded clock.Clock
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, c.Equal(decoded))
}

func TestEqualIgnoresAnchorRealAndTickInterval(t *testing.T) {
	anchorModel := time.Date(2026, 1, 17, 6, 25, 0, 0, time.UTC)
	a, err := clock.New(true, 2, time.Now(), anchorModel, time.Second)
	require.NoError(t, err)
	b, err := clock.New(true, 2, time.Now().Add(time.Hour), anchorModel, 5*time.Second)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
}

func TestUnmarshalRejectsSpeedOutOfRange(t *testing.T) {
	var c clock.Clock
	err := json.Unmarshal([]byte(`{"is_running":true,"speed":99,"year":2026,"month":1,"day":17,"hour":6,"minute":25}`), &c)
	require.Error(t, err)
}
