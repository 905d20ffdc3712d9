// Package clock implements C6: the virtual-time state every node in the
// fleet derives simulated "now" from.
package clock

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/mrcserr"
)

// MinSpeed and MaxSpeed bound the valid speed range: greater speed means
// model time advances faster relative to the wall clock.
const (
	MinSpeed = 1
	MaxSpeed = 10
)

// Clock is a simple affine mapping from real time to model time: an anchor
// pair plus a speed multiplier. Now() extrapolates from the anchor while
// running, and freezes at the anchor when stopped.
//
// Equality and the wire encoding are defined over the fields the wire
// payload actually carries (IsRunning, Speed, and the broken-down
// AnchorModel date/time); AnchorReal is a local bookkeeping field set when
// a Clock is accepted and is not itself wire-carried or compared — two
// Clocks decoded from the same payload at different instants are still
// equal.
type Clock struct {
	IsRunning    bool
	Speed        int
	AnchorReal   time.Time
	AnchorModel  time.Time
	TickInterval time.Duration
}

// New builds a running or stopped Clock anchored at anchorModel, observed
// at anchorReal.
func New(isRunning bool, speed int, anchorReal, anchorModel time.Time, tickInterval time.Duration) (Clock, error) {
	if speed < MinSpeed || speed > MaxSpeed {
		return Clock{}, fmt.Errorf("%w: speed %d out of range [%d,%d]", mrcserr.ErrInvalidClockConfig, speed, MinSpeed, MaxSpeed)
	}
	return Clock{
		IsRunning:    isRunning,
		Speed:        speed,
		AnchorReal:   anchorReal,
		AnchorModel:  anchorModel,
		TickInterval: tickInterval,
	}, nil
}

// Now returns the current model time.
func (c Clock) Now() time.Time {
	if !c.IsRunning {
		return c.AnchorModel
	}
	elapsed := time.Since(c.AnchorReal)
	return c.AnchorModel.Add(elapsed * time.Duration(c.Speed))
}

// Equal compares two Clocks on the fields the wire payload carries:
// IsRunning, Speed, and AnchorModel truncated to the minute (the payload's
// resolution). AnchorReal and TickInterval are deliberately excluded.
func (c Clock) Equal(other Clock) bool {
	return c.IsRunning == other.IsRunning &&
		c.Speed == other.Speed &&
		c.AnchorModel.Truncate(time.Minute).Equal(other.AnchorModel.Truncate(time.Minute))
}

// wireClock is the JSON shape exchanged over the broker: the model-time
// anchor broken into its date components, at minute resolution.
type wireClock struct {
	IsRunning bool `json:"is_running"`
	Speed     int  `json:"speed"`
	Year      int  `json:"year"`
	Month     int  `json:"month"`
	Day       int  `json:"day"`
	Hour      int  `json:"hour"`
	Minute    int  `json:"minute"`
}

// MarshalJSON encodes the Clock's wire-carried fields only.
func (c Clock) MarshalJSON() ([]byte, error) {
	m := c.AnchorModel.UTC()
	return json.Marshal(wireClock{
		IsRunning: c.IsRunning,
		Speed:     c.Speed,
		Year:      m.Year(),
		Month:     int(m.Month()),
		Day:       m.Day(),
		Hour:      m.Hour(),
		Minute:    m.Minute(),
	})
}

// UnmarshalJSON decodes a wire payload. AnchorReal is set to the moment of
// decode, since the wire format carries no real-time anchor; TickInterval
// is left at its zero value, the caller's responsibility to set from
// configuration.
func (c *Clock) UnmarshalJSON(data []byte) error {
	var w wireClock
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", mrcserr.ErrInvalidClockConfig, err)
	}
	if w.Speed < MinSpeed || w.Speed > MaxSpeed {
		return fmt.Errorf("%w: speed %d out of range [%d,%d]", mrcserr.ErrInvalidClockConfig, w.Speed, MinSpeed, MaxSpeed)
	}

	c.IsRunning = w.IsRunning
	c.Speed = w.Speed
	c.AnchorReal = time.Now()
	c.AnchorModel = time.Date(w.Year, time.Month(w.Month), w.Day, w.Hour, w.Minute, 0, 0, time.UTC)
	return nil
}
