// Package crn enumerates the serial numbers of the fleet-control nodes
// sharing the CRN equipment type. All four run at sector-less identities
// (CRN.*.N); the serial is what tells them apart on the wire.
package crn

// Serial numbers the four well-known CRN nodes.
type Serial uint

const (
	ClockManager Serial = 1
	Cron         Serial = 2
	Crontab      Serial = 3
	ClockConf    Serial = 4
)
