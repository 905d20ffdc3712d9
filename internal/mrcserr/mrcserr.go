// Package mrcserr collects the sentinel error kinds used across mrcs-control.
//
// Protocol-level decode errors (MalformedKey, MalformedPayload,
// InvalidClockConfig) are recovered locally by the caller: log and drop the
// frame. TransportError drives a reconnect. ImmutableViolation is a
// programming error and should fail fast.
package mrcserr

import "errors"

var (
	// ErrMalformedKey is returned when a routing-key token is neither a
	// valid type/number nor a wildcard.
	ErrMalformedKey = errors.New("mrcserr: malformed routing key")

	// ErrMalformedPayload is returned when a message body fails to decode
	// as JSON.
	ErrMalformedPayload = errors.New("mrcserr: malformed payload")

	// ErrInvalidClockConfig is returned when a Clock payload fails to
	// decode inside ClockManager.
	ErrInvalidClockConfig = errors.New("mrcserr: invalid clock configuration")

	// ErrTransport wraps a broker I/O failure that should trigger a
	// reconnect-and-retry.
	ErrTransport = errors.New("mrcserr: transport error")

	// ErrImmutableViolation marks an attempt to mutate an entity the data
	// model declares immutable post-insert (e.g. a Cronjob).
	ErrImmutableViolation = errors.New("mrcserr: immutable violation")
)
