// Package tubes implements the triple-helix rotation: three parallel,
// independently scheduled repetition queues per user, of which exactly
// one is live at a time. Rotating lets the next tube's content be
// prepared while the current one is being served.
package tubes

import "errors"

// ID names one of the three fixed tubes.
type ID string

const (
	Tube1 ID = "tube1"
	Tube2 ID = "tube2"
	Tube3 ID = "tube3"
)

// All returns the tube IDs in rotation order.
func All() [3]ID {
	return [3]ID{Tube1, Tube2, Tube3}
}

// Next returns the tube following id in the fixed rotation cycle.
func Next(id ID) ID {
	switch id {
	case Tube1:
		return Tube2
	case Tube2:
		return Tube3
	default:
		return Tube1
	}
}

// ParseID validates a tube identifier.
func ParseID(s string) (ID, error) {
	switch ID(s) {
	case Tube1, Tube2, Tube3:
		return ID(s), nil
	}
	return "", errors.New("tubes: unknown tube " + s)
}

// State is a tube's lifecycle phase. Exactly one tube per user is live.
type State string

const (
	// StatePreparing means the tube's next content is being assembled.
	StatePreparing State = "preparing"
	// StateReady means a prepared bundle is cached and servable.
	StateReady State = "ready"
	// StateLive means the tube is currently being consumed.
	StateLive State = "live"
)

// Sentinel errors for the tubes package.
var (
	ErrUserNotFound = errors.New("tubes: user not initialized")
	ErrTubeNotFound = errors.New("tubes: tube not found")
)
