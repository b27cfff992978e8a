package alert

import (
	"fmt"
)

// Handle is a reusable alarm sound. Implementations need not be safe for
// concurrent use; the Notifier calls them from a single goroutine.
type Handle interface {
	SetLoop(loop bool)
	Play() error
	Pause()
	Rewind()
	Playing() bool
	Close() error
}

// HandleFactory creates the alarm handle on first use
type HandleFactory func() (Handle, error)

// Playback describes the alarm handle from the outside
type Playback int

const (
	// Idle means no handle has been created yet
	Idle Playback = iota
	// Silent means a handle exists and is paused at its start
	Silent
	// Sounding means the handle is playing in a loop
	Sounding
)

func (p Playback) String() string {
	switch p {
	case Idle:
		return "idle"
	case Silent:
		return "silent"
	case Sounding:
		return "sounding"
	default:
		return fmt.Sprintf("playback(%d)", int(p))
	}
}

// MarshalText renders the playback state by name
func (p Playback) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a playback state name
func (p *Playback) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*p = Idle
	case "silent":
		*p = Silent
	case "sounding":
		*p = Sounding
	default:
		return fmt.Errorf("unknown playback state %q", text)
	}
	return nil
}
