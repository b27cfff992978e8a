package audio

import (
	"sync"
	"time"
)

// VirtualHandle tracks alarm state without an output device. It is used on
// hosts without a sound card, where dashboard clients render the alarm.
type VirtualHandle struct {
	mu      sync.Mutex
	loop    bool
	playing bool
	started time.Time
	offset  time.Duration
}

// NewVirtualHandle creates a device-less alarm handle
func NewVirtualHandle() *VirtualHandle {
	return &VirtualHandle{}
}

// SetLoop implements alert.Handle
func (v *VirtualHandle) SetLoop(loop bool) {
	v.mu.Lock()
	v.loop = loop
	v.mu.Unlock()
}

// Play implements alert.Handle
func (v *VirtualHandle) Play() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.playing {
		v.playing = true
		v.started = time.Now()
	}
	return nil
}

// Pause implements alert.Handle
func (v *VirtualHandle) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.playing {
		v.offset += time.Since(v.started)
		v.playing = false
	}
}

// Rewind implements alert.Handle
func (v *VirtualHandle) Rewind() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.offset = 0
	if v.playing {
		v.started = time.Now()
	}
}

// Playing implements alert.Handle
func (v *VirtualHandle) Playing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

// Position is the elapsed play time since the last rewind
func (v *VirtualHandle) Position() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.playing {
		return v.offset + time.Since(v.started)
	}
	return v.offset
}

// Loop reports whether looping is enabled
func (v *VirtualHandle) Loop() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loop
}

// Close implements alert.Handle
func (v *VirtualHandle) Close() error {
	v.Pause()
	return nil
}
