// Package coherency tracks which side of a host/device pair holds the
// authoritative copy of a resource's contents.
//
// A resource mirrored on both host and device is in exactly one of three
// states. Clean means both copies agree. DirtyHost means the host copy
// was modified and the device copy is stale. DirtyDevice means the device
// wrote the resource and the host copy is stale. Transfers are performed
// lazily: a host read pulls only when the device copy is newer, and device
// use flushes only when the host copy is newer.
package coherency

import (
	"fmt"
	"sync"
)

// State is the coherency state of a mirrored resource.
type State uint8

const (
	// Clean means host and device copies are identical.
	Clean State = iota

	// DirtyHost means the host copy is newer than the device copy.
	DirtyHost

	// DirtyDevice means the device copy is newer than the host copy.
	DirtyDevice
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case Clean:
		return "Clean"
	case DirtyHost:
		return "DirtyHost"
	case DirtyDevice:
		return "DirtyDevice"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Transfer moves contents between host and device.
// A flush copies host to device; a pull copies device to host.
type Transfer func() error

// Tracker is the coherency state machine for one resource.
//
// Every transition happens under the tracker's mutex, so the sequence
// check state, run transfer, change state is atomic per resource. A
// failed transfer leaves the state unchanged and its error is returned
// as is.
//
// The zero value is a Clean tracker ready to use.
type Tracker struct {
	mu    sync.Mutex
	state State
}

// NewTracker returns a tracker starting in the given state.
func NewTracker(initial State) *Tracker {
	return &Tracker{state: initial}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// MarkHost records a host-side mutation.
// Any pending device-side change is discarded; use BeforeWrite when the
// device copy must be preserved.
func (t *Tracker) MarkHost() {
	t.mu.Lock()
	t.state = DirtyHost
	t.mu.Unlock()
}

// MarkDevice records that the device wrote the resource, for example as
// the output of a compute dispatch or a render target.
func (t *Tracker) MarkDevice() {
	t.mu.Lock()
	t.state = DirtyDevice
	t.mu.Unlock()
}

// Sync brings both copies into agreement, running flush when the host is
// newer and pull when the device is newer. Sync on a Clean tracker does
// nothing.
func (t *Tracker) Sync(flush, pull Transfer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case DirtyHost:
		return t.runLocked(flush)
	case DirtyDevice:
		return t.runLocked(pull)
	}
	return nil
}

// BeforeRead prepares the host copy for reading.
// In DirtyDevice it pulls and becomes Clean. In DirtyHost the host copy
// is already authoritative and no transfer happens.
func (t *Tracker) BeforeRead(pull Transfer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != DirtyDevice {
		return nil
	}
	return t.runLocked(pull)
}

// BeforeWrite prepares the host copy for mutation.
// In DirtyDevice it pulls first so that a partial write does not lose
// device-side data, then marks the tracker DirtyHost. If the pull fails
// the state is unchanged.
func (t *Tracker) BeforeWrite(pull Transfer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == DirtyDevice {
		if err := t.runLocked(pull); err != nil {
			return err
		}
	}
	t.state = DirtyHost
	return nil
}

// BeforeDeviceUse prepares the device copy for use by a pass or a
// binding. In DirtyHost it flushes and becomes Clean.
func (t *Tracker) BeforeDeviceUse(flush Transfer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != DirtyHost {
		return nil
	}
	return t.runLocked(flush)
}

// runLocked runs a transfer and becomes Clean only if it succeeded.
func (t *Tracker) runLocked(transfer Transfer) error {
	if transfer != nil {
		if err := transfer(); err != nil {
			return err
		}
	}
	t.state = Clean
	return nil
}
