// Package flight provides the busy flag that keeps an operation single-flight.
package flight

import "sync/atomic"

// Flag is held by at most one caller at a time. The zero value is idle.
type Flag struct {
	busy atomic.Bool
}

// TryBegin marks the flag busy and reports whether the caller got it.
func (f *Flag) TryBegin() bool {
	return f.busy.CompareAndSwap(false, true)
}

// End returns the flag to idle.
func (f *Flag) End() {
	f.busy.Store(false)
}

// Busy reports whether an operation is in flight.
func (f *Flag) Busy() bool {
	return f.busy.Load()
}
