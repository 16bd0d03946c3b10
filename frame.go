// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geoviz

import "sync/atomic"

// frameFlag is the coalesced redraw request: any number of set calls
// before the next clear collapse into one pending frame.
type frameFlag struct {
	pending    atomic.Bool
	invalidate atomic.Pointer[func()]
}

// set marks a frame pending and reports whether the flag was newly
// raised.
func (f *frameFlag) set() bool { return !f.pending.Swap(true) }

func (f *frameFlag) clear() { f.pending.Store(false) }

func (f *frameFlag) isSet() bool { return f.pending.Load() }

// requestFrame schedules a redraw on the next frame tick. Requests
// coalesce: however many mutations land between two ticks, at most
// one draw runs. The first request since the last draw fires the
// invalidate hook so an event-driven host wakes up.
func (r *Renderer) requestFrame() {
	if r.pending.set() {
		if fn := r.pending.invalidate.Load(); fn != nil {
			(*fn)()
		}
	}
}

// NeedsFrame reports whether a redraw is pending. Hosts running a
// continuous loop poll this; event-driven hosts use OnInvalidate
// instead.
func (r *Renderer) NeedsFrame() bool { return r.pending.isSet() }

// OnInvalidate registers a hook fired when a redraw first becomes
// pending, typically to schedule a frame tick with the host's event
// loop. The hook must not call Frame synchronously; it runs on
// whatever goroutine performed the mutation. Pass nil to remove the
// hook.
func (r *Renderer) OnInvalidate(fn func()) {
	if fn == nil {
		r.pending.invalidate.Store(nil)
		return
	}
	r.pending.invalidate.Store(&fn)
}
