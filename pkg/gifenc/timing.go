package gifenc

import "math"

const (
	ticksPerSecond = 100

	// minDelayTicks is the common renderer-compatibility floor; delays
	// below it are stretched rather than frames dropped.
	minDelayTicks = 2

	// soloDelayTicks is the delay assigned to a single-frame animation.
	soloDelayTicks = 10
)

// timingReconciler maps continuous timestamps onto the GIF delay model.
// A frame's delay is only known once the next frame's timestamp arrives,
// so the reconciler always holds one pending frame. Frames whose delay
// would round to zero ticks are coalesced: the later frame's pixels
// supersede the pending one and keep its start tick.
type timingReconciler struct {
	pending   *frame
	startTick int
	lastDelay int
}

func toTicks(seconds float64) int {
	return int(math.Round(seconds * ticksPerSecond))
}

// push accepts the next frame and, when the previously pending frame's
// display interval is settled, emits it together with its delay in ticks.
func (tr *timingReconciler) push(f *frame) (out *frame, delay int, ok bool) {
	tick := toTicks(f.timestamp)
	if tr.pending == nil {
		tr.pending, tr.startTick = f, tick
		return nil, 0, false
	}
	if tick == tr.startTick {
		// coalesce: later pixels win, accumulated delay stays
		tr.pending = f
		return nil, 0, false
	}
	out, delay = tr.pending, tick-tr.startTick
	if delay < minDelayTicks {
		delay = minDelayTicks
	}
	tr.pending, tr.startTick, tr.lastDelay = f, tick, delay
	return out, delay, true
}

// flush emits the final pending frame. Its interval has no successor to
// settle it, so it inherits the previous frame's delay, or soloDelayTicks
// for a single-frame animation.
func (tr *timingReconciler) flush() (out *frame, delay int, ok bool) {
	if tr.pending == nil {
		return nil, 0, false
	}
	delay = tr.lastDelay
	if delay == 0 {
		delay = soloDelayTicks
	}
	out, tr.pending = tr.pending, nil
	return out, delay, true
}
