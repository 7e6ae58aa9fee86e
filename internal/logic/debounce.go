package logic

import "time"

// Debouncer filters contact bounce on the manual buttons and the light
// barrier. Limit sensors pass through untouched so a stop is never delayed.
type Debouncer struct {
	duration time.Duration
	up       channel
	down     channel
	barrier  channel
}

// channel tracks debounce state for a single input. Inputs start stable at
// false (released / clear).
type channel struct {
	stable       bool
	pending      bool
	hasPending   bool
	pendingSince time.Time
}

// NewDebouncer creates a debouncer. A duration <= 0 disables filtering.
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{duration: duration}
}

// Process takes a raw sample and returns the debounced sample.
func (d *Debouncer) Process(raw Sensors, now time.Time) Sensors {
	if d.duration <= 0 {
		return raw
	}
	out := raw
	out.UpPressed = d.processChannel(&d.up, raw.UpPressed, now)
	out.DownPressed = d.processChannel(&d.down, raw.DownPressed, now)
	out.BarrierInterrupted = d.processChannel(&d.barrier, raw.BarrierInterrupted, now)
	return out
}

func (d *Debouncer) processChannel(ch *channel, value bool, now time.Time) bool {
	if value == ch.stable {
		// No change from stable state, clear any pending
		ch.hasPending = false
		return ch.stable
	}

	if !ch.hasPending || ch.pending != value {
		ch.pending = value
		ch.hasPending = true
		ch.pendingSince = now
		return ch.stable
	}

	if now.Sub(ch.pendingSince) >= d.duration {
		ch.stable = value
		ch.hasPending = false
	}
	return ch.stable
}
