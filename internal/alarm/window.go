package alarm

import (
	"time"

	"github.com/dokzlo13/sunrised/internal/state"
)

// Steps is the number of equal increments a fade is divided into.
const Steps = 256

// Window is one fade window: lights ramp between Start and End, and the
// controller sleeps for Delta before Start.
type Window struct {
	Start time.Time
	End   time.Time
	Delta time.Duration
}

// NextWindow computes the fade window ending at the next occurrence of the
// schedule's wake time. A wake time equal to the current time of day counts as
// today. Delta is never negative.
func NextWindow(now time.Time, s state.Schedule) Window {
	anchor := now
	if s.WakeTime < TimeOfDay(now) {
		anchor = now.AddDate(0, 0, 1)
	}

	// Built from wall-clock fields so the wake time holds across DST changes.
	h, m, sec, ns := clockFields(s.WakeTime)
	end := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), h, m, sec, ns, anchor.Location())
	start := end.Add(-s.FadeDuration)

	delta := start.Sub(now)
	if delta < 0 {
		delta = 0
	}

	return Window{Start: start, End: end, Delta: delta}
}

// TimeOfDay returns the wall-clock offset of t since its midnight.
func TimeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}

func clockFields(d time.Duration) (h, m, s, ns int) {
	h = int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m = int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s = int(d / time.Second)
	d -= time.Duration(s) * time.Second
	return h, m, s, int(d)
}

// ChunkDelta is the pause between two fade steps.
func ChunkDelta(fade time.Duration) time.Duration {
	return fade / Steps
}
