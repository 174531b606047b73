package alarm

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sunrised/internal/state"
)

func at(hour, min, sec int) time.Time {
	return time.Date(2024, time.March, 14, hour, min, sec, 0, time.UTC)
}

func TestNextWindow(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		wake      time.Duration
		fade      time.Duration
		wantStart time.Time
		wantEnd   time.Time
		wantDelta time.Duration
	}{
		{
			name:      "before_window",
			now:       at(6, 0, 0),
			wake:      7 * time.Hour,
			fade:      30 * time.Minute,
			wantStart: at(6, 30, 0),
			wantEnd:   at(7, 0, 0),
			wantDelta: 30 * time.Minute,
		},
		{
			name:      "inside_window_clamps_delta",
			now:       at(6, 45, 0),
			wake:      7 * time.Hour,
			fade:      30 * time.Minute,
			wantStart: at(6, 30, 0),
			wantEnd:   at(7, 0, 0),
			wantDelta: 0,
		},
		{
			name:      "past_wake_moves_to_tomorrow",
			now:       at(7, 30, 0),
			wake:      7 * time.Hour,
			fade:      30 * time.Minute,
			wantStart: at(6, 30, 0).AddDate(0, 0, 1),
			wantEnd:   at(7, 0, 0).AddDate(0, 0, 1),
			wantDelta: 23 * time.Hour,
		},
		{
			name:      "wake_equal_now_is_today",
			now:       at(7, 0, 0),
			wake:      7 * time.Hour,
			fade:      30 * time.Minute,
			wantStart: at(6, 30, 0),
			wantEnd:   at(7, 0, 0),
			wantDelta: 0,
		},
		{
			name:      "fade_longer_than_remaining_time",
			now:       at(5, 0, 0),
			wake:      7 * time.Hour,
			fade:      3 * time.Hour,
			wantStart: at(4, 0, 0),
			wantEnd:   at(7, 0, 0),
			wantDelta: 0,
		},
		{
			name:      "window_crosses_midnight",
			now:       at(22, 0, 0),
			wake:      15 * time.Minute,
			fade:      time.Hour,
			wantStart: at(23, 15, 0),
			wantEnd:   at(0, 15, 0).AddDate(0, 0, 1),
			wantDelta: 75 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			win := NextWindow(tt.now, state.Schedule{WakeTime: tt.wake, FadeDuration: tt.fade})
			assert.True(t, tt.wantStart.Equal(win.Start), "start = %s, want %s", win.Start, tt.wantStart)
			assert.True(t, tt.wantEnd.Equal(win.End), "end = %s, want %s", win.End, tt.wantEnd)
			assert.Equal(t, tt.wantDelta, win.Delta)
		})
	}
}

func TestNextWindow_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := at(0, 0, 0)

	for i := 0; i < 2000; i++ {
		now := base.Add(time.Duration(rng.Int63n(int64(72 * time.Hour))))
		wake := time.Duration(rng.Int63n(int64(24 * time.Hour))).Truncate(time.Second)
		fade := time.Duration(rng.Int63n(int64(3 * time.Hour)))

		win := NextWindow(now, state.Schedule{WakeTime: wake, FadeDuration: fade})

		require.False(t, win.End.Before(now), "end %s before now %s", win.End, now)
		require.LessOrEqual(t, win.End.Sub(now), 24*time.Hour)
		require.Equal(t, wake, TimeOfDay(win.End))
		require.True(t, win.Start.Equal(win.End.Add(-fade)))
		require.GreaterOrEqual(t, win.Delta, time.Duration(0))
		if win.Start.After(now) {
			require.Equal(t, win.Start.Sub(now), win.Delta)
		} else {
			require.Zero(t, win.Delta)
		}
	}
}

func TestNextWindow_DSTKeepsWallClock(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 2024-03-31 is 23 hours long in Berlin.
	now := time.Date(2024, time.March, 30, 23, 0, 0, 0, loc)
	win := NextWindow(now, state.Schedule{WakeTime: 7 * time.Hour, FadeDuration: 30 * time.Minute})

	assert.Equal(t, 31, win.End.Day())
	assert.Equal(t, 7, win.End.Hour())
	assert.Equal(t, 0, win.End.Minute())
	assert.Equal(t, 6*time.Hour+30*time.Minute, win.Delta)
}

func TestChunkDelta(t *testing.T) {
	assert.Equal(t, 7031250*time.Microsecond, ChunkDelta(30*time.Minute))
	assert.Equal(t, time.Second, ChunkDelta(256*time.Second))
	assert.Zero(t, ChunkDelta(0))

	// No cumulative drift beyond one chunk.
	fade := 17*time.Minute + 3*time.Second + 7*time.Millisecond
	assert.Less(t, fade-ChunkDelta(fade)*Steps, ChunkDelta(fade))
}

func TestParseWakeTime(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"07:00", 7 * time.Hour, false},
		{"6:30", 6*time.Hour + 30*time.Minute, false},
		{"06:30:15", 6*time.Hour + 30*time.Minute + 15*time.Second, false},
		{"7h30m", 7*time.Hour + 30*time.Minute, false},
		{" 0s ", 0, false},
		{"24:00", 0, true},
		{"07:60", 0, true},
		{"24h", 0, true},
		{"-1h", 0, true},
		{"tomorrow", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWakeTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30m", 30 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"30min", 30 * time.Minute, false},
		{"1h 30m", 90 * time.Minute, false},
		{"2 hours", 2 * time.Hour, false},
		{"1hour 5mins 10s", time.Hour + 5*time.Minute + 10*time.Second, false},
		{"1.5h", 90 * time.Minute, false},
		{"250ms", 250 * time.Millisecond, false},
		{"1 day", 24 * time.Hour, false},
		{"", 0, true},
		{"half-hour", 0, true},
		{"5 fortnights", 0, true},
		{"30min later", 0, true},
		{"- 5min", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWakeTime_SpelledOut(t *testing.T) {
	got, err := ParseWakeTime("6h 30min")
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour+30*time.Minute, got)
}

func TestFormatWakeTime(t *testing.T) {
	assert.Equal(t, "07:00:00", FormatWakeTime(7*time.Hour))
	assert.Equal(t, "23:59:59", FormatWakeTime(24*time.Hour-time.Second))
}
