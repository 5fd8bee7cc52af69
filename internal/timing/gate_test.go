package timing

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestDelaySameDay(t *testing.T) {
	g := Gate{Zone: "America/New_York", At: "07:00", LateTolerance: 10 * time.Minute, MaxWait: 2 * time.Hour}
	// 10:55 UTC is 06:55 EDT.
	now := time.Date(2026, 10, 15, 10, 55, 0, 0, time.UTC)
	d, reason := g.Delay(now)
	assert.Equal(t, 5*time.Minute, d)
	assert.Empty(t, reason)
}

func TestDelayUsesZoneDateNotUTCDate(t *testing.T) {
	g := Gate{Zone: "America/New_York", At: "23:30", MaxWait: time.Hour}
	// 03:10 UTC on the 16th is 23:10 EDT on the 15th.
	now := time.Date(2026, 10, 16, 3, 10, 0, 0, time.UTC)
	d, _ := g.Delay(now)
	assert.Equal(t, 20*time.Minute, d)
}

func TestDelayWithinLateTolerance(t *testing.T) {
	g := Gate{Zone: "America/New_York", At: "07:00", LateTolerance: 10 * time.Minute}
	now := time.Date(2026, 10, 15, 7, 4, 0, 0, newYork(t))
	d, reason := g.Delay(now)
	assert.Zero(t, d)
	assert.Contains(t, reason, "already reached")
}

func TestDelayRollsToNextDay(t *testing.T) {
	g := Gate{Zone: "America/New_York", At: "07:00", LateTolerance: time.Minute}
	now := time.Date(2026, 10, 15, 7, 30, 0, 0, newYork(t))
	d, _ := g.Delay(now)
	assert.Equal(t, 23*time.Hour+30*time.Minute, d)

	g.MaxWait = 2 * time.Hour
	d, reason := g.Delay(now)
	assert.Zero(t, d)
	assert.Contains(t, reason, "beyond max wait")
}

func TestDelayAcrossDSTChange(t *testing.T) {
	g := Gate{Zone: "America/New_York", At: "07:00"}
	// 2026-11-01 02:00 EDT falls back to 01:00 EST; from 00:00 EDT to 07:00 EST is 8h.
	now := time.Date(2026, 11, 1, 4, 0, 0, 0, time.UTC)
	d, _ := g.Delay(now)
	assert.Equal(t, 8*time.Hour, d)
}

func TestDelayBadZoneProceeds(t *testing.T) {
	d, reason := Gate{Zone: "Mars/Olympus", At: "07:00"}.Delay(time.Now())
	assert.Zero(t, d)
	assert.Contains(t, reason, "unknown timezone")

	d, reason = Gate{Zone: "UTC", At: "7am"}.Delay(time.Now())
	assert.Zero(t, d)
	assert.Contains(t, reason, "bad gate time")
}

func TestWaitSleepsForDelay(t *testing.T) {
	var slept time.Duration
	g := Gate{
		Zone:    "UTC",
		At:      "07:00",
		MaxWait: time.Hour,
		Now:     func() time.Time { return time.Date(2026, 10, 15, 6, 59, 30, 0, time.UTC) },
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = d
			return nil
		},
		Logger: zerolog.Nop(),
	}
	require.NoError(t, g.Wait(context.Background()))
	assert.Equal(t, 30*time.Second, slept)
}

func TestWaitUnresolvableZoneDoesNotSleep(t *testing.T) {
	g := Gate{
		Zone:  "Nowhere/Land",
		At:    "07:00",
		Sleep: func(context.Context, time.Duration) error { t.Fatal("unexpected sleep"); return nil },
	}
	assert.NoError(t, g.Wait(context.Background()))
}
