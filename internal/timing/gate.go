package timing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/teetime-scheduler/internal/domain/booking"
	"github.com/example/teetime-scheduler/internal/wait"
)

// Gate holds a worker until the booking site opens at a civil time in its own zone.
type Gate struct {
	Zone string // IANA name, e.g. America/New_York
	At   string // HH:MM in Zone

	// A target missed by at most LateTolerance counts as open now; missed by more rolls to tomorrow.
	LateTolerance time.Duration
	// Waits longer than MaxWait are skipped (0 disables the cap).
	MaxWait time.Duration

	Now    func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger zerolog.Logger
}

// Delay returns how long to wait from now. Resolution problems yield zero and the reason.
func (g Gate) Delay(now time.Time) (time.Duration, string) {
	loc, err := time.LoadLocation(g.Zone)
	if err != nil {
		return 0, "unknown timezone " + g.Zone + ": " + err.Error()
	}
	minutes, err := booking.ParseClock(g.At)
	if err != nil {
		return 0, "bad gate time: " + err.Error()
	}

	local := now.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), minutes/60, minutes%60, 0, 0, loc)
	if !now.Before(target) {
		if now.Sub(target) <= g.LateTolerance {
			return 0, "opening time already reached"
		}
		target = time.Date(local.Year(), local.Month(), local.Day()+1, minutes/60, minutes%60, 0, 0, loc)
	}
	d := target.Sub(now)
	if g.MaxWait > 0 && d > g.MaxWait {
		return 0, "next opening is " + d.Round(time.Second).String() + " away, beyond max wait"
	}
	return d, ""
}

// Wait blocks until the opening instant. Only ctx cancellation returns an error.
func (g Gate) Wait(ctx context.Context) error {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	sleep := wait.Sleep
	if g.Sleep != nil {
		sleep = g.Sleep
	}

	d, reason := g.Delay(now())
	if d <= 0 {
		g.Logger.Warn().Str("zone", g.Zone).Str("at", g.At).Str("reason", reason).Msg("timing gate: proceeding immediately")
		return nil
	}
	g.Logger.Info().Str("zone", g.Zone).Str("at", g.At).Dur("wait", d).Msg("timing gate: waiting for booking window")
	return sleep(ctx, d)
}
