// Package eligibility decides which pending requests a run should attempt.
package eligibility

import (
	"time"

	"github.com/example/teetime-scheduler/internal/domain/booking"
)

const (
	PolicySimple   = "simple"
	PolicyWindowed = "windowed"
)

// Filter selects due requests.
//
// simple:   pending and playDate == today.
// windowed: pending and (playDate == today+LeadDays or today <= playDate <= today+GraceDays).
// LeadDays is the booking horizon: a date is attempted the day it becomes bookable. The grace
// window catches up on requests a previous run missed.
type Filter struct {
	Policy    string
	LeadDays  int
	GraceDays int
}

// Due returns the pending requests to process, in queue order. A pending request whose playDate
// does not parse is due so that it gets resolved to an error instead of lingering.
func (f Filter) Due(q *booking.Queue, today time.Time) []*booking.Request {
	today = civil(today)
	var out []*booking.Request
	for _, r := range q.BookingRequests {
		if r.Status != booking.StatusPending {
			continue
		}
		play, err := r.Play()
		if err != nil || f.match(play, today) {
			out = append(out, r)
		}
	}
	return out
}

func (f Filter) match(play, today time.Time) bool {
	if f.Policy == PolicySimple {
		return play.Equal(today)
	}
	if play.Equal(today.AddDate(0, 0, f.LeadDays)) {
		return true
	}
	return !play.Before(today) && !play.After(today.AddDate(0, 0, f.GraceDays))
}

// Today resolves the reference date: override when set (YYYY-MM-DD), else now in loc.
func Today(override string, now time.Time, loc *time.Location) (time.Time, error) {
	if override != "" {
		return time.Parse(booking.DateLayout, override)
	}
	if loc == nil {
		loc = time.UTC
	}
	return civil(now.In(loc)), nil
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
