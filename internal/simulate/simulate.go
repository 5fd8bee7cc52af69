// Package simulate provides an in-memory booking site with deterministic outcomes.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/example/teetime-scheduler/internal/domain/booking"
	"github.com/example/teetime-scheduler/internal/slots"
)

// Markup matches the sheet rendered by Workflow.
var Markup = slots.Markup{Item: ".sim-slot", Time: ".sim-time", Size: ".sim-size", IDAttr: "data-id"}

const (
	interval = 10 // minutes between tee times
	maxParty = 4
)

var errNotLoggedIn = errors.New("simulated site: not logged in")

type Opener struct{}

func (Opener) Open(context.Context) (booking.Workflow, error) { return &Workflow{}, nil }

// Workflow offers every tee time from 00:00 to 23:50 for party sizes 1-4 on any date.
type Workflow struct {
	loggedIn bool
	day      *booking.Day
	slot     *booking.Slot
	closed   bool
}

func (w *Workflow) Login(_ context.Context, creds booking.Credentials) error {
	if creds.Empty() {
		return errors.New("simulated site: credentials required")
	}
	w.loggedIn = true
	return nil
}

func (w *Workflow) NavigateToBooking(context.Context) error {
	if !w.loggedIn {
		return errNotLoggedIn
	}
	w.day, w.slot = nil, nil
	return nil
}

func (w *Workflow) SelectDate(_ context.Context, d booking.Day) (bool, error) {
	if !w.loggedIn {
		return false, errNotLoggedIn
	}
	w.day = &d
	return true, nil
}

func (w *Workflow) DateLoaded(_ context.Context, d booking.Day) (bool, error) {
	return w.day != nil && w.day.ISO() == d.ISO(), nil
}

func (w *Workflow) RenderedSheet(context.Context) (string, error) {
	if w.day == nil {
		return "", errors.New("simulated site: no date selected")
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<section class="sim-sheet" data-date="%s"><h2>%s</h2>`, w.day.ISO(), html.EscapeString(w.day.Label))
	for m := 0; m < 24*60; m += interval {
		t := booking.FormatClock(m)
		fmt.Fprintf(&b, `<div class="sim-slot" data-id="%s"><span class="sim-time">%s</span>`, strings.ReplaceAll(t, ":", ""), t)
		for n := 1; n <= maxParty; n++ {
			fmt.Fprintf(&b, `<button class="sim-size" data-size="%d">%d</button>`, n, n)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</section>`)
	return b.String(), nil
}

func (w *Workflow) SelectSlot(_ context.Context, s booking.Slot) (bool, error) {
	if w.day == nil {
		return false, errors.New("simulated site: no date selected")
	}
	if s.Minutes%interval != 0 {
		return false, nil
	}
	w.slot = &s
	return true, nil
}

// Confirm returns SIM-<date>-<time>, e.g. SIM-20261114-0930.
func (w *Workflow) Confirm(_ context.Context, members []string) (booking.Confirmation, error) {
	if w.day == nil || w.slot == nil {
		return booking.Confirmation{}, errors.New("simulated site: nothing selected")
	}
	if len(members) > maxParty-1 {
		return booking.Confirmation{}, fmt.Errorf("simulated site: party of %d exceeds %d", len(members)+1, maxParty)
	}
	num := fmt.Sprintf("SIM-%s-%s", w.day.Date.Format("20060102"), strings.ReplaceAll(w.slot.Time, ":", ""))
	return booking.Confirmation{Number: num}, nil
}

// Screenshot returns an empty image; the simulated site has nothing to render.
func (w *Workflow) Screenshot(context.Context) ([]byte, error) { return []byte{}, nil }

func (w *Workflow) Logout(context.Context) error {
	w.loggedIn = false
	return nil
}

func (w *Workflow) Close() error {
	w.closed = true
	return nil
}
