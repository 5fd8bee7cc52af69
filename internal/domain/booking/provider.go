package booking

import (
	"context"
	"time"
)

type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// Day is a play date together with the label the booking surface shows for it.
type Day struct {
	Date  time.Time
	Label string
}

func (d Day) ISO() string { return d.Date.Format(DateLayout) }

// Slot is one bookable tee time found on the rendered sheet.
type Slot struct {
	Time    string // HH:MM
	Minutes int
	// Ref locates the slot element on the sheet; Index is the fallback when the sheet has no stable id.
	Ref   string
	Index int
}

type Confirmation struct {
	Number string
}

// Outcome is the result of processing one request.
type Outcome struct {
	Status             Status
	BookedTime         string
	ConfirmationNumber string
	FailureReason      string
	Attempts           int
}

// Workflow drives one authenticated automation context against the booking site.
// Implementations are not safe for concurrent use; each worker owns its own.
type Workflow interface {
	Login(ctx context.Context, creds Credentials) error
	NavigateToBooking(ctx context.Context) error
	// SelectDate reports false when the surface does not expose the date.
	SelectDate(ctx context.Context, day Day) (bool, error)
	DateLoaded(ctx context.Context, day Day) (bool, error)
	// RenderedSheet returns the current tee sheet markup.
	RenderedSheet(ctx context.Context) (string, error)
	SelectSlot(ctx context.Context, slot Slot) (bool, error)
	Confirm(ctx context.Context, members []string) (Confirmation, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Logout(ctx context.Context) error
	Close() error
}
