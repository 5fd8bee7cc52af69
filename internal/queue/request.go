package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/teetime-scheduler/internal/domain/booking"
)

// Submission is what the submission surface collects for one request.
type Submission struct {
	PlayDate    string
	Start       string
	End         string
	RequestedBy string
}

func (s Submission) Validate() error {
	if _, err := time.Parse(booking.DateLayout, s.PlayDate); err != nil {
		return fmt.Errorf("play date %q is not YYYY-MM-DD", s.PlayDate)
	}
	if _, _, err := (booking.TimeRange{Start: s.Start, End: s.End}).Minutes(); err != nil {
		return err
	}
	return nil
}

// NewRequest builds a pending request with a date-derived id and a random suffix.
func NewRequest(s Submission, now time.Time) (*booking.Request, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	by := strings.TrimSpace(s.RequestedBy)
	if by == "" {
		by = "cli"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return &booking.Request{
		ID:          now.UTC().Format("20060102") + "-" + suffix,
		RequestDate: now.UTC().Format(booking.StampLayout),
		PlayDate:    s.PlayDate,
		TimeRange:   booking.TimeRange{Start: s.Start, End: s.End},
		Status:      booking.StatusPending,
		RequestedBy: by,
	}, nil
}
