// Package report renders run results for people and for the CI step that launched the run.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/example/teetime-scheduler/internal/domain/booking"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Line is the one-line summary of a request outcome.
func Line(req *booking.Request, o booking.Outcome) string {
	head := fmt.Sprintf("%s %s (%s %s)", icon(o.Status), req.ID, req.PlayDate, req.TimeRange)
	switch o.Status {
	case booking.StatusSuccess:
		s := head + ": booked " + o.BookedTime
		if o.ConfirmationNumber != "" {
			s += ", confirmation " + o.ConfirmationNumber
		}
		return s
	case booking.StatusFailed:
		return head + ": not booked: " + o.FailureReason
	default:
		return head + ": error: " + o.FailureReason
	}
}

func icon(s booking.Status) string {
	switch s {
	case booking.StatusSuccess:
		return "✅"
	case booking.StatusFailed:
		return "❌"
	default:
		return "⚠️"
	}
}

// Outputs are the values a run hands back to its caller.
type Outputs struct {
	ProcessedCount int
	Status         string
	Results        string
}

// Print writes the outputs in human-readable form.
func (o Outputs) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "processed_count=%d\nbooking_status=%s\nresults:\n%s\n", o.ProcessedCount, o.Status, o.Results)
	return err
}

// Encode renders the outputs in GitHub Actions step-output syntax. results is multi-line, so it
// uses a heredoc with a random delimiter that cannot collide with the content.
func (o Outputs) Encode() string {
	delim := "EOF_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	for strings.Contains(o.Results, delim) {
		delim = "EOF_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	var b strings.Builder
	b.WriteString("processed_count=" + strconv.Itoa(o.ProcessedCount) + "\n")
	b.WriteString("booking_status=" + o.Status + "\n")
	b.WriteString("results<<" + delim + "\n")
	b.WriteString(o.Results)
	if o.Results != "" && !strings.HasSuffix(o.Results, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(delim + "\n")
	return b.String()
}

// AppendFile appends the encoded outputs to path. An empty path is a no-op.
func (o Outputs) AppendFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	if _, err := f.WriteString(o.Encode()); err != nil {
		f.Close()
		return fmt.Errorf("write output file: %w", err)
	}
	return f.Close()
}
