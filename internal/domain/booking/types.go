package booking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
)

// Terminal reports whether no further processing happens for s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusError
}

const (
	DateLayout   = "2006-01-02"
	ClockLayout  = "15:04"
	StampLayout  = time.RFC3339
	minutesOfDay = 24 * 60
)

var ErrAlreadyResolved = errors.New("request already resolved")

// TimeRange is the requested tee-time window in "HH:MM" (24h) form, both ends inclusive.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`

	// raw keeps a non-canonical value (null, integer hours) so it is written back untouched.
	raw   json.RawMessage
	extra map[string]json.RawMessage
}

type timeRangeFields struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (r *TimeRange) UnmarshalJSON(b []byte) error {
	var v timeRangeFields
	if string(bytes.TrimSpace(b)) == "null" || json.Unmarshal(b, &v) != nil {
		*r = TimeRange{raw: append(json.RawMessage(nil), b...)}
		return nil
	}
	extra, err := unknownFields(b, []string{"start", "end"})
	if err != nil {
		return err
	}
	*r = TimeRange{Start: v.Start, End: v.End, extra: extra}
	return nil
}

func (r TimeRange) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return withExtra(timeRangeFields{r.Start, r.End}, r.extra)
}

func (r TimeRange) String() string {
	if len(r.raw) > 0 {
		return string(r.raw)
	}
	return r.Start + "-" + r.End
}

// Minutes returns the window as minutes after midnight.
func (r TimeRange) Minutes() (start, end int, err error) {
	if len(r.raw) > 0 {
		return 0, 0, fmt.Errorf("timeRange %s: start and end must be HH:MM strings", string(r.raw))
	}
	if start, err = ParseClock(r.Start); err != nil {
		return 0, 0, fmt.Errorf("timeRange start: %w", err)
	}
	if end, err = ParseClock(r.End); err != nil {
		return 0, 0, fmt.Errorf("timeRange end: %w", err)
	}
	if end < start {
		return 0, 0, fmt.Errorf("timeRange %s ends before it starts", r)
	}
	return start, end, nil
}

// ParseClock converts a strict "HH:MM" string to minutes after midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	m := t.Hour()*60 + t.Minute()
	if m < 0 || m >= minutesOfDay {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return m, nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Request is one queued ask for a tee time.
type Request struct {
	ID          string    `json:"id"`
	RequestDate string    `json:"requestDate,omitempty"`
	PlayDate    string    `json:"playDate"`
	TimeRange   TimeRange `json:"timeRange"`
	Status      Status    `json:"status"`
	RequestedBy string    `json:"requestedBy,omitempty"`

	ProcessedDate      string `json:"processedDate,omitempty"`
	BookedTime         string `json:"bookedTime,omitempty"`
	ConfirmationNumber string `json:"confirmationNumber,omitempty"`
	FailureReason      string `json:"failureReason,omitempty"`

	extra map[string]json.RawMessage
}

type requestFields Request

var requestKeys = []string{
	"id", "requestDate", "playDate", "timeRange", "status", "requestedBy",
	"processedDate", "bookedTime", "confirmationNumber", "failureReason",
}

func (r *Request) UnmarshalJSON(b []byte) error {
	var f requestFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	extra, err := unknownFields(b, requestKeys)
	if err != nil {
		return err
	}
	*r = Request(f)
	r.extra = extra
	return nil
}

func (r Request) MarshalJSON() ([]byte, error) {
	return withExtra(requestFields(r), r.extra)
}

// Play parses PlayDate as a civil date.
func (r *Request) Play() (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(r.PlayDate))
	if err != nil {
		return time.Time{}, fmt.Errorf("playDate %q is not YYYY-MM-DD", r.PlayDate)
	}
	return d, nil
}

// Resolve records the outcome of processing. Status and outcome fields change together, once.
func (r *Request) Resolve(o Outcome, now time.Time) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%s: %w", r.ID, ErrAlreadyResolved)
	}
	if !o.Status.Terminal() {
		return fmt.Errorf("%s: outcome status %q is not terminal", r.ID, o.Status)
	}
	r.Status = o.Status
	r.ProcessedDate = now.UTC().Format(StampLayout)
	r.BookedTime = o.BookedTime
	r.ConfirmationNumber = o.ConfirmationNumber
	r.FailureReason = o.FailureReason
	return nil
}

// Queue is the whole persisted document.
type Queue struct {
	BookingRequests   []*Request `json:"bookingRequests"`
	ProcessedRequests []*Request `json:"processedRequests"`

	extra map[string]json.RawMessage
}

type queueFields Queue

func (q *Queue) UnmarshalJSON(b []byte) error {
	var f queueFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	extra, err := unknownFields(b, []string{"bookingRequests", "processedRequests"})
	if err != nil {
		return err
	}
	if err := noNulls("bookingRequests", f.BookingRequests); err != nil {
		return err
	}
	if err := noNulls("processedRequests", f.ProcessedRequests); err != nil {
		return err
	}
	*q = Queue(f)
	q.extra = extra
	return nil
}

func noNulls(list string, rs []*Request) error {
	for i, r := range rs {
		if r == nil {
			return fmt.Errorf("%s[%d] is null", list, i)
		}
	}
	return nil
}

func (q Queue) MarshalJSON() ([]byte, error) {
	f := queueFields(q)
	if f.BookingRequests == nil {
		f.BookingRequests = []*Request{}
	}
	if f.ProcessedRequests == nil {
		f.ProcessedRequests = []*Request{}
	}
	return withExtra(f, q.extra)
}

// Find returns the request with id and whether it is still pending.
func (q *Queue) Find(id string) (req *Request, pending bool) {
	for _, r := range q.BookingRequests {
		if r.ID == id {
			return r, true
		}
	}
	for _, r := range q.ProcessedRequests {
		if r.ID == id {
			return r, false
		}
	}
	return nil, false
}

// Commit moves the resolved requests of a run out of the pending list. resolved is prepended to the
// processed list in the given order; other non-pending leftovers follow it unless already processed,
// stamped with now when they carry no processedDate.
func (q *Queue) Commit(resolved []*Request, now time.Time) {
	moved := make(map[string]bool, len(resolved))
	for _, r := range resolved {
		moved[r.ID] = true
	}
	known := make(map[string]bool, len(q.ProcessedRequests))
	for _, r := range q.ProcessedRequests {
		known[r.ID] = true
	}

	pending := make([]*Request, 0, len(q.BookingRequests))
	var leftovers []*Request
	for _, r := range q.BookingRequests {
		switch {
		case moved[r.ID]:
		case r.Status == StatusPending:
			pending = append(pending, r)
		case !known[r.ID]:
			if r.ProcessedDate == "" {
				r.ProcessedDate = now.UTC().Format(StampLayout)
			}
			leftovers = append(leftovers, r)
		}
	}

	processed := make([]*Request, 0, len(resolved)+len(leftovers)+len(q.ProcessedRequests))
	processed = append(processed, resolved...)
	processed = append(processed, leftovers...)
	for _, r := range q.ProcessedRequests {
		if !moved[r.ID] {
			processed = append(processed, r)
		}
	}
	q.BookingRequests = pending
	q.ProcessedRequests = processed
}

func unknownFields(b []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func withExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = raw
		}
	}
	return json.Marshal(merged)
}
