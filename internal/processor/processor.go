package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/teetime-scheduler/internal/capture"
	"github.com/example/teetime-scheduler/internal/domain/booking"
	"github.com/example/teetime-scheduler/internal/slots"
	"github.com/example/teetime-scheduler/internal/wait"
)

// Processor runs the booking state machine for single requests on an open workflow.
type Processor struct {
	Finder    slots.Finder
	Retry     RetryPolicy
	Members   []string
	DateLabel string // time layout of the date control label

	ReadyTimeout time.Duration
	ReadyPoll    time.Duration
	SettleDelay  time.Duration

	Capture capture.Recorder
	Sleep   func(ctx context.Context, d time.Duration) error
	Logger  zerolog.Logger
}

type target struct {
	day        booking.Day
	start, end int
}

// Process books req on wf and returns the final outcome. It never returns an error: every
// failure is expressed as a failed or error outcome. req itself is not modified.
func (p *Processor) Process(ctx context.Context, wf booking.Workflow, req *booking.Request) booking.Outcome {
	log := p.Logger.With().Str("request_id", req.ID).Str("play_date", req.PlayDate).Logger()

	tg, err := p.resolve(req)
	if err != nil {
		log.Error().Err(err).Msg("invalid request")
		return booking.Outcome{Status: booking.StatusError, FailureReason: "invalid request: " + err.Error()}
	}

	var out booking.Outcome
	limit := p.Retry.attempts()
	for attempt := 1; attempt <= limit; attempt++ {
		out = p.attempt(ctx, wf, req.ID, tg, log)
		out.Attempts = attempt
		if out.Status == booking.StatusSuccess {
			log.Info().Int("attempt", attempt).Str("time", out.BookedTime).Str("confirmation", out.ConfirmationNumber).Msg("booked")
			return out
		}
		log.Warn().Int("attempt", attempt).Int("max_attempts", limit).Str("status", string(out.Status)).
			Str("reason", out.FailureReason).Msg("attempt did not book")
		if attempt == limit || ctx.Err() != nil {
			break
		}
		if err := p.sleep(ctx, p.Retry.NextDelay(attempt)); err != nil {
			break
		}
	}
	return out
}

func (p *Processor) resolve(req *booking.Request) (target, error) {
	play, err := req.Play()
	if err != nil {
		return target{}, err
	}
	start, end, err := req.TimeRange.Minutes()
	if err != nil {
		return target{}, err
	}
	layout := p.DateLabel
	if layout == "" {
		layout = "Mon Jan 2"
	}
	return target{day: booking.Day{Date: play, Label: play.Format(layout)}, start: start, end: end}, nil
}

func (p *Processor) attempt(ctx context.Context, wf booking.Workflow, id string, tg target, log zerolog.Logger) booking.Outcome {
	fail := func(event string, err error) booking.Outcome {
		p.Capture.Failure(ctx, wf, id, event)
		return booking.Outcome{Status: booking.StatusError, FailureReason: err.Error()}
	}

	if err := wf.NavigateToBooking(ctx); err != nil {
		return fail("navigate", fmt.Errorf("open booking page: %w", err))
	}

	ok, err := wf.SelectDate(ctx, tg.day)
	if err != nil {
		return fail("select-date", fmt.Errorf("select date %s: %w", tg.day.Label, err))
	}
	if !ok {
		p.Capture.Failure(ctx, wf, id, "date-unavailable")
		return booking.Outcome{
			Status:        booking.StatusFailed,
			FailureReason: fmt.Sprintf("date %s was not selectable on the booking page (likely outside the booking horizon)", tg.day.Label),
		}
	}

	err = wait.Until(ctx, p.ReadyPoll, p.readyTimeout(), func(ctx context.Context) (bool, error) {
		return wf.DateLoaded(ctx, tg.day)
	})
	if err != nil {
		if errors.Is(err, wait.ErrTimeout) {
			err = fmt.Errorf("tee sheet for %s did not load: %w", tg.day.Label, err)
		}
		return fail("sheet-timeout", err)
	}
	if err := p.sleep(ctx, p.SettleDelay); err != nil {
		return fail("settle", err)
	}

	html, err := wf.RenderedSheet(ctx)
	if err != nil {
		return fail("sheet", fmt.Errorf("read tee sheet: %w", err))
	}
	found, err := p.Finder.Find(html, tg.start, tg.end)
	if err != nil {
		return fail("sheet", err)
	}
	slot, ok := booking.ChooseSlot(found)
	if !ok {
		p.Capture.Failure(ctx, wf, id, "no-slots")
		return booking.Outcome{
			Status: booking.StatusFailed,
			FailureReason: fmt.Sprintf("no qualifying times in range %s-%s on %s",
				booking.FormatClock(tg.start), booking.FormatClock(tg.end), tg.day.Label),
		}
	}
	log.Debug().Str("slot", slot.Time).Int("candidates", len(found)).Msg("slot chosen")

	ok, err = wf.SelectSlot(ctx, slot)
	if err != nil {
		return fail("select-slot", fmt.Errorf("select %s: %w", slot.Time, err))
	}
	if !ok {
		return fail("select-slot", fmt.Errorf("tee time %s could not be selected", slot.Time))
	}
	conf, err := wf.Confirm(ctx, p.Members)
	if err != nil {
		return fail("confirm", fmt.Errorf("confirm %s: %w", slot.Time, err))
	}

	p.Capture.Success(ctx, wf, id)
	return booking.Outcome{Status: booking.StatusSuccess, BookedTime: slot.Time, ConfirmationNumber: conf.Number}
}

func (p *Processor) readyTimeout() time.Duration {
	if p.ReadyTimeout <= 0 {
		return 20 * time.Second
	}
	return p.ReadyTimeout
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return wait.Sleep(ctx, d)
}
