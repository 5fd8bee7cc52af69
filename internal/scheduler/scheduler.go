package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/example/teetime-scheduler/internal/config"
	"github.com/example/teetime-scheduler/internal/domain/booking"
	"github.com/example/teetime-scheduler/internal/eligibility"
	"github.com/example/teetime-scheduler/internal/history"
	"github.com/example/teetime-scheduler/internal/lock"
	"github.com/example/teetime-scheduler/internal/metrics"
	"github.com/example/teetime-scheduler/internal/queue"
	"github.com/example/teetime-scheduler/internal/report"
	"github.com/example/teetime-scheduler/internal/session"
)

const lockName = "queue"

type Processor interface {
	Process(ctx context.Context, wf booking.Workflow, req *booking.Request) booking.Outcome
}

type Gate interface {
	Wait(ctx context.Context) error
}

// Scheduler runs one pass over the queue: due requests are booked in fixed-size batches and the
// document is saved once at the end.
type Scheduler struct {
	Store     *queue.Store
	Filter    eligibility.Filter
	Opener    session.Opener
	Processor Processor
	Creds     booking.Credentials

	BatchSize int
	// Gate, when set, is waited on once per session before its first request.
	Gate    Gate
	Limiter *rate.Limiter

	TestDate   string
	Location   *time.Location
	Simulation bool

	Locker lock.Locker
	// LockRefresh is how often the held run lock is renewed; defaults to ten minutes.
	LockRefresh time.Duration
	History     history.Recorder

	Now    func() time.Time
	Logger zerolog.Logger
}

type Result struct {
	RunID          string
	Today          time.Time
	Attempted      int
	ProcessedCount int // successes only
	Status         string
	NothingToDo    bool
	Lines          []string
}

func (r *Result) Summary() string { return strings.Join(r.Lines, "\n") }

func (r *Result) Outputs() report.Outputs {
	return report.Outputs{ProcessedCount: r.ProcessedCount, Status: r.Status, Results: r.Summary()}
}

// Run returns an error only for failures outside a single request; the queue is not saved then.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	started := s.now()
	res := &Result{RunID: uuid.NewString(), Status: report.StatusSuccess}
	log := s.Logger.With().Str("run_id", res.RunID).Logger()

	locker := s.Locker
	if locker == nil {
		locker = lock.Nop{}
	}
	token, err := locker.Acquire(ctx, lockName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := locker.Release(context.WithoutCancel(ctx), lockName, token); err != nil {
			log.Warn().Err(err).Msg("release run lock")
		}
	}()
	every := s.LockRefresh
	if every <= 0 {
		every = 10 * time.Minute
	}
	stopRefresh := lock.Keep(ctx, locker, lockName, token, every, log)
	defer stopRefresh()

	snap, err := s.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	today, err := eligibility.Today(s.TestDate, started, s.Location)
	if err != nil {
		return nil, fmt.Errorf("resolve today: %w", err)
	}
	res.Today = today

	due := s.Filter.Due(snap.Queue, today)
	log.Info().Str("today", today.Format(booking.DateLayout)).Int("due", len(due)).
		Int("pending", len(snap.Queue.BookingRequests)).Bool("simulation", s.Simulation).Msg("queue filtered")
	if len(due) == 0 {
		res.NothingToDo = true
		res.Lines = []string{"No booking requests due for " + today.Format(booking.DateLayout)}
		s.finish(ctx, log, res, started, nil, nil, len(snap.Queue.BookingRequests))
		return res, nil
	}

	if s.Creds.Empty() {
		return nil, config.ErrMissingCredentials
	}

	outcomes := make([]booking.Outcome, len(due))
	size := s.BatchSize
	if size < 1 {
		size = 1
	}
	for from := 0; from < len(due); from += size {
		to := min(from+size, len(due))
		log.Info().Int("batch", from/size+1).Int("requests", to-from).Msg("batch started")
		if err := s.runBatch(ctx, log, due[from:to], outcomes[from:to]); err != nil {
			return nil, err
		}
	}

	resolvedAt := s.now()
	for i, req := range due {
		if err := req.Resolve(outcomes[i], resolvedAt); err != nil {
			return nil, err
		}
	}
	snap.Queue.Commit(due, resolvedAt)
	if err := s.Store.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save queue: %w", err)
	}

	res.Attempted = len(due)
	for i, req := range due {
		if outcomes[i].Status == booking.StatusSuccess {
			res.ProcessedCount++
		}
		res.Lines = append(res.Lines, report.Line(req, outcomes[i]))
	}
	if res.ProcessedCount < res.Attempted {
		res.Status = report.StatusFailure
	}
	s.finish(ctx, log, res, started, due, outcomes, len(snap.Queue.BookingRequests))
	return res, nil
}

// runBatch gives every worker its own session and a round-robin share of batch.
// out[i] receives the outcome for batch[i].
func (s *Scheduler) runBatch(ctx context.Context, log zerolog.Logger, batch []*booking.Request, out []booking.Outcome) error {
	workers := min(max(s.BatchSize, 1), len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			wlog := log.With().Int("worker", w).Logger()
			sess, err := session.Start(gctx, s.Opener, s.Creds, s.Limiter, wlog)
			if err != nil {
				return fmt.Errorf("worker %d: start session: %w", w, err)
			}
			defer func() {
				cctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 15*time.Second)
				defer cancel()
				sess.Close(cctx)
			}()

			if s.Gate != nil {
				if err := s.Gate.Wait(gctx); err != nil {
					return err
				}
			}
			for i := w; i < len(batch); i += workers {
				out[i] = s.Processor.Process(gctx, sess.Workflow(), batch[i])
				if err := gctx.Err(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Scheduler) finish(ctx context.Context, log zerolog.Logger, res *Result, started time.Time, due []*booking.Request, outcomes []booking.Outcome, pendingLeft int) {
	finished := s.now()
	for _, o := range outcomes {
		metrics.ObserveOutcome(o)
	}
	metrics.ObserveRun(res.Status, started, finished, pendingLeft)

	if s.History != nil {
		run := history.Run{
			ID:             res.RunID,
			StartedAt:      started,
			FinishedAt:     finished,
			Status:         res.Status,
			DueCount:       len(due),
			ProcessedCount: res.ProcessedCount,
			Simulation:     s.Simulation,
		}
		for i, req := range due {
			run.Entries = append(run.Entries, history.EntryFor(req, outcomes[i]))
		}
		if err := s.History.Record(context.WithoutCancel(ctx), run); err != nil {
			log.Error().Err(err).Msg("record run history")
		}
	}
	log.Info().Str("status", res.Status).Int("processed_count", res.ProcessedCount).Int("attempted", res.Attempted).
		Dur("took", finished.Sub(started)).Msg("run finished")
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
