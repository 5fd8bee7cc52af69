// Package history keeps an audit trail of scheduler runs in postgres.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/example/teetime-scheduler/internal/db"
	"github.com/example/teetime-scheduler/internal/domain/booking"
)

type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Status         string
	DueCount       int
	ProcessedCount int
	Simulation     bool
	Entries        []Entry
}

type Entry struct {
	RequestID          string
	PlayDate           string
	Status             booking.Status
	BookedTime         string
	ConfirmationNumber string
	FailureReason      string
	Attempts           int
}

// EntryFor flattens a resolved request and its outcome.
func EntryFor(req *booking.Request, o booking.Outcome) Entry {
	return Entry{
		RequestID:          req.ID,
		PlayDate:           req.PlayDate,
		Status:             o.Status,
		BookedTime:         o.BookedTime,
		ConfirmationNumber: o.ConfirmationNumber,
		FailureReason:      o.FailureReason,
		Attempts:           o.Attempts,
	}
}

type Recorder interface {
	Record(ctx context.Context, run Run) error
}

type Nop struct{}

func (Nop) Record(context.Context, Run) error { return nil }

// Store is the subset of *db.DB the repository uses.
type Store interface {
	db.Querier
	InTx(ctx context.Context, fn func(db.Querier) error) error
}

type Repo struct{ db Store }

func NewRepo(d Store) *Repo { return &Repo{db: d} }

func (r *Repo) Record(ctx context.Context, run Run) error {
	return r.db.InTx(ctx, func(q db.Querier) error {
		err := q.Exec(ctx, `
INSERT INTO booking_runs(id,started_at,finished_at,status,due_count,processed_count,simulation)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			run.ID, run.StartedAt, run.FinishedAt, run.Status, run.DueCount, run.ProcessedCount, run.Simulation,
		)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", run.ID, err)
		}
		for i, e := range run.Entries {
			err := q.Exec(ctx, `
INSERT INTO booking_outcomes(run_id,position,request_id,play_date,status,booked_time,confirmation_number,failure_reason,attempts)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				run.ID, i, e.RequestID, e.PlayDate, string(e.Status), nullable(e.BookedTime), nullable(e.ConfirmationNumber), nullable(e.FailureReason), e.Attempts,
			)
			if err != nil {
				return fmt.Errorf("insert outcome %s: %w", e.RequestID, err)
			}
		}
		return nil
	})
}

// Recent returns the latest runs, newest first, without their entries.
func (r *Repo) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
SELECT id,started_at,finished_at,status,due_count,processed_count,simulation
FROM booking_runs
ORDER BY finished_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.DueCount, &run.ProcessedCount, &run.Simulation); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Entries loads the outcomes of one run in processing order.
func (r *Repo) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
SELECT request_id,play_date,status,COALESCE(booked_time,''),COALESCE(confirmation_number,''),COALESCE(failure_reason,''),attempts
FROM booking_outcomes
WHERE run_id=$1
ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.RequestID, &e.PlayDate, &status, &e.BookedTime, &e.ConfirmationNumber, &e.FailureReason, &e.Attempts); err != nil {
			return nil, err
		}
		e.Status = booking.Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
