package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/example/teetime-scheduler/internal/config"
	"github.com/example/teetime-scheduler/internal/domain/booking"
	"github.com/example/teetime-scheduler/internal/logging"
	"github.com/example/teetime-scheduler/internal/queue"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Submit, list and withdraw booking requests",
	}
	cmd.PersistentFlags().String("queue", "", "queue document path (overrides QUEUE_FILE)")
	cmd.AddCommand(newQueueAddCmd())
	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueueDeleteCmd())
	return cmd
}

// openStore loads config and returns the queue store it points at.
func openStore(cmd *cobra.Command) (*queue.Store, func(), error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	if path, _ := cmd.Flags().GetString("queue"); path != "" {
		cfg.QueueFile = path
	}
	log, closer, err := logging.New(cfg.Logging, Version)
	if err != nil {
		return nil, nil, err
	}
	done := func() {
		if closer != nil {
			_ = closer.Close()
		}
	}
	return queue.NewStore(cfg.QueueFile, log.Level(max(log.GetLevel(), zerolog.WarnLevel))), done, nil
}

func newQueueAddCmd() *cobra.Command {
	var sub queue.Submission

	c := &cobra.Command{
		Use:   "add",
		Short: "Queue a tee-time request",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, done, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer done()

			req, err := queue.NewRequest(sub, time.Now())
			if err != nil {
				return err
			}
			if err := store.Add(context.Background(), req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued id=%s play_date=%s range=%s\n", req.ID, req.PlayDate, req.TimeRange)
			return nil
		},
	}

	c.Flags().StringVar(&sub.PlayDate, "play-date", "", "date to play YYYY-MM-DD")
	c.Flags().StringVar(&sub.Start, "start", "", "earliest tee time HH:MM")
	c.Flags().StringVar(&sub.End, "end", "", "latest tee time HH:MM")
	c.Flags().StringVar(&sub.RequestedBy, "requested-by", "", "who asked for it")

	_ = c.MarkFlagRequired("play-date")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

func newQueueListCmd() *cobra.Command {
	var all bool
	c := &cobra.Command{
		Use:   "list",
		Short: "List pending requests (and processed ones with --all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, done, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer done()

			snap, err := store.Load(context.Background())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printRequests(w, snap.Queue.BookingRequests)
			if all {
				printRequests(w, snap.Queue.ProcessedRequests)
			}
			return nil
		},
	}
	c.Flags().BoolVar(&all, "all", false, "include processed requests")
	return c
}

func printRequests(w io.Writer, reqs []*booking.Request) {
	for _, r := range reqs {
		fmt.Fprintf(w, "id=%s play_date=%s range=%s status=%s requested_by=%q", r.ID, r.PlayDate, r.TimeRange, r.Status, r.RequestedBy)
		if r.BookedTime != "" {
			fmt.Fprintf(w, " booked=%s confirmation=%s", r.BookedTime, r.ConfirmationNumber)
		}
		if r.FailureReason != "" {
			fmt.Fprintf(w, " reason=%q", r.FailureReason)
		}
		fmt.Fprintln(w)
	}
}

func newQueueDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Withdraw a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, done, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer done()

			if err := store.Delete(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted id=%s\n", args[0])
			return nil
		},
	}
}
