package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/teetime-scheduler/internal/config"
	"github.com/example/teetime-scheduler/internal/db"
	"github.com/example/teetime-scheduler/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit   int
		details bool
	)
	c := &cobra.Command{
		Use:   "history",
		Short: "List recent runs recorded in DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			repo := history.NewRepo(d)
			runs, err := repo.Recent(ctx, limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range runs {
				fmt.Fprintf(w, "run=%s finished=%s status=%s due=%d processed=%d simulation=%t took=%s\n",
					r.ID, r.FinishedAt.Format(time.RFC3339), r.Status, r.DueCount, r.ProcessedCount, r.Simulation,
					r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
				if !details {
					continue
				}
				entries, err := repo.Entries(ctx, r.ID)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(w, "  id=%s play_date=%s status=%s attempts=%d booked=%s confirmation=%s reason=%q\n",
						e.RequestID, e.PlayDate, e.Status, e.Attempts, e.BookedTime, e.ConfirmationNumber, e.FailureReason)
				}
			}
			return nil
		},
	}
	c.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	c.Flags().BoolVar(&details, "details", false, "show per-request outcomes")
	return c
}
