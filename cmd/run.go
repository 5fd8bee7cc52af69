package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/example/teetime-scheduler/internal/browser"
	"github.com/example/teetime-scheduler/internal/capture"
	"github.com/example/teetime-scheduler/internal/config"
	"github.com/example/teetime-scheduler/internal/db"
	"github.com/example/teetime-scheduler/internal/eligibility"
	"github.com/example/teetime-scheduler/internal/history"
	"github.com/example/teetime-scheduler/internal/lock"
	"github.com/example/teetime-scheduler/internal/logging"
	"github.com/example/teetime-scheduler/internal/metrics"
	"github.com/example/teetime-scheduler/internal/migrate"
	"github.com/example/teetime-scheduler/internal/processor"
	"github.com/example/teetime-scheduler/internal/queue"
	"github.com/example/teetime-scheduler/internal/scheduler"
	"github.com/example/teetime-scheduler/internal/session"
	"github.com/example/teetime-scheduler/internal/simulate"
	"github.com/example/teetime-scheduler/internal/slots"
	"github.com/example/teetime-scheduler/internal/timing"
)

func newRunCmd() *cobra.Command {
	var (
		queueFile string
		today     string
		simulated bool
		scheduled bool
		migrateUp bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Book every due request in the queue once, then save the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("queue") {
				cfg.QueueFile = queueFile
			}
			if flags.Changed("today") {
				cfg.TestDate = today
			}
			if flags.Changed("simulate") {
				cfg.Simulation = simulated
			}
			if flags.Changed("scheduled") {
				cfg.ScheduledRun = scheduled
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, closer, err := logging.New(cfg.Logging, Version)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			s, cleanup, err := buildScheduler(ctx, cfg, migrateUp, log)
			if err != nil {
				log.Error().Err(err).Msg("setup failed")
				return err
			}
			defer cleanup()

			res, err := s.Run(ctx)
			if err != nil {
				log.Error().Err(err).Msg("run failed, queue not saved")
				return err
			}

			out := res.Outputs()
			if err := out.Print(cmd.OutOrStdout()); err != nil {
				return err
			}
			if err := out.AppendFile(cfg.OutputFile); err != nil {
				log.Warn().Err(err).Str("path", cfg.OutputFile).Msg("write run outputs")
			}
			if cfg.MetricsFile != "" {
				if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
					log.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("write metrics")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&queueFile, "queue", "", "queue document path (overrides QUEUE_FILE)")
	cmd.Flags().StringVar(&today, "today", "", "treat this YYYY-MM-DD as today (overrides TEST_DATE)")
	cmd.Flags().BoolVar(&simulated, "simulate", false, "use the simulated booking site (overrides SIMULATION_MODE)")
	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "wait for the booking window to open (overrides SCHEDULED_RUN)")
	cmd.Flags().BoolVar(&migrateUp, "migrate", false, "apply history migrations before running (needs DATABASE_URL)")
	return cmd
}

// buildScheduler wires the configured collaborators. cleanup releases connections.
func buildScheduler(ctx context.Context, cfg config.Config, migrateUp bool, log zerolog.Logger) (*scheduler.Scheduler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("unknown timezone, using UTC for today")
		loc = time.UTC
	}

	var opener session.Opener = browser.New(cfg, log)
	markup := slots.Markup{Item: cfg.Site.SlotItem, Time: cfg.Site.SlotTime, Size: cfg.Site.SlotSize, IDAttr: cfg.Site.SlotIDAttr}
	if cfg.Simulation {
		opener = simulate.Opener{}
		markup = simulate.Markup
		log.Info().Msg("simulation mode: no browser will be started")
	}

	s := &scheduler.Scheduler{
		Store:  queue.NewStore(cfg.QueueFile, log),
		Filter: eligibility.Filter{Policy: cfg.Policy, LeadDays: cfg.LeadDays, GraceDays: cfg.GraceDays},
		Opener: opener,
		Processor: &processor.Processor{
			Finder:       slots.Finder{Markup: markup, PartySize: cfg.PartySize},
			Retry:        processor.RetryPolicy{MaxAttempts: cfg.MaxAttempts, Delay: cfg.RetryDelay, BackoffFactor: 1},
			Members:      cfg.PartyMembers,
			DateLabel:    cfg.Site.DateLabel,
			ReadyTimeout: cfg.ReadyTimeout,
			ReadyPoll:    cfg.ReadyPoll,
			SettleDelay:  cfg.SettleDelay,
			Capture: capture.Recorder{
				Dir:       cfg.Logging.Dir,
				Enabled:   cfg.Screenshots,
				OnSuccess: cfg.ScreenshotOnSuccess,
				Logger:    log,
			},
			Logger: log.With().Str("component", "processor").Logger(),
		},
		Creds:      cfg.Credentials(),
		BatchSize:  cfg.BatchSize,
		TestDate:   cfg.TestDate,
		Location:   loc,
		Simulation: cfg.Simulation,
		Locker:     lock.Nop{},
		History:    history.Nop{},
		Logger:     log.With().Str("component", "scheduler").Logger(),
	}
	if cfg.LoginInterval > 0 {
		s.Limiter = rate.NewLimiter(rate.Every(cfg.LoginInterval), 1)
	}
	if cfg.ScheduledRun {
		s.Gate = timing.Gate{
			Zone:          cfg.Timezone,
			At:            cfg.GateTime,
			LateTolerance: cfg.GateLateTolerance,
			MaxWait:       cfg.GateMaxWait,
			Logger:        log.With().Str("component", "timing").Logger(),
		}
	}
	metrics.Register()

	if cfg.RedisAddr != "" {
		client := lock.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		closers = append(closers, func() { _ = client.Close() })
		if err := lock.Ping(ctx, client); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		l := lock.NewRedis(client, cfg.LockTTL)
		s.Locker = l
		s.LockRefresh = l.RefreshEvery()
	}

	if cfg.DatabaseURL != "" {
		d, err := openHistory(ctx, cfg.DatabaseURL, migrateUp)
		if err != nil {
			log.Warn().Err(err).Msg("run history disabled")
		} else {
			closers = append(closers, d.Close)
			s.History = history.NewRepo(d)
		}
	}

	return s, cleanup, nil
}

func openHistory(ctx context.Context, url string, migrateUp bool) (*db.DB, error) {
	d, err := db.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		if _, err := migrate.Up(ctx, d); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}
