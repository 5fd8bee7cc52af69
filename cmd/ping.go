package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/teetime-scheduler/internal/browser"
	"github.com/example/teetime-scheduler/internal/config"
	"github.com/example/teetime-scheduler/internal/logging"
	"github.com/example/teetime-scheduler/internal/session"
	"github.com/example/teetime-scheduler/internal/simulate"
)

func newPingCmd() *cobra.Command {
	var simulated bool
	c := &cobra.Command{
		Use:   "ping",
		Short: "Log in to the booking site, open the booking page and log out",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("simulate") {
				cfg.Simulation = simulated
			}
			if err := cfg.RequireCredentials(); err != nil {
				return err
			}
			log, closer, err := logging.New(cfg.Logging, Version)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			var opener session.Opener = browser.New(cfg, log)
			if cfg.Simulation {
				opener = simulate.Opener{}
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.NavTimeout+10*time.Second)
			defer cancel()

			sess, err := session.Start(ctx, opener, cfg.Credentials(), nil, log)
			if err != nil {
				return err
			}
			sess.Close(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", browser.URL(cfg.Site.BaseURL, cfg.Site.BookingPath))
			return nil
		},
	}
	c.Flags().BoolVar(&simulated, "simulate", false, "check against the simulated site")
	return c
}
