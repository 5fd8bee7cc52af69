package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/example/teetime-scheduler/internal/config"
	"github.com/example/teetime-scheduler/internal/domain/booking"
)

// Opener creates a fresh, isolated automation context.
type Opener interface {
	Open(ctx context.Context) (booking.Workflow, error)
}

// Session is an authenticated workflow parked on the booking surface.
type Session struct {
	wf  booking.Workflow
	log zerolog.Logger
}

// Start opens a workflow, logs in and navigates to the booking page once.
// limiter may be nil.
func Start(ctx context.Context, opener Opener, creds booking.Credentials, limiter *rate.Limiter, log zerolog.Logger) (*Session, error) {
	if creds.Empty() {
		return nil, config.ErrMissingCredentials
	}
	if opener == nil {
		return nil, errors.New("session opener is nil")
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for login slot: %w", err)
		}
	}

	wf, err := opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open automation context: %w", err)
	}
	if err := wf.Login(ctx, creds); err != nil {
		_ = wf.Close()
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := wf.NavigateToBooking(ctx); err != nil {
		_ = wf.Logout(ctx)
		_ = wf.Close()
		return nil, fmt.Errorf("navigate to booking: %w", err)
	}
	log.Info().Str("user", creds.Username).Msg("session started")
	return &Session{wf: wf, log: log}, nil
}

func (s *Session) Workflow() booking.Workflow { return s.wf }

// Close logs out and releases the automation context. Safe to call more than once.
func (s *Session) Close(ctx context.Context) {
	if s == nil || s.wf == nil {
		return
	}
	if err := s.wf.Logout(ctx); err != nil {
		s.log.Warn().Err(err).Msg("logout failed")
	}
	if err := s.wf.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close automation context failed")
	}
	s.wf = nil
	s.log.Info().Msg("session closed")
}
