package session

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/example/teetime-scheduler/internal/config"
	"github.com/example/teetime-scheduler/internal/domain/booking"
)

type fakeWorkflow struct {
	booking.Workflow // unused methods panic

	loginErr error
	navErr   error
	calls    []string
}

func (f *fakeWorkflow) Login(context.Context, booking.Credentials) error {
	f.calls = append(f.calls, "login")
	return f.loginErr
}

func (f *fakeWorkflow) NavigateToBooking(context.Context) error {
	f.calls = append(f.calls, "navigate")
	return f.navErr
}

func (f *fakeWorkflow) Logout(context.Context) error {
	f.calls = append(f.calls, "logout")
	return nil
}

func (f *fakeWorkflow) Close() error {
	f.calls = append(f.calls, "close")
	return nil
}

type fakeOpener struct {
	wf     *fakeWorkflow
	err    error
	opened int
}

func (o *fakeOpener) Open(context.Context) (booking.Workflow, error) {
	o.opened++
	if o.err != nil {
		return nil, o.err
	}
	return o.wf, nil
}

var creds = booking.Credentials{Username: "golfer", Password: "secret"}

func TestStartAndClose(t *testing.T) {
	wf := &fakeWorkflow{}
	op := &fakeOpener{wf: wf}

	s, err := Start(context.Background(), op, creds, rate.NewLimiter(rate.Inf, 1), zerolog.Nop())
	require.NoError(t, err)
	assert.Same(t, wf, s.Workflow())

	s.Close(context.Background())
	s.Close(context.Background())
	assert.Equal(t, []string{"login", "navigate", "logout", "close"}, wf.calls)
}

func TestStartMissingCredentials(t *testing.T) {
	op := &fakeOpener{wf: &fakeWorkflow{}}
	_, err := Start(context.Background(), op, booking.Credentials{Username: "golfer"}, nil, zerolog.Nop())
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.Zero(t, op.opened)
}

func TestStartLoginFailureClosesContext(t *testing.T) {
	wf := &fakeWorkflow{loginErr: errors.New("bad password")}
	_, err := Start(context.Background(), &fakeOpener{wf: wf}, creds, nil, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad password")
	assert.Equal(t, []string{"login", "close"}, wf.calls)
}

func TestStartNavigationFailureLogsOut(t *testing.T) {
	wf := &fakeWorkflow{navErr: errors.New("timeout")}
	_, err := Start(context.Background(), &fakeOpener{wf: wf}, creds, nil, zerolog.Nop())
	require.Error(t, err)
	assert.Equal(t, []string{"login", "navigate", "logout", "close"}, wf.calls)
}

func TestStartOpenFailure(t *testing.T) {
	_, err := Start(context.Background(), &fakeOpener{err: errors.New("no chrome")}, creds, nil, zerolog.Nop())
	assert.ErrorContains(t, err, "no chrome")
}

func TestStartLimiterHonoursCancel(t *testing.T) {
	lim := rate.NewLimiter(rate.Every(1<<62), 1)
	require.True(t, lim.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	op := &fakeOpener{wf: &fakeWorkflow{}}
	_, err := Start(ctx, op, creds, lim, zerolog.Nop())
	require.Error(t, err)
	assert.Zero(t, op.opened)
}
