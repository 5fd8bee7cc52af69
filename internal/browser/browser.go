// Package browser drives the booking website through a headless Chrome instance.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/example/teetime-scheduler/internal/config"
	"github.com/example/teetime-scheduler/internal/domain/booking"
	"github.com/example/teetime-scheduler/internal/wait"
)

const defaultUA = "Mozilla/5.0 (X11; Linux x86_64) teesched/1.0"

// Opener starts one isolated browser per Open call.
type Opener struct {
	Site       config.Site
	Headless   bool
	NavTimeout time.Duration
	Poll       time.Duration
	Logger     zerolog.Logger
}

func New(cfg config.Config, log zerolog.Logger) *Opener {
	return &Opener{
		Site:       cfg.Site,
		Headless:   cfg.Headless,
		NavTimeout: cfg.NavTimeout,
		Poll:       cfg.ReadyPoll,
		Logger:     log.With().Str("component", "browser").Logger(),
	}
}

func (o *Opener) Open(ctx context.Context) (booking.Workflow, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.UserAgent(defaultUA),
		chromedp.WindowSize(1366, 900),
	)
	// The browser outlives ctx's deadline; Close tears it down.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	navTimeout := o.NavTimeout
	if navTimeout <= 0 {
		navTimeout = time.Minute
	}
	return &Workflow{
		site:    o.Site,
		tab:     tabCtx,
		timeout: navTimeout,
		poll:    o.Poll,
		log:     o.Logger,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}, nil
}

// Workflow is one logged-in tab. Not safe for concurrent use.
type Workflow struct {
	site    config.Site
	tab     context.Context
	timeout time.Duration
	poll    time.Duration
	log     zerolog.Logger
	cancel  func()
}

// run executes actions on the tab, bounded by ctx and the navigation timeout.
func (w *Workflow) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(w.tab, w.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

func (w *Workflow) Login(ctx context.Context, creds booking.Credentials) error {
	err := w.run(ctx,
		chromedp.Navigate(URL(w.site.BaseURL, w.site.LoginPath)),
		chromedp.WaitVisible(w.site.UsernameInput, chromedp.ByQuery),
		chromedp.SendKeys(w.site.UsernameInput, creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(w.site.PasswordInput, creds.Password, chromedp.ByQuery),
		chromedp.Click(w.site.LoginButton, chromedp.ByQuery),
		chromedp.WaitVisible(w.site.LoggedIn, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("login as %s: %w", creds.Username, err)
	}
	w.log.Debug().Str("user", creds.Username).Msg("logged in")
	return nil
}

func (w *Workflow) NavigateToBooking(ctx context.Context) error {
	return w.run(ctx,
		chromedp.Navigate(URL(w.site.BaseURL, w.site.BookingPath)),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (w *Workflow) SelectDate(ctx context.Context, day booking.Day) (bool, error) {
	sel := dateSelector(w.site.DateControl, day)
	var nodes []*cdp.Node
	if err := w.run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	if len(nodes) == 0 {
		// Some sheets only carry the visible label.
		if err := w.run(ctx, chromedp.Nodes(labelXPath(day.Label), &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
			return false, err
		}
	}
	if len(nodes) == 0 {
		w.log.Info().Str("date", day.Label).Msg("date control not present")
		return false, nil
	}
	if err := w.run(ctx, chromedp.MouseClickNode(nodes[0])); err != nil {
		return false, fmt.Errorf("click date %s: %w", day.Label, err)
	}
	return true, nil
}

func (w *Workflow) DateLoaded(ctx context.Context, day booking.Day) (bool, error) {
	sel := dateSelector(w.site.DateLoaded, day)
	var nodes []*cdp.Node
	if err := w.run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

// dateSelector fills the ISO date into pattern when it has a %s verb.
func dateSelector(pattern string, day booking.Day) string {
	if !strings.Contains(pattern, "%s") {
		return pattern
	}
	return fmt.Sprintf(pattern, day.ISO())
}

func (w *Workflow) RenderedSheet(ctx context.Context) (string, error) {
	var html string
	if err := w.run(ctx, chromedp.OuterHTML(w.site.Sheet, &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read %s: %w", w.site.Sheet, err)
	}
	return html, nil
}

func (w *Workflow) SelectSlot(ctx context.Context, slot booking.Slot) (bool, error) {
	var nodes []*cdp.Node
	if slot.Ref != "" {
		if err := w.run(ctx, chromedp.Nodes(slot.Ref, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
			return false, err
		}
	} else {
		var all []*cdp.Node
		if err := w.run(ctx, chromedp.Nodes(w.site.SlotItem, &all, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
			return false, err
		}
		if slot.Index < len(all) {
			nodes = all[slot.Index : slot.Index+1]
		}
	}
	if len(nodes) == 0 {
		return false, nil
	}
	if err := w.run(ctx, chromedp.MouseClickNode(nodes[0])); err != nil {
		return false, fmt.Errorf("click tee time %s: %w", slot.Time, err)
	}
	return true, nil
}

func (w *Workflow) Confirm(ctx context.Context, members []string) (booking.Confirmation, error) {
	for _, m := range members {
		err := w.run(ctx,
			chromedp.Click(w.site.AddPlayer, chromedp.ByQuery),
			chromedp.WaitVisible(w.site.PlayerInput, chromedp.ByQuery),
			chromedp.SendKeys(w.site.PlayerInput, m, chromedp.ByQuery),
		)
		if err != nil {
			return booking.Confirmation{}, fmt.Errorf("add player %q: %w", m, err)
		}
	}
	if err := w.run(ctx, chromedp.Click(w.site.Submit, chromedp.ByQuery)); err != nil {
		return booking.Confirmation{}, fmt.Errorf("submit booking: %w", err)
	}

	var text string
	err := wait.Until(ctx, w.poll, w.timeout, func(ctx context.Context) (bool, error) {
		var nodes []*cdp.Node
		if err := w.run(ctx, chromedp.Nodes(w.site.Confirmed, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
			return false, err
		}
		if len(nodes) == 0 {
			return false, nil
		}
		return true, w.run(ctx, chromedp.Text(w.site.Confirmed, &text, chromedp.ByQuery))
	})
	if err != nil {
		return booking.Confirmation{}, fmt.Errorf("wait for confirmation: %w", err)
	}
	num := ConfirmationNumber(text)
	if num == "" {
		return booking.Confirmation{}, errors.New("confirmation page showed no confirmation number")
	}
	return booking.Confirmation{Number: num}, nil
}

func (w *Workflow) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := w.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (w *Workflow) Logout(ctx context.Context) error {
	var nodes []*cdp.Node
	if err := w.run(ctx, chromedp.Nodes(w.site.LogoutLink, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}
	return w.run(ctx, chromedp.MouseClickNode(nodes[0]))
}

func (w *Workflow) Close() error {
	if w.cancel == nil {
		return nil
	}
	err := chromedp.Cancel(w.tab)
	w.cancel()
	w.cancel = nil
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// URL joins base and path without doubling slashes.
func URL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func labelXPath(label string) string {
	return fmt.Sprintf(`//*[normalize-space(text())=%s]`, xpathLiteral(label))
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	return `concat("` + strings.Join(parts, `", '"', "`) + `")`
}

// ConfirmationNumber pulls the reference out of text like "Confirmation #: ABC123".
func ConfirmationNumber(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.LastIndexAny(text, ":#"); i >= 0 {
		text = text[i+1:]
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,;")
}
