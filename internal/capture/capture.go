package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const stampLayout = "20060102-150405.000"

type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Recorder saves diagnostic screenshots under Dir. Failures are logged and swallowed.
type Recorder struct {
	Dir       string
	Enabled   bool
	OnSuccess bool
	Now       func() time.Time
	Logger    zerolog.Logger
}

// Failure captures the page after a failed or errored attempt.
func (r Recorder) Failure(ctx context.Context, src Screenshotter, requestID, event string) string {
	if !r.Enabled {
		return ""
	}
	return r.save(ctx, src, requestID, event)
}

// Success captures the confirmation page when success captures are on.
func (r Recorder) Success(ctx context.Context, src Screenshotter, requestID string) string {
	if !r.Enabled || !r.OnSuccess {
		return ""
	}
	return r.save(ctx, src, requestID, "success")
}

func (r Recorder) save(ctx context.Context, src Screenshotter, requestID, event string) string {
	log := r.Logger.With().Str("request_id", requestID).Str("event", event).Logger()
	img, err := src.Screenshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("screenshot failed")
		return ""
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		log.Warn().Err(err).Msg("create screenshot dir failed")
		return ""
	}
	path := filepath.Join(r.Dir, FileName(r.now(), requestID, event))
	if err := os.WriteFile(path, img, 0o644); err != nil {
		log.Warn().Err(err).Msg("write screenshot failed")
		return ""
	}
	log.Info().Str("path", path).Msg("screenshot saved")
	return path
}

func (r Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// FileName builds <timestamp>_<requestID>_<event>.png with path separators stripped.
func FileName(at time.Time, requestID, event string) string {
	return fmt.Sprintf("%s_%s_%s.png", at.UTC().Format(stampLayout), clean(requestID), clean(event))
}

func clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '-'
		}
		return r
	}, s)
}
