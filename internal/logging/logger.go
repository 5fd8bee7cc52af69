package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/teetime-scheduler/internal/config"
)

const defaultFile = "teesched.log"

// New builds the process logger. Every entry carries app and version; an unrecognised level means info.
// The returned closer is set only when entries go to a file.
func New(cfg config.Logging, version string) (zerolog.Logger, io.Closer, error) {
	out, closer, err := sink(cfg)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	if normalize(cfg.Format) == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	log := zerolog.New(out).Level(level(cfg.Level)).With().
		Timestamp().
		Str("app", "teesched").
		Str("version", version).
		Logger()
	return log, closer, nil
}

func level(s string) zerolog.Level {
	l, err := zerolog.ParseLevel(normalize(s))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// sink resolves LOG_OUTPUT. File output goes to LOG_FILE, or teesched.log under LOG_DIR.
func sink(cfg config.Logging) (io.Writer, io.Closer, error) {
	switch normalize(cfg.Output) {
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
	default:
		return os.Stdout, nil, nil
	}

	path := cfg.File
	if path == "" {
		if cfg.Dir == "" {
			return nil, nil, fmt.Errorf("file logging needs LOG_FILE or LOG_DIR")
		}
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir %s: %w", cfg.Dir, err)
		}
		path = filepath.Join(cfg.Dir, defaultFile)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, f, nil
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
