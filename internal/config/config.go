package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/example/teetime-scheduler/internal/domain/booking"
	"github.com/example/teetime-scheduler/internal/eligibility"
)

var ErrMissingCredentials = errors.New("BOOKING_USERNAME and BOOKING_PASSWORD are required")

type Config struct {
	QueueFile string `envconfig:"QUEUE_FILE" default:"data/queue.json"`

	Username string `envconfig:"BOOKING_USERNAME"`
	Password string `envconfig:"BOOKING_PASSWORD"`

	Simulation          bool   `envconfig:"SIMULATION_MODE" default:"false"`
	Screenshots         bool   `envconfig:"ENABLE_SCREENSHOTS" default:"true"`
	ScreenshotOnSuccess bool   `envconfig:"SCREENSHOT_ON_SUCCESS" default:"false"`
	Headless            bool   `envconfig:"HEADLESS" default:"true"`
	TestDate            string `envconfig:"TEST_DATE"`
	ScheduledRun        bool   `envconfig:"SCHEDULED_RUN" default:"false"`

	Logging

	// eligibility
	Policy    string `envconfig:"ELIGIBILITY_POLICY" default:"windowed"`
	LeadDays  int    `envconfig:"LEAD_DAYS" default:"30"`
	GraceDays int    `envconfig:"GRACE_DAYS" default:"3"`

	// processing
	BatchSize    int           `envconfig:"BATCH_SIZE" default:"3"`
	MaxAttempts  int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	RetryDelay   time.Duration `envconfig:"RETRY_DELAY" default:"30s"`
	PartySize    int           `envconfig:"PARTY_SIZE" default:"4"`
	PartyMembers []string      `envconfig:"PARTY_MEMBERS"`
	ReadyTimeout time.Duration `envconfig:"READY_TIMEOUT" default:"20s"`
	ReadyPoll    time.Duration `envconfig:"READY_POLL" default:"500ms"`
	SettleDelay  time.Duration `envconfig:"SETTLE_DELAY" default:"1s"`
	NavTimeout   time.Duration `envconfig:"NAV_TIMEOUT" default:"60s"`

	LoginInterval time.Duration `envconfig:"LOGIN_INTERVAL" default:"2s"`

	// timing gate
	Timezone          string        `envconfig:"TIMEZONE" default:"America/New_York"`
	GateTime          string        `envconfig:"GATE_TIME" default:"07:00"`
	GateLateTolerance time.Duration `envconfig:"GATE_LATE_TOLERANCE" default:"10m"`
	GateMaxWait       time.Duration `envconfig:"GATE_MAX_WAIT" default:"90m"`

	// run lock
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	LockTTL       time.Duration `envconfig:"LOCK_TTL" default:"30m"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	MetricsFile string `envconfig:"METRICS_FILE"`
	OutputFile  string `envconfig:"GITHUB_OUTPUT"`

	Site Site `envconfig:"SITE"`
}

type Logging struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"console"`
	Output string `envconfig:"LOG_OUTPUT" default:"stdout"`
	File   string `envconfig:"LOG_FILE"`
	Dir    string `envconfig:"LOG_DIR" default:"logs"`
}

// Site describes where things live on the booking website.
type Site struct {
	BaseURL     string `envconfig:"BASE_URL" default:"https://teetimes.example.com"`
	LoginPath   string `envconfig:"LOGIN_PATH" default:"/login"`
	BookingPath string `envconfig:"BOOKING_PATH" default:"/tee-times"`

	UsernameInput string `envconfig:"USERNAME_INPUT" default:"input[name=username]"`
	PasswordInput string `envconfig:"PASSWORD_INPUT" default:"input[name=password]"`
	LoginButton   string `envconfig:"LOGIN_BUTTON" default:"button[type=submit]"`
	LoggedIn      string `envconfig:"LOGGED_IN" default:".account-menu"`
	LogoutLink    string `envconfig:"LOGOUT_LINK" default:"a.logout"`

	// %s is replaced by the ISO play date.
	DateControl string `envconfig:"DATE_CONTROL" default:"[data-date=\"%s\"]"`
	DateLoaded  string `envconfig:"DATE_LOADED" default:".tee-sheet[data-loaded-date=\"%s\"]"`
	Sheet       string `envconfig:"SHEET" default:".tee-sheet"`
	DateLabel   string `envconfig:"DATE_LABEL" default:"Mon Jan 2"`

	SlotItem    string `envconfig:"SLOT_ITEM" default:".tee-time"`
	SlotTime    string `envconfig:"SLOT_TIME" default:".time"`
	SlotSize    string `envconfig:"SLOT_SIZE" default:".player-option"`
	SlotIDAttr  string `envconfig:"SLOT_ID_ATTR" default:"data-slot-id"`
	AddPlayer   string `envconfig:"ADD_PLAYER" default:"button.add-player"`
	PlayerInput string `envconfig:"PLAYER_INPUT" default:"input.player-name:last-of-type"`
	Submit      string `envconfig:"SUBMIT" default:"button.confirm-booking"`
	Confirmed   string `envconfig:"CONFIRMED" default:".confirmation-number"`
}

// FromEnv loads an optional .env file and decodes the environment.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	cfg.PartyMembers = trimAll(cfg.PartyMembers)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.QueueFile) == "" {
		return errors.New("QUEUE_FILE is required")
	}
	switch c.Policy {
	case eligibility.PolicySimple, eligibility.PolicyWindowed:
	default:
		return fmt.Errorf("ELIGIBILITY_POLICY must be %q or %q (got %q)", eligibility.PolicySimple, eligibility.PolicyWindowed, c.Policy)
	}
	if c.LeadDays < 0 || c.GraceDays < 0 {
		return errors.New("LEAD_DAYS and GRACE_DAYS must be >= 0")
	}
	if c.BatchSize < 1 {
		return errors.New("BATCH_SIZE must be >= 1")
	}
	if c.MaxAttempts < 1 {
		return errors.New("MAX_ATTEMPTS must be >= 1")
	}
	if c.PartySize < 1 {
		return errors.New("PARTY_SIZE must be >= 1")
	}
	if c.TestDate != "" {
		if _, err := time.Parse(booking.DateLayout, c.TestDate); err != nil {
			return fmt.Errorf("TEST_DATE %q is not YYYY-MM-DD", c.TestDate)
		}
	}
	return nil
}

// Credentials returns the login pair. Simulation runs without one get a placeholder pair.
func (c Config) Credentials() booking.Credentials {
	creds := booking.Credentials{Username: c.Username, Password: c.Password}
	if c.Simulation && creds.Empty() {
		return booking.Credentials{Username: "simulation", Password: "simulation"}
	}
	return creds
}

// RequireCredentials fails unless a real run has a credential pair.
func (c Config) RequireCredentials() error {
	if c.Simulation {
		return nil
	}
	if c.Credentials().Empty() {
		return ErrMissingCredentials
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
