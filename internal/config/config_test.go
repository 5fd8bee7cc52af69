package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/teetime-scheduler/internal/eligibility"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "data/queue.json", cfg.QueueFile)
	assert.Equal(t, eligibility.PolicyWindowed, cfg.Policy)
	assert.Equal(t, 30, cfg.LeadDays)
	assert.Equal(t, 3, cfg.GraceDays)
	assert.Equal(t, 3, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.RetryDelay)
	assert.True(t, cfg.Headless)
	assert.True(t, cfg.Screenshots)
	assert.Equal(t, "logs", cfg.Logging.Dir)
	assert.Equal(t, `[data-date="%s"]`, cfg.Site.DateControl)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SIMULATION_MODE", "true")
	t.Setenv("TEST_DATE", "2026-11-14")
	t.Setenv("PARTY_MEMBERS", "Ann, Bo ,,Cy")
	t.Setenv("RETRY_DELAY", "5s")
	t.Setenv("SITE_BASE_URL", "https://club.example.org")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.Simulation)
	assert.Equal(t, "2026-11-14", cfg.TestDate)
	assert.Equal(t, []string{"Ann", "Bo", "Cy"}, cfg.PartyMembers)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)
	assert.Equal(t, "https://club.example.org", cfg.Site.BaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateConfig(t *testing.T) {
	valid := Config{QueueFile: "q.json", Policy: eligibility.PolicyWindowed, BatchSize: 3, MaxAttempts: 3, PartySize: 4}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"unknown policy", func(c *Config) { c.Policy = "weekly" }, true},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, true},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, true},
		{"bad test date", func(c *Config) { c.TestDate = "14/11/2026" }, true},
		{"negative grace", func(c *Config) { c.GraceDays = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequireCredentials(t *testing.T) {
	assert.ErrorIs(t, Config{}.RequireCredentials(), ErrMissingCredentials)
	assert.ErrorIs(t, Config{Username: "u"}.RequireCredentials(), ErrMissingCredentials)
	assert.NoError(t, Config{Simulation: true}.RequireCredentials())
	assert.NoError(t, Config{Username: "u", Password: "p"}.RequireCredentials())
}

func TestCredentialsPlaceholderInSimulation(t *testing.T) {
	assert.True(t, Config{}.Credentials().Empty())
	assert.False(t, Config{Simulation: true}.Credentials().Empty())
	assert.Equal(t, "real", Config{Simulation: true, Username: "real", Password: "pw"}.Credentials().Username)
}
