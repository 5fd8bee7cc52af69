package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) (queueFile, outputFile string) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	queueFile = filepath.Join(dir, "data", "queue.json")
	outputFile = filepath.Join(dir, "github_output")
	t.Setenv("QUEUE_FILE", queueFile)
	t.Setenv("GITHUB_OUTPUT", outputFile)
	t.Setenv("LOG_OUTPUT", "stderr")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("RETRY_DELAY", "0s")
	t.Setenv("SETTLE_DELAY", "0s")
	t.Setenv("LOGIN_INTERVAL", "0s")
	t.Setenv("ENABLE_SCREENSHOTS", "false")
	return queueFile, outputFile
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "teesched dev")
}

func TestQueueAndSimulatedRun(t *testing.T) {
	queueFile, outputFile := setupEnv(t)

	out, err := execute(t, "queue", "add", "--play-date", "2026-11-14", "--start", "09:00", "--end", "11:00", "--requested-by", "ann")
	require.NoError(t, err)
	id := regexp.MustCompile(`id=(\S+)`).FindStringSubmatch(out)
	require.Len(t, id, 2)

	out, err = execute(t, "queue", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id[1])
	assert.Contains(t, out, "status=pending")

	out, err = execute(t, "run", "--simulate", "--today", "2026-10-15")
	require.NoError(t, err)
	assert.Contains(t, out, "processed_count=1")
	assert.Contains(t, out, "booking_status=success")
	assert.Contains(t, out, "SIM-20261114-0900")

	gh, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(gh), "processed_count=1\nbooking_status=success\nresults<<"))

	out, err = execute(t, "queue", "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "status=success")
	assert.Contains(t, out, "booked=09:00")

	_, err = execute(t, "queue", "delete", id[1])
	assert.ErrorContains(t, err, "no longer pending")

	_, err = os.Stat(queueFile)
	assert.NoError(t, err)
}

func TestRunNothingDue(t *testing.T) {
	setupEnv(t)
	out, err := execute(t, "run", "--simulate", "--today", "2026-10-15")
	require.NoError(t, err)
	assert.Contains(t, out, "processed_count=0")
	assert.Contains(t, out, "booking_status=success")
}

func TestRunWithoutCredentialsFails(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "queue", "add", "--play-date", "2026-10-15", "--start", "09:00", "--end", "10:00")
	require.NoError(t, err)

	_, err = execute(t, "run", "--today", "2026-10-15")
	assert.ErrorContains(t, err, "BOOKING_USERNAME")
}

func TestQueueAddRejectsBadInput(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "queue", "add", "--play-date", "next friday", "--start", "09:00", "--end", "10:00")
	assert.Error(t, err)

	_, err = execute(t, "queue", "delete", "missing-id")
	assert.ErrorContains(t, err, "not found")
}

func TestPingSimulated(t *testing.T) {
	setupEnv(t)
	out, err := execute(t, "ping", "--simulate")
	require.NoError(t, err)
	assert.Contains(t, out, ": ok")
}
