package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/teetime-scheduler/internal/domain/booking"
)

func req() *booking.Request {
	return &booking.Request{ID: "20261015-0badf00d", PlayDate: "2026-11-14", TimeRange: booking.TimeRange{Start: "09:00", End: "11:00"}}
}

func TestLine(t *testing.T) {
	assert.Equal(t, "✅ 20261015-0badf00d (2026-11-14 09:00-11:00): booked 09:30, confirmation C-1",
		Line(req(), booking.Outcome{Status: booking.StatusSuccess, BookedTime: "09:30", ConfirmationNumber: "C-1"}))
	assert.Equal(t, "❌ 20261015-0badf00d (2026-11-14 09:00-11:00): not booked: no qualifying times in range 09:00-11:00",
		Line(req(), booking.Outcome{Status: booking.StatusFailed, FailureReason: "no qualifying times in range 09:00-11:00"}))
	assert.True(t, strings.HasPrefix(Line(req(), booking.Outcome{Status: booking.StatusError, FailureReason: "boom"}), "⚠️"))
}

func TestEncodeUsesHeredocForResults(t *testing.T) {
	out := Outputs{ProcessedCount: 1, Status: StatusFailure, Results: "line one\nline two"}.Encode()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	require.Len(t, lines, 6)
	assert.Equal(t, "processed_count=1", lines[0])
	assert.Equal(t, "booking_status=failure", lines[1])
	require.True(t, strings.HasPrefix(lines[2], "results<<EOF_"))
	delim := strings.TrimPrefix(lines[2], "results<<")
	assert.Equal(t, []string{"line one", "line two", delim}, lines[3:])
}

func TestEncodeEmptyResults(t *testing.T) {
	out := Outputs{Status: StatusSuccess}.Encode()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.TrimPrefix(lines[2], "results<<"), lines[3])
}

func TestAppendFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "github_output")
	require.NoError(t, os.WriteFile(path, []byte("earlier=1\n"), 0o644))

	require.NoError(t, Outputs{ProcessedCount: 2, Status: StatusSuccess, Results: "ok"}.AppendFile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "earlier=1\nprocessed_count=2\n"))

	assert.NoError(t, Outputs{}.AppendFile(""))
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Outputs{ProcessedCount: 0, Status: StatusSuccess, Results: "nothing to do"}.Print(&buf))
	assert.Equal(t, "processed_count=0\nbooking_status=success\nresults:\nnothing to do\n", buf.String())
}
