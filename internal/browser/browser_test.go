package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/teetime-scheduler/internal/domain/booking"
)

func TestURL(t *testing.T) {
	assert.Equal(t, "https://club.example/tee-times", URL("https://club.example/", "/tee-times"))
	assert.Equal(t, "https://club.example/login", URL("https://club.example", "login"))
	assert.Equal(t, "https://club.example", URL("https://club.example", ""))
}

func TestConfirmationNumber(t *testing.T) {
	for in, want := range map[string]string{
		"Confirmation #: ABC123":           "ABC123",
		"  Confirmation number: 99812. ":   "99812",
		"RES-7781":                         "RES-7781",
		"Your booking is confirmed #QX-12": "QX-12",
		"":                                 "",
	} {
		assert.Equal(t, want, ConfirmationNumber(in), in)
	}
}

func TestLabelXPathQuoting(t *testing.T) {
	assert.Equal(t, `//*[normalize-space(text())="Sat Nov 14"]`, labelXPath("Sat Nov 14"))
	assert.Equal(t, `'say "hi"'`, xpathLiteral(`say "hi"`))
	assert.Equal(t, `concat("a", '"', "b'c")`, xpathLiteral(`a"b'c`))
}

func TestDateSelector(t *testing.T) {
	day := booking.Day{Date: time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC), Label: "Sat Nov 14"}
	assert.Equal(t, `[data-date="2026-11-14"]`, dateSelector(`[data-date="%s"]`, day))
	assert.Equal(t, ".date-picker .selectable", dateSelector(".date-picker .selectable", day))
}
