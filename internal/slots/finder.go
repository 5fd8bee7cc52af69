package slots

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/example/teetime-scheduler/internal/domain/booking"
)

// Markup holds the CSS selectors of a rendered tee sheet.
type Markup struct {
	Item   string // one element per tee time
	Time   string // inside Item; empty means the item text
	Size   string // inside Item; one element per bookable party size
	IDAttr string // stable id attribute on Item, optional
}

type Finder struct {
	Markup    Markup
	PartySize int
}

var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM", "03:04 PM", "03:04PM"}

// Find returns the slots on the sheet that offer PartySize and start inside [start, end]
// (minutes after midnight, inclusive), ordered by time.
func (f Finder) Find(html string, start, end int) ([]booking.Slot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse tee sheet: %w", err)
	}

	var out []booking.Slot
	doc.Find(f.Markup.Item).Each(func(i int, item *goquery.Selection) {
		if !f.offersPartySize(item) {
			return
		}
		label := item.Text()
		if f.Markup.Time != "" {
			label = item.Find(f.Markup.Time).First().Text()
		}
		minutes, ok := ParseSheetTime(label)
		if !ok || !booking.InWindow(minutes, start, end) {
			return
		}
		s := booking.Slot{Time: booking.FormatClock(minutes), Minutes: minutes, Index: i}
		if f.Markup.IDAttr != "" {
			if id, ok := item.Attr(f.Markup.IDAttr); ok && id != "" {
				s.Ref = fmt.Sprintf(`%s[%s=%q]`, f.Markup.Item, f.Markup.IDAttr, id)
			}
		}
		out = append(out, s)
	})

	sort.SliceStable(out, func(a, b int) bool { return out[a].Minutes < out[b].Minutes })
	return out, nil
}

func (f Finder) offersPartySize(item *goquery.Selection) bool {
	found := false
	item.Find(f.Markup.Size).EachWithBreak(func(_ int, opt *goquery.Selection) bool {
		v, ok := opt.Attr("data-size")
		if !ok {
			v = opt.Text()
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n == f.PartySize {
			found = true
			return false
		}
		return true
	})
	return found
}

// ParseSheetTime reads "09:30", "9:30 AM" or "9:30am" style labels.
func ParseSheetTime(label string) (int, bool) {
	label = strings.ToUpper(strings.Join(strings.Fields(label), " "))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, label); err == nil {
			return t.Hour()*60 + t.Minute(), true
		}
	}
	return 0, false
}
