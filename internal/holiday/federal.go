// Package holiday provides public-holiday calendars for the merge stage.
package holiday

import (
	"sort"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"

	"github.com/i474232898/energy-demand-features/internal/energy"
)

// FederalCalendar lists observed US federal holidays.
type FederalCalendar struct {
	holidays []*cal.Holiday
}

func NewFederalCalendar() *FederalCalendar {
	return &FederalCalendar{holidays: us.Holidays}
}

// Holidays returns the observed dates, at midnight UTC and ascending, that
// fall inside r. Observed dates may cross a year boundary (New Year's Day on
// a Saturday is observed the previous December 31st), so neighbouring years
// are evaluated too.
func (c *FederalCalendar) Holidays(r energy.DateRange) []time.Time {
	seen := make(map[time.Time]struct{})
	var out []time.Time

	for year := r.Start.Year() - 1; year <= r.End.Year()+1; year++ {
		for _, h := range c.holidays {
			_, observed := h.Calc(year)
			if observed.IsZero() {
				continue
			}
			d := time.Date(observed.Year(), observed.Month(), observed.Day(), 0, 0, 0, 0, time.UTC)
			if !r.Contains(d) {
				continue
			}
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Set is a fixed list of holiday dates, for callers that bring their own calendar.
type Set []time.Time

// Holidays returns the dates of the set that fall inside r.
func (s Set) Holidays(r energy.DateRange) []time.Time {
	var out []time.Time
	for _, d := range s {
		if r.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}
