package energy

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/energy-demand-features/internal/common"
)

// demandPeriodLayouts are the period formats the demand API emits for hourly
// data, tried in order.
var demandPeriodLayouts = []string{
	"2006-01-02T15",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParsePeriod parses a demand period string into a UTC hour timestamp.
func ParsePeriod(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range demandPeriodLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable period %q", s)
}

// coerceValue converts a raw demand value to a float. Anything that is not a
// finite number is absent.
func coerceValue(raw string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Merge joins raw demand rows with hourly temperatures and the holiday
// calendar into one record per hour, ascending by timestamp.
//
// Demand is the left side of the join: every demand hour is kept, and hours
// without an exact weather match carry a nil Temperature. Rows whose period
// cannot be parsed are an error; values that cannot be parsed are absent.
func Merge(demand []DemandRow, weather []HourlyObservation, holidays []time.Time) ([]MergedRecord, error) {
	holidaySet := make(map[time.Time]struct{}, len(holidays))
	for _, h := range holidays {
		holidaySet[common.DayOf(h)] = struct{}{}
	}

	temps := make(map[time.Time]float64, len(weather))
	for _, w := range weather {
		ts := w.Timestamp.UTC()
		if _, exists := temps[ts]; !exists {
			temps[ts] = w.Value
		}
	}

	records := make([]MergedRecord, 0, len(demand))
	for i, row := range demand {
		ts, err := ParsePeriod(row.Period)
		if err != nil {
			return nil, fmt.Errorf("demand row %d: %w", i, err)
		}

		rec := MergedRecord{
			Timestamp: ts,
			EnergyMW:  coerceValue(row.Value),
		}
		if t, ok := temps[ts]; ok {
			rec.Temperature = &t
		}
		if _, ok := holidaySet[common.DayOf(ts)]; ok {
			rec.IsHoliday = 1
		}
		records = append(records, rec)
	}

	// Lag and rolling features depend on monotonic time, whatever order the
	// demand source used.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	deduped := records[:0]
	for i, r := range records {
		if i > 0 && r.Timestamp.Equal(records[i-1].Timestamp) {
			continue
		}
		deduped = append(deduped, r)
	}

	return deduped, nil
}
