package energy

import (
	"fmt"
	"time"

	"github.com/i474232898/energy-demand-features/internal/common"
)

// DateRange is an inclusive range of calendar days, both ends at midnight UTC.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange builds a DateRange from two YYYY-MM-DD strings.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := common.ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := common.ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return DateRange{Start: s, End: e}, nil
}

// Days returns the number of calendar days covered, inclusive of both ends.
func (r DateRange) Days() int {
	return int(common.DayOf(r.End).Sub(common.DayOf(r.Start))/(24*time.Hour)) + 1
}

// Contains reports whether the calendar date of t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := common.DayOf(t)
	return !d.Before(common.DayOf(r.Start)) && !d.After(common.DayOf(r.End))
}

// Windows partitions the range into consecutive inclusive windows of at most
// days calendar days. Every date of the range appears in exactly one window.
func (r DateRange) Windows(days int) []DateRange {
	if days <= 0 {
		days = 1
	}
	var out []DateRange
	end := common.DayOf(r.End)
	for cur := common.DayOf(r.Start); !cur.After(end); {
		wEnd := cur.AddDate(0, 0, days-1)
		if wEnd.After(end) {
			wEnd = end
		}
		out = append(out, DateRange{Start: cur, End: wEnd})
		cur = wEnd.AddDate(0, 0, 1)
	}
	return out
}

func (r DateRange) String() string {
	return common.FormatDate(r.Start) + "/" + common.FormatDate(r.End)
}

// HourlyObservation is one hour of a single source series (temperature or demand).
type HourlyObservation struct {
	Timestamp time.Time `json:"timestamp"` // hour resolution, UTC
	Value     float64   `json:"value"`
}

// FailedWindow records a pagination window whose data could not be fetched.
type FailedWindow struct {
	Range DateRange `json:"range"`
	Error string    `json:"error"`
}

// FetchResult carries the rows that were fetched together with the windows
// that were skipped, so callers can decide whether a gap is acceptable.
type FetchResult struct {
	Observations []HourlyObservation `json:"observations"`
	Failed       []FailedWindow      `json:"failed,omitempty"`
}

// DemandRow is one raw row of the demand API response, before coercion.
// Value is kept verbatim; it may be a number, a numeric string, or garbage.
type DemandRow struct {
	Period         string `json:"period"`
	Respondent     string `json:"respondent"`
	RespondentName string `json:"respondent-name"`
	Type           string `json:"type"`
	TypeName       string `json:"type-name"`
	Value          string `json:"value"`
	ValueUnits     string `json:"value-units"`
}

// MergedRecord is one hour of demand joined with weather and the holiday flag.
// Nil pointers mark absent values.
type MergedRecord struct {
	Timestamp   time.Time `json:"datetime"`
	EnergyMW    *float64  `json:"energyMW"`
	Temperature *float64  `json:"temperature"`
	IsHoliday   int       `json:"isHoliday"`
}

// LagHours are the lag offsets, in rows (hours), of the lagged energy features.
var LagHours = [NumLags]int{1, 2, 6, 24, 48, 168, 336, 720}

// NumLags is the number of lagged energy features per record.
const NumLags = 8

// RollingWindow is the trailing window size, in rows, of the rolling statistics.
const RollingWindow = 24

// FeatureRecord is a fully-defined model input row. Raw hour, day and
// day-of-week are represented only through their cyclic encodings.
type FeatureRecord struct {
	Timestamp   time.Time `json:"datetime"`
	EnergyMW    float64   `json:"energyMW"`
	Temperature float64   `json:"temperature"`
	IsHoliday   int       `json:"isHoliday"`
	Month       int       `json:"month"`

	HourSin      float64 `json:"hourSin"`
	HourCos      float64 `json:"hourCos"`
	DayOfWeekSin float64 `json:"dayOfWeekSin"`
	DayOfWeekCos float64 `json:"dayOfWeekCos"`
	DaySin       float64 `json:"daySin"`
	DayCos       float64 `json:"dayCos"`

	// Lags[i] is the energy value LagHours[i] rows earlier.
	Lags [NumLags]float64 `json:"lags"`

	RollingMean24h float64 `json:"rollingMean24h"`
	RollingStd24h  float64 `json:"rollingStd24h"`
}

// Request identifies one dataset build.
type Request struct {
	Respondent string    `json:"respondent"`
	Location   string    `json:"location"`
	Range      DateRange `json:"range"`
}

// Key returns a canonical string key for indexing this request in stores.
func (r Request) Key() string {
	return r.Respondent + ":" + r.Location + ":" + r.Range.String()
}

// Dataset is the output of one pipeline run.
type Dataset struct {
	Request       Request         `json:"request"`
	Merged        []MergedRecord  `json:"-"`
	Features      []FeatureRecord `json:"-"`
	FailedWindows []FailedWindow  `json:"failedWindows,omitempty"`
	DroppedRows   int             `json:"droppedRows"`
	BuiltAt       time.Time       `json:"builtAt"`
}
