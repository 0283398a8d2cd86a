package energy

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Periods of the cyclic calendar encodings.
const (
	hourPeriod       = 24
	dayOfWeekPeriod  = 7
	dayOfMonthPeriod = 31
)

// cyclic returns the sine/cosine encoding of x on a circle of the given period.
func cyclic(x, period int) (sin, cos float64) {
	angle := 2 * math.Pi * float64(x) / float64(period)
	return math.Sin(angle), math.Cos(angle)
}

// mondayFirstWeekday maps time.Weekday (Sunday=0) to Monday=0 ... Sunday=6.
func mondayFirstWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// EngineerFeatures derives calendar, cyclic, lag and rolling features from an
// ascending merged series. It returns only fully-defined rows, plus the
// number of input rows that were dropped.
//
// Lags and rolling windows are positional: Lags[i] at row t is the energy of
// row t-LagHours[i], and the rolling statistics cover rows t-23..t. Nothing
// at row t reads a row after t.
func EngineerFeatures(records []MergedRecord) ([]FeatureRecord, int) {
	n := len(records)
	if n == 0 {
		return []FeatureRecord{}, 0
	}

	energy := make([]float64, n)
	for i, r := range records {
		if r.EnergyMW == nil {
			energy[i] = math.NaN()
			continue
		}
		energy[i] = *r.EnergyMW
	}

	out := make([]FeatureRecord, 0, max(n-LagHours[NumLags-1], 0))
	for t, r := range records {
		if math.IsNaN(energy[t]) || r.Temperature == nil {
			continue
		}

		var lags [NumLags]float64
		defined := true
		for i, k := range LagHours {
			if t-k < 0 || math.IsNaN(energy[t-k]) {
				defined = false
				break
			}
			lags[i] = energy[t-k]
		}
		if !defined {
			continue
		}

		mean, std, ok := trailingStats(energy, t, RollingWindow)
		if !ok {
			continue
		}

		ts := r.Timestamp.UTC()
		hourSin, hourCos := cyclic(ts.Hour(), hourPeriod)
		dowSin, dowCos := cyclic(mondayFirstWeekday(ts), dayOfWeekPeriod)
		daySin, dayCos := cyclic(ts.Day(), dayOfMonthPeriod)

		out = append(out, FeatureRecord{
			Timestamp:      ts,
			EnergyMW:       energy[t],
			Temperature:    *r.Temperature,
			IsHoliday:      r.IsHoliday,
			Month:          int(ts.Month()),
			HourSin:        hourSin,
			HourCos:        hourCos,
			DayOfWeekSin:   dowSin,
			DayOfWeekCos:   dowCos,
			DaySin:         daySin,
			DayCos:         dayCos,
			Lags:           lags,
			RollingMean24h: mean,
			RollingStd24h:  std,
		})
	}

	return out, n - len(out)
}

// trailingStats returns the mean and sample standard deviation of
// values[t-window+1..t]. ok is false when the window is incomplete or
// contains an absent value.
func trailingStats(values []float64, t, window int) (mean, std float64, ok bool) {
	start := t - window + 1
	if start < 0 {
		return 0, 0, false
	}
	w := values[start : t+1]
	for _, v := range w {
		if math.IsNaN(v) {
			return 0, 0, false
		}
	}

	mean, variance := stat.MeanVariance(w, nil)
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance), true
}
