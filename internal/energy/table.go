package energy

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// DatetimeLayout is the textual form of the Datetime column.
const DatetimeLayout = "2006-01-02 15:04:05"

// MergedFrame converts merged records to a DataFrame with columns
// Datetime, Energy_MW, Temperature, IsHoliday. Absent values become NaN.
func MergedFrame(records []MergedRecord) dataframe.DataFrame {
	n := len(records)
	datetimes := make([]string, n)
	energy := make([]float64, n)
	temps := make([]float64, n)
	holidays := make([]int, n)

	for i, r := range records {
		datetimes[i] = r.Timestamp.UTC().Format(DatetimeLayout)
		energy[i] = valueOrNaN(r.EnergyMW)
		temps[i] = valueOrNaN(r.Temperature)
		holidays[i] = r.IsHoliday
	}

	return dataframe.New(
		series.New(datetimes, series.String, "Datetime"),
		series.New(energy, series.Float, "Energy_MW"),
		series.New(temps, series.Float, "Temperature"),
		series.New(holidays, series.Int, "IsHoliday"),
	)
}

// FeatureFrame converts feature records to a DataFrame ready for model
// training. Column order: Datetime, Energy_MW, Temperature, IsHoliday, Month,
// the six cyclic encodings, Lag1..Lag720, RollingMean_24h, RollingStd_24h.
func FeatureFrame(records []FeatureRecord) dataframe.DataFrame {
	n := len(records)
	datetimes := make([]string, n)
	ints := map[string][]int{
		"IsHoliday": make([]int, n),
		"Month":     make([]int, n),
	}
	floats := map[string][]float64{}
	floatCols := FeatureColumns()
	for _, name := range floatCols {
		floats[name] = make([]float64, n)
	}

	for i, r := range records {
		datetimes[i] = r.Timestamp.UTC().Format(DatetimeLayout)
		ints["IsHoliday"][i] = r.IsHoliday
		ints["Month"][i] = r.Month

		floats["Energy_MW"][i] = r.EnergyMW
		floats["Temperature"][i] = r.Temperature
		floats["Hour_sin"][i] = r.HourSin
		floats["Hour_cos"][i] = r.HourCos
		floats["DayOfWeek_sin"][i] = r.DayOfWeekSin
		floats["DayOfWeek_cos"][i] = r.DayOfWeekCos
		floats["Day_sin"][i] = r.DaySin
		floats["Day_cos"][i] = r.DayCos
		for j, k := range LagHours {
			floats[lagColumn(k)][i] = r.Lags[j]
		}
		floats["RollingMean_24h"][i] = r.RollingMean24h
		floats["RollingStd_24h"][i] = r.RollingStd24h
	}

	cols := []series.Series{
		series.New(datetimes, series.String, "Datetime"),
		series.New(floats["Energy_MW"], series.Float, "Energy_MW"),
		series.New(floats["Temperature"], series.Float, "Temperature"),
		series.New(ints["IsHoliday"], series.Int, "IsHoliday"),
		series.New(ints["Month"], series.Int, "Month"),
	}
	for _, name := range floatCols[2:] {
		cols = append(cols, series.New(floats[name], series.Float, name))
	}
	return dataframe.New(cols...)
}

// FeatureColumns lists the float-valued columns of FeatureFrame in order.
func FeatureColumns() []string {
	cols := []string{
		"Energy_MW", "Temperature",
		"Hour_sin", "Hour_cos",
		"DayOfWeek_sin", "DayOfWeek_cos",
		"Day_sin", "Day_cos",
	}
	for _, k := range LagHours {
		cols = append(cols, lagColumn(k))
	}
	return append(cols, "RollingMean_24h", "RollingStd_24h")
}

func lagColumn(hours int) string {
	return fmt.Sprintf("Lag%d", hours)
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
