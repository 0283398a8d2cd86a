package energy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourAt(d string, h int) time.Time {
	return day(d).Add(time.Duration(h) * time.Hour)
}

func demandRow(period, value string) DemandRow {
	return DemandRow{
		Period:         period,
		Respondent:     "PJM",
		RespondentName: "PJM Interconnection, LLC",
		Type:           "D",
		TypeName:       "Demand",
		Value:          value,
		ValueUnits:     "megawatthours",
	}
}

func TestMerge_SortsAscendingAndJoinsWeather(t *testing.T) {
	// Descending, as the demand source returns it.
	demand := []DemandRow{
		demandRow("2024-01-02T01", "103"),
		demandRow("2024-01-02T00", "102"),
		demandRow("2024-01-01T23", "101"),
		demandRow("2024-01-01T22", "100"),
	}
	weather := []HourlyObservation{
		{Timestamp: hourAt("2024-01-01", 22), Value: -1.5},
		{Timestamp: hourAt("2024-01-02", 0), Value: -2.5},
		{Timestamp: hourAt("2024-01-02", 1), Value: -3.0},
		// Not in demand: must not create a row.
		{Timestamp: hourAt("2024-01-02", 2), Value: -3.5},
	}

	merged, err := Merge(demand, weather, nil)
	require.NoError(t, err)
	require.Len(t, merged, 4)

	for i := 1; i < len(merged); i++ {
		assert.True(t, merged[i-1].Timestamp.Before(merged[i].Timestamp))
	}

	assert.Equal(t, hourAt("2024-01-01", 22), merged[0].Timestamp)
	require.NotNil(t, merged[0].EnergyMW)
	assert.Equal(t, 100.0, *merged[0].EnergyMW)
	require.NotNil(t, merged[0].Temperature)
	assert.Equal(t, -1.5, *merged[0].Temperature)

	// 23:00 has no weather row.
	assert.Nil(t, merged[1].Temperature)
	require.NotNil(t, merged[2].Temperature)
	assert.Equal(t, -2.5, *merged[2].Temperature)
}

func TestMerge_HolidayFlagIgnoresTimeOfDay(t *testing.T) {
	demand := []DemandRow{
		demandRow("2024-07-05T00", "1"),
		demandRow("2024-07-04T23", "1"),
		demandRow("2024-07-04T00", "1"),
		demandRow("2024-07-03T23", "1"),
	}
	holidays := []time.Time{day("2024-07-04")}

	merged, err := Merge(demand, nil, holidays)
	require.NoError(t, err)
	require.Len(t, merged, 4)

	flags := make([]int, len(merged))
	for i, m := range merged {
		flags[i] = m.IsHoliday
	}
	assert.Equal(t, []int{0, 1, 1, 0}, flags)
}

func TestMerge_CoercesBadValuesToAbsent(t *testing.T) {
	demand := []DemandRow{
		demandRow("2024-01-01T03", ""),
		demandRow("2024-01-01T02", "n/a"),
		demandRow("2024-01-01T01", "NaN"),
		demandRow("2024-01-01T00", " 42.5 "),
	}

	merged, err := Merge(demand, nil, nil)
	require.NoError(t, err)
	require.Len(t, merged, 4)

	require.NotNil(t, merged[0].EnergyMW)
	assert.Equal(t, 42.5, *merged[0].EnergyMW)
	assert.Nil(t, merged[1].EnergyMW)
	assert.Nil(t, merged[2].EnergyMW)
	assert.Nil(t, merged[3].EnergyMW)
}

func TestMerge_DeduplicatesTimestamps(t *testing.T) {
	demand := []DemandRow{
		demandRow("2024-01-01T01", "2"),
		demandRow("2024-01-01T00", "1"),
		demandRow("2024-01-01T00", "9"),
	}

	merged, err := Merge(demand, nil, nil)
	require.NoError(t, err)
	require.Len(t, merged, 2)
	assert.Equal(t, 1.0, *merged[0].EnergyMW)
	assert.Equal(t, 2.0, *merged[1].EnergyMW)
}

func TestMerge_UnparsablePeriodIsAnError(t *testing.T) {
	_, err := Merge([]DemandRow{demandRow("yesterday", "1")}, nil, nil)
	assert.Error(t, err)
}

func TestMerge_Empty(t *testing.T) {
	merged, err := Merge(nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, merged)
}

func TestParsePeriod(t *testing.T) {
	for _, s := range []string{"2024-03-10T07", "2024-03-10T07:00", "2024-03-10T07:00:00", "2024-03-10T07:00:00Z"} {
		ts, err := ParsePeriod(s)
		require.NoError(t, err, s)
		assert.Equal(t, hourAt("2024-03-10", 7), ts, s)
	}
}
