package evaluation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/energy-demand-features/internal/energy"
)

func TestRMSE(t *testing.T) {
	got, err := RMSE([]float64{1, 2, 3}, []float64{1, 2, 5})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(4.0/3.0), got, 1e-12)

	got, err = RMSE([]float64{7, 7}, []float64{7, 7})
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = RMSE([]float64{1}, []float64{1, 2})
	assert.Error(t, err)

	_, err = RMSE(nil, nil)
	assert.ErrorIs(t, err, errEmpty)
}

func featureSeries(n int) []energy.FeatureRecord {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]energy.FeatureRecord, n)
	for i := range out {
		out[i] = energy.FeatureRecord{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			EnergyMW:  float64(100 + i),
		}
		for j, k := range energy.LagHours {
			out[i].Lags[j] = float64(100 + i - k)
		}
	}
	return out
}

func TestSplitAt(t *testing.T) {
	records := featureSeries(48)

	train, test := SplitAt(records, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	assert.Len(t, train, 24)
	assert.Len(t, test, 24)
	assert.Equal(t, records[24].Timestamp, test[0].Timestamp)

	train, test = SplitAt(records, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Len(t, train, 48)
	assert.Empty(t, test)

	train, test = SplitAt(records, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Empty(t, train)
	assert.Len(t, test, 48)
}

func TestLagBaseline(t *testing.T) {
	records := featureSeries(10)

	pred, err := LagBaseline(records, 24)
	require.NoError(t, err)
	assert.Equal(t, Targets(records)[0]-24, pred[0])

	score, err := RMSE(Targets(records), pred)
	require.NoError(t, err)
	assert.InDelta(t, 24, score, 1e-12)

	_, err = LagBaseline(records, 3)
	assert.Error(t, err)
}
