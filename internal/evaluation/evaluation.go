// Package evaluation scores predictions against feature datasets.
package evaluation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/i474232898/energy-demand-features/internal/energy"
)

var errEmpty = errors.New("no values to compare")

// RMSE returns the root mean square error between yTrue and yPred.
func RMSE(yTrue, yPred []float64) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("length mismatch: %d true values, %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, errEmpty
	}
	return floats.Distance(yTrue, yPred, 2) / math.Sqrt(float64(len(yTrue))), nil
}

// SplitAt splits an ascending feature series chronologically: rows strictly
// before at go to train, the rest to test.
func SplitAt(records []energy.FeatureRecord, at time.Time) (train, test []energy.FeatureRecord) {
	for i, r := range records {
		if !r.Timestamp.Before(at) {
			return records[:i], records[i:]
		}
	}
	return records, nil
}

// Targets extracts the energy column.
func Targets(records []energy.FeatureRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.EnergyMW
	}
	return out
}

// LagBaseline predicts each row's energy as its value lagHours earlier. It
// is the reference score a trained model has to beat.
func LagBaseline(records []energy.FeatureRecord, lagHours int) ([]float64, error) {
	idx := -1
	for i, k := range energy.LagHours {
		if k == lagHours {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("no lag feature of %d hours", lagHours)
	}

	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Lags[idx]
	}
	return out, nil
}
