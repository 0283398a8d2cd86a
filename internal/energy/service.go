package energy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/energy-demand-features/internal/observability"
)

// ErrWeatherGaps is returned when weather windows failed and the service is
// configured not to tolerate gaps.
var ErrWeatherGaps = errors.New("weather data has gaps")

// Options tunes pipeline behaviour.
type Options struct {
	// FailOnWeatherGaps aborts a build when any weather window failed.
	// By default the build proceeds and the failed windows are reported.
	FailOnWeatherGaps bool
}

// Service runs the fetch, merge and feature stages in order and keeps the
// latest dataset per request in a store.
type Service struct {
	weather  WeatherSource
	demand   DemandSource
	calendar HolidayCalendar
	store    Store
	metrics  *observability.Metrics
	logger   *zap.SugaredLogger
	opts     Options
	now      func() time.Time
}

// NewService creates a new Service.
func NewService(
	weather WeatherSource,
	demand DemandSource,
	calendar HolidayCalendar,
	store Store,
	metrics *observability.Metrics,
	logger *zap.SugaredLogger,
	opts Options,
) *Service {
	return &Service{
		weather:  weather,
		demand:   demand,
		calendar: calendar,
		store:    store,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for Dataset.BuiltAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Build fetches weather then demand, merges them with the holiday calendar
// and derives features. Every stage consumes the complete output of the
// previous one; nothing runs concurrently.
func (s *Service) Build(ctx context.Context, req Request) (ds *Dataset, err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordRun(start, err)
		}
	}()

	s.logger.Infow("building dataset", "respondent", req.Respondent, "location", req.Location,
		"range", req.Range.String(), "days", req.Range.Days())

	weather, err := s.weather.FetchHourly(ctx, req.Location, req.Range)
	if err != nil {
		return nil, fmt.Errorf("fetching weather: %w", err)
	}
	if s.metrics != nil {
		s.metrics.WeatherRowsFetched.Add(float64(len(weather.Observations)))
		s.metrics.WeatherWindowsFailed.Add(float64(len(weather.Failed)))
	}
	if len(weather.Failed) > 0 {
		s.logger.Warnw("weather windows failed", "failed", len(weather.Failed), "rows", len(weather.Observations))
		if s.opts.FailOnWeatherGaps {
			return nil, fmt.Errorf("%w: %d window(s) failed, first %s", ErrWeatherGaps,
				len(weather.Failed), weather.Failed[0].Range)
		}
	}

	demand, err := s.demand.FetchDemand(ctx, req.Respondent, req.Range)
	if err != nil {
		if s.metrics != nil {
			s.metrics.DemandRequests.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("fetching demand: %w", err)
	}
	if s.metrics != nil {
		s.metrics.DemandRequests.WithLabelValues("success").Inc()
		s.metrics.DemandRowsFetched.Add(float64(len(demand)))
	}
	if len(demand) == 0 {
		s.logger.Warnw("demand source returned no rows", "respondent", req.Respondent)
	}

	merged, err := Merge(demand, weather.Observations, s.calendar.Holidays(req.Range))
	if err != nil {
		return nil, fmt.Errorf("merging: %w", err)
	}

	features, dropped := EngineerFeatures(merged)

	missingTemp := 0
	for _, m := range merged {
		if m.Temperature == nil {
			missingTemp++
		}
	}
	if s.metrics != nil {
		s.metrics.MergedRows.Add(float64(len(merged)))
		s.metrics.MissingTempRows.Add(float64(missingTemp))
		s.metrics.FeatureRows.Add(float64(len(features)))
		s.metrics.FeatureRowsDropped.Add(float64(dropped))
	}

	s.logger.Infow("dataset built", "merged", len(merged), "missingTemperature", missingTemp,
		"features", len(features), "dropped", dropped, "failedWindows", len(weather.Failed))

	return &Dataset{
		Request:       req,
		Merged:        merged,
		Features:      features,
		FailedWindows: weather.Failed,
		DroppedRows:   dropped,
		BuiltAt:       s.now().UTC(),
	}, nil
}

// BuildAndStore builds a dataset and saves it as the latest for its request.
// On failure the last good dataset is kept.
func (s *Service) BuildAndStore(ctx context.Context, req Request) (*Dataset, error) {
	ds, err := s.Build(ctx, req)
	if err != nil {
		s.logger.Errorw("dataset build failed; keeping last good dataset if any", "key", req.Key(), "error", err)
		return nil, err
	}
	if s.store != nil {
		s.store.SaveDataset(ds)
	}
	return ds, nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(req Request) (*Dataset, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no dataset store configured")
	}
	return s.store.GetLatest(req.Key())
}
