package energy

import (
	"context"
	"errors"
	"time"
)

// ErrNoDemandData is returned when the demand source has no usable data for a
// request, e.g. because the upstream API answered with a non-success status.
var ErrNoDemandData = errors.New("no demand data")

// WeatherSource retrieves hourly temperatures for a location.
type WeatherSource interface {
	FetchHourly(ctx context.Context, location string, r DateRange) (FetchResult, error)
}

// DemandSource retrieves raw hourly demand rows for a grid respondent.
// Rows are returned sorted descending by period.
type DemandSource interface {
	FetchDemand(ctx context.Context, respondent string, r DateRange) ([]DemandRow, error)
}

// HolidayCalendar returns the observed public holidays within a range.
type HolidayCalendar interface {
	Holidays(r DateRange) []time.Time
}

// Store is the contract the in-memory dataset cache must satisfy.
type Store interface {
	SaveDataset(ds *Dataset)
	GetLatest(key string) (*Dataset, error)
}
