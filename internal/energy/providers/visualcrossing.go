package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/energy-demand-features/internal/common"
	"github.com/i474232898/energy-demand-features/internal/energy"
)

const (
	// WindowDays keeps each request under the API's 1000-record cap
	// (41 * 24 = 984 hourly records).
	WindowDays = 41

	visualCrossingBaseURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"
	hourLayout            = "2006-01-02T15:04:05"
)

// VisualCrossingProvider fetches hourly temperatures from the Visual Crossing
// timeline API, one request per WindowDays-day window.
type VisualCrossingProvider struct {
	name      string
	apiKey    string
	baseURL   string
	unitGroup string
	client    *http.Client
	logger    *zap.SugaredLogger
}

func NewVisualCrossingProvider(client *http.Client, apiKey string, logger *zap.SugaredLogger) *VisualCrossingProvider {
	return &VisualCrossingProvider{
		name:      "visualcrossing",
		apiKey:    apiKey,
		baseURL:   visualCrossingBaseURL,
		unitGroup: "metric",
		client:    client,
		logger:    logger,
	}
}

// WithBaseURL overrides the timeline endpoint.
func (p *VisualCrossingProvider) WithBaseURL(baseURL string) *VisualCrossingProvider {
	if baseURL != "" {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
	return p
}

// WithUnitGroup selects the unit system (metric, us, uk, base).
func (p *VisualCrossingProvider) WithUnitGroup(unitGroup string) *VisualCrossingProvider {
	if unitGroup != "" {
		p.unitGroup = unitGroup
	}
	return p
}

func (p *VisualCrossingProvider) Name() string {
	return p.name
}

// FetchHourly retrieves one temperature per hour for every day of r.
//
// Windows are fetched strictly one after another. A window answered with a
// non-2xx status, or refused by the open breaker, is logged and listed in the
// result's Failed windows; its hours are missing from Observations. Transport
// errors and responses that cannot be decoded abort the whole fetch.
func (p *VisualCrossingProvider) FetchHourly(ctx context.Context, location string, r energy.DateRange) (energy.FetchResult, error) {
	if p.apiKey == "" {
		return energy.FetchResult{}, fmt.Errorf("visualcrossing api key is not configured")
	}

	// The breaker only spans the windows of this fetch.
	circuit := newCircuitBreaker(p.name+":"+location, 3)

	var result energy.FetchResult
	for _, w := range r.Windows(WindowDays) {
		if err := ctx.Err(); err != nil {
			return energy.FetchResult{}, err
		}

		start, end := common.FormatDate(w.Start), common.FormatDate(w.End)
		p.logger.Infow("fetching weather window", "location", location, "start", start, "end", end)

		body, err := doRequest(ctx, p.client, circuit, func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, p.windowURL(location, start, end), nil)
		})
		if err != nil {
			if ctx.Err() != nil {
				return energy.FetchResult{}, ctx.Err()
			}
			if !errors.Is(err, ErrUnexpectedStatus) && !errors.Is(err, ErrCircuitOpen) {
				return energy.FetchResult{}, fmt.Errorf("weather window %s to %s: %w", start, end, err)
			}
			p.logger.Warnw("weather window failed; skipping",
				"location", location, "start", start, "end", end,
				"status", StatusCode(err), "error", err)
			result.Failed = append(result.Failed, energy.FailedWindow{Range: w, Error: err.Error()})
			continue
		}

		obs, err := parseTimeline(body)
		if err != nil {
			return energy.FetchResult{}, fmt.Errorf("weather window %s to %s: %w", start, end, err)
		}
		result.Observations = append(result.Observations, obs...)
	}

	sort.SliceStable(result.Observations, func(i, j int) bool {
		return result.Observations[i].Timestamp.Before(result.Observations[j].Timestamp)
	})

	return result, nil
}

func (p *VisualCrossingProvider) windowURL(location, start, end string) string {
	values := url.Values{}
	values.Set("unitGroup", p.unitGroup)
	values.Set("include", "hours")
	values.Set("key", p.apiKey)
	values.Set("contentType", "json")

	return fmt.Sprintf("%s/%s/%s/%s?%s", p.baseURL, url.PathEscape(location), start, end, values.Encode())
}

// parseTimeline flattens the days/hours structure into hourly observations.
// Hours without a temperature are left out.
func parseTimeline(body []byte) ([]energy.HourlyObservation, error) {
	var payload struct {
		Days []struct {
			Datetime string `json:"datetime"`
			Hours    []struct {
				Datetime string   `json:"datetime"`
				Temp     *float64 `json:"temp"`
			} `json:"hours"`
		} `json:"days"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding timeline: %w", err)
	}
	if payload.Days == nil {
		return nil, fmt.Errorf("decoding timeline: missing days array")
	}

	var out []energy.HourlyObservation
	for _, day := range payload.Days {
		for _, hour := range day.Hours {
			ts, err := time.Parse(hourLayout, day.Datetime+"T"+hour.Datetime)
			if err != nil {
				return nil, fmt.Errorf("decoding timeline: %w", err)
			}
			if hour.Temp == nil {
				continue
			}
			out = append(out, energy.HourlyObservation{Timestamp: ts.UTC(), Value: *hour.Temp})
		}
	}
	return out, nil
}
