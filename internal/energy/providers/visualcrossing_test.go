package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/energy-demand-features/internal/energy"
)

// temperatureAt is the deterministic temperature served by the fake timeline API.
func temperatureAt(ts time.Time) float64 {
	return float64(ts.YearDay()) + float64(ts.Hour())/100
}

type timelineServer struct {
	*httptest.Server

	mu         sync.Mutex
	windows    [][2]string
	queries    []map[string]string
	paths      []string
	failFrom   string // window start date answered with failStatus; "*" fails all
	failStatus int
	garbage    bool
}

func newTimelineServer(t *testing.T) *timelineServer {
	t.Helper()
	s := &timelineServer{failStatus: http.StatusInternalServerError}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *timelineServer) handle(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/timeline/"), "/")
	if len(parts) != 3 {
		http.Error(w, "bad path", http.StatusNotFound)
		return
	}
	start, end := parts[1], parts[2]

	s.mu.Lock()
	s.windows = append(s.windows, [2]string{start, end})
	s.paths = append(s.paths, r.URL.Path)
	q := map[string]string{}
	for k := range r.URL.Query() {
		q[k] = r.URL.Query().Get(k)
	}
	s.queries = append(s.queries, q)
	failFrom, failStatus, garbage := s.failFrom, s.failStatus, s.garbage
	s.mu.Unlock()

	if failFrom == "*" || failFrom == start {
		http.Error(w, "quota exceeded", failStatus)
		return
	}
	if garbage {
		_, _ = w.Write([]byte("<html>not json</html>"))
		return
	}

	from, _ := time.Parse("2006-01-02", start)
	to, _ := time.Parse("2006-01-02", end)

	type hour struct {
		Datetime string  `json:"datetime"`
		Temp     float64 `json:"temp"`
	}
	type day struct {
		Datetime string `json:"datetime"`
		Hours    []hour `json:"hours"`
	}
	var days []day
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dd := day{Datetime: d.Format("2006-01-02")}
		for h := 0; h < 24; h++ {
			ts := d.Add(time.Duration(h) * time.Hour)
			dd.Hours = append(dd.Hours, hour{Datetime: fmt.Sprintf("%02d:00:00", h), Temp: temperatureAt(ts)})
		}
		days = append(days, dd)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"resolvedAddress": parts[0], "days": days})
}

func (s *timelineServer) fail(from string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFrom, s.failStatus = from, status
}

func (s *timelineServer) requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func newTestVisualCrossing(s *timelineServer) *VisualCrossingProvider {
	return NewVisualCrossingProvider(s.Client(), "vc-key", zap.NewNop().Sugar()).
		WithBaseURL(s.URL + "/timeline/")
}

func mustRange(t *testing.T, start, end string) energy.DateRange {
	t.Helper()
	r, err := energy.NewDateRange(start, end)
	require.NoError(t, err)
	return r
}

// expectedHours is what a single unwindowed request for r would return.
func expectedHours(r energy.DateRange) []energy.HourlyObservation {
	var out []energy.HourlyObservation
	for ts := r.Start; ts.Before(r.End.AddDate(0, 0, 1)); ts = ts.Add(time.Hour) {
		out = append(out, energy.HourlyObservation{Timestamp: ts, Value: temperatureAt(ts)})
	}
	return out
}

func TestVisualCrossing_FetchHourly_Windows(t *testing.T) {
	srv := newTimelineServer(t)
	p := newTestVisualCrossing(srv)
	r := mustRange(t, "2024-01-01", "2024-03-31")

	result, err := p.FetchHourly(context.Background(), "Chicago,IL", r)
	require.NoError(t, err)
	assert.Empty(t, result.Failed)

	assert.Equal(t, [][2]string{
		{"2024-01-01", "2024-02-10"},
		{"2024-02-11", "2024-03-22"},
		{"2024-03-23", "2024-03-31"},
	}, srv.windows)

	require.Len(t, result.Observations, 91*24)
	assert.Equal(t, expectedHours(r), result.Observations)

	for _, q := range srv.queries {
		assert.Equal(t, "vc-key", q["key"])
		assert.Equal(t, "metric", q["unitGroup"])
		assert.Equal(t, "hours", q["include"])
		assert.Equal(t, "json", q["contentType"])
	}
}

func TestVisualCrossing_FetchHourly_SingleDay(t *testing.T) {
	srv := newTimelineServer(t)
	p := newTestVisualCrossing(srv).WithUnitGroup("us")
	r := mustRange(t, "2024-06-15", "2024-06-15")

	result, err := p.FetchHourly(context.Background(), "New York, NY", r)
	require.NoError(t, err)
	assert.Len(t, result.Observations, 24)

	require.Len(t, srv.paths, 1)
	assert.Equal(t, "/timeline/New York, NY/2024-06-15/2024-06-15", srv.paths[0])
	assert.Equal(t, "us", srv.queries[0]["unitGroup"])
}

func TestVisualCrossing_FetchHourly_FailedWindowIsSkipped(t *testing.T) {
	srv := newTimelineServer(t)
	srv.fail("2024-02-11", http.StatusInternalServerError)
	p := newTestVisualCrossing(srv)
	r := mustRange(t, "2024-01-01", "2024-03-31")

	result, err := p.FetchHourly(context.Background(), "Chicago,IL", r)
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, mustRange(t, "2024-02-11", "2024-03-22"), result.Failed[0].Range)
	assert.Contains(t, result.Failed[0].Error, "500")

	assert.Len(t, result.Observations, (41+9)*24)
	for _, o := range result.Observations {
		assert.False(t, result.Failed[0].Range.Contains(o.Timestamp))
	}
	assert.Len(t, srv.windows, 3)
}

func TestVisualCrossing_FetchHourly_CircuitOpensAfterThreeFailures(t *testing.T) {
	srv := newTimelineServer(t)
	srv.fail("*", http.StatusInternalServerError)
	p := newTestVisualCrossing(srv)

	// 200 days: five windows.
	r := mustRange(t, "2024-01-01", "2024-07-18")
	require.Len(t, r.Windows(WindowDays), 5)

	result, err := p.FetchHourly(context.Background(), "Chicago,IL", r)
	require.NoError(t, err)
	assert.Empty(t, result.Observations)
	require.Len(t, result.Failed, 5)
	assert.Len(t, srv.windows, 3)
	assert.Contains(t, result.Failed[4].Error, ErrCircuitOpen.Error())
}

func TestVisualCrossing_FetchHourly_BreakerIsScopedToOneFetch(t *testing.T) {
	srv := newTimelineServer(t)
	srv.fail("*", http.StatusServiceUnavailable)
	p := newTestVisualCrossing(srv)
	r := mustRange(t, "2024-01-01", "2024-07-18")

	first, err := p.FetchHourly(context.Background(), "Nowhere", r)
	require.NoError(t, err)
	require.Len(t, first.Failed, 5)
	require.Equal(t, 3, srv.requests())

	srv.fail("", http.StatusServiceUnavailable)

	second, err := p.FetchHourly(context.Background(), "London", r)
	require.NoError(t, err)
	assert.Empty(t, second.Failed)
	assert.Len(t, second.Observations, r.Days()*24)
	assert.Equal(t, 3+5, srv.requests())
}

func TestVisualCrossing_FetchHourly_ClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := newTimelineServer(t)
	srv.fail("*", http.StatusBadRequest)
	p := newTestVisualCrossing(srv)

	result, err := p.FetchHourly(context.Background(), "Nowhere", mustRange(t, "2024-01-01", "2024-07-18"))
	require.NoError(t, err)
	require.Len(t, result.Failed, 5)
	assert.Equal(t, 5, srv.requests())
	for _, f := range result.Failed {
		assert.Contains(t, f.Error, "400")
	}
}

func TestVisualCrossing_FetchHourly_TransportErrorIsFatal(t *testing.T) {
	srv := newTimelineServer(t)
	p := newTestVisualCrossing(srv)
	srv.Close()

	_, err := p.FetchHourly(context.Background(), "Chicago,IL", mustRange(t, "2024-01-01", "2024-03-31"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnexpectedStatus)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
}

func TestVisualCrossing_FetchHourly_DecodeErrorIsFatal(t *testing.T) {
	srv := newTimelineServer(t)
	srv.garbage = true
	p := newTestVisualCrossing(srv)

	_, err := p.FetchHourly(context.Background(), "Chicago,IL", mustRange(t, "2024-01-01", "2024-01-05"))
	assert.Error(t, err)
}

func TestVisualCrossing_FetchHourly_RequiresAPIKey(t *testing.T) {
	srv := newTimelineServer(t)
	p := NewVisualCrossingProvider(srv.Client(), "", zap.NewNop().Sugar()).WithBaseURL(srv.URL + "/timeline")

	_, err := p.FetchHourly(context.Background(), "Chicago,IL", mustRange(t, "2024-01-01", "2024-01-05"))
	assert.Error(t, err)
	assert.Empty(t, srv.windows)
}

func TestParseTimeline(t *testing.T) {
	body := []byte(`{"days":[{"datetime":"2024-01-01","hours":[
		{"datetime":"00:00:00","temp":-1.5},
		{"datetime":"01:00:00","temp":null},
		{"datetime":"02:00:00","temp":0}
	]}]}`)

	obs, err := parseTimeline(body)
	require.NoError(t, err)
	assert.Equal(t, []energy.HourlyObservation{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: -1.5},
		{Timestamp: time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC), Value: 0},
	}, obs)

	_, err = parseTimeline([]byte(`{"resolvedAddress":"x"}`))
	assert.Error(t, err)

	_, err = parseTimeline([]byte(`{"days":[{"datetime":"2024-01-01","hours":[{"datetime":"noon","temp":1}]}]}`))
	assert.Error(t, err)
}
