package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/energy-demand-features/internal/common"
	"github.com/i474232898/energy-demand-features/internal/energy"
)

const (
	eiaBaseURL = "https://api.eia.gov/v2/electricity/rto/region-data/data/"

	// eiaRowLimit is the API's per-response row cap. Responses of exactly this
	// size are probably truncated.
	eiaRowLimit = 5000
)

// EIAProvider fetches hourly demand (series type D) for one balancing
// authority from the EIA v2 region-data API in a single request.
type EIAProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	circuits map[string]*gobreaker.CircuitBreaker // per respondent
}

func NewEIAProvider(client *http.Client, apiKey string, logger *zap.SugaredLogger) *EIAProvider {
	return &EIAProvider{
		name:     "eia",
		apiKey:   apiKey,
		baseURL:  eiaBaseURL,
		client:   client,
		logger:   logger,
		circuits: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// circuit returns the breaker of one respondent, creating it on first use.
func (p *EIAProvider) circuit(respondent string) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	cb, ok := p.circuits[respondent]
	if !ok {
		cb = newCircuitBreaker(p.name+":"+respondent, 3)
		p.circuits[respondent] = cb
	}
	return cb
}

// WithBaseURL overrides the region-data endpoint.
func (p *EIAProvider) WithBaseURL(baseURL string) *EIAProvider {
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

func (p *EIAProvider) Name() string {
	return p.name
}

// FetchDemand returns the raw demand rows for respondent over r, sorted
// descending by period.
//
// A non-success answer is logged and reported as energy.ErrNoDemandData;
// callers must check for it before merging.
func (p *EIAProvider) FetchDemand(ctx context.Context, respondent string, r energy.DateRange) ([]energy.DemandRow, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("eia api key is not configured")
	}

	p.logger.Infow("fetching demand", "respondent", respondent,
		"start", common.FormatDate(r.Start), "end", common.FormatDate(r.End))

	body, err := doRequest(ctx, p.client, p.circuit(respondent), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, p.requestURL(respondent, r), nil)
	})
	if err != nil {
		if errors.Is(err, ErrUnexpectedStatus) || errors.Is(err, ErrCircuitOpen) {
			p.logger.Errorw("demand request failed", "respondent", respondent,
				"status", StatusCode(err), "error", err)
			return nil, fmt.Errorf("%w: %w", energy.ErrNoDemandData, err)
		}
		return nil, fmt.Errorf("demand request for %s: %w", respondent, err)
	}

	rows, err := parseRegionData(body)
	if err != nil {
		return nil, fmt.Errorf("demand response for %s: %w", respondent, err)
	}
	if len(rows) >= eiaRowLimit {
		p.logger.Warnw("demand response hit the row limit; data may be truncated",
			"respondent", respondent, "rows", len(rows))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Period > rows[j].Period
	})
	return rows, nil
}

// requestURL covers every hour of the inclusive date range.
func (p *EIAProvider) requestURL(respondent string, r energy.DateRange) string {
	values := url.Values{}
	values.Set("api_key", p.apiKey)
	values.Set("frequency", "hourly")
	values.Set("data[0]", "value")
	values.Set("start", common.FormatDate(r.Start)+"T00")
	values.Set("end", common.FormatDate(r.End)+"T23")
	values.Set("sort[0][column]", "period")
	values.Set("sort[0][direction]", "desc")
	values.Set("facets[type][]", "D")
	values.Set("facets[respondent][]", respondent)

	sep := "?"
	if strings.Contains(p.baseURL, "?") {
		sep = "&"
	}
	return p.baseURL + sep + values.Encode()
}

// parseRegionData decodes response.data. The value field arrives as a
// number, a numeric string or null depending on the series; it is kept as
// text and coerced later.
func parseRegionData(body []byte) ([]energy.DemandRow, error) {
	var payload struct {
		Response *struct {
			Data []struct {
				Period         string          `json:"period"`
				Respondent     string          `json:"respondent"`
				RespondentName string          `json:"respondent-name"`
				Type           string          `json:"type"`
				TypeName       string          `json:"type-name"`
				Value          json.RawMessage `json:"value"`
				ValueUnits     string          `json:"value-units"`
			} `json:"data"`
		} `json:"response"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding region data: %w", err)
	}
	if payload.Response == nil || payload.Response.Data == nil {
		return nil, fmt.Errorf("decoding region data: missing response.data")
	}

	rows := make([]energy.DemandRow, 0, len(payload.Response.Data))
	for _, d := range payload.Response.Data {
		rows = append(rows, energy.DemandRow{
			Period:         d.Period,
			Respondent:     d.Respondent,
			RespondentName: d.RespondentName,
			Type:           d.Type,
			TypeName:       d.TypeName,
			Value:          rawValueText(d.Value),
			ValueUnits:     d.ValueUnits,
		})
	}
	return rows, nil
}

func rawValueText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
