// Package rest implements the provider gateway against HTTP JSON aggregate
// APIs. It is the production path for cloud telemetry providers: one GET per
// aggregate query, rate limited per gateway instance and retried with
// exponential backoff on transport failures.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
	"github.com/ahrav/telemetry-armada/pkg/common"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRPS        = 10
	defaultBurst      = 5
	defaultMaxRetries = 3
)

// Config holds the connection settings for one aggregate provider endpoint.
type Config struct {
	// BaseURL is the provider root, e.g. "https://telemetry.example.com".
	BaseURL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// Timeout bounds a single HTTP request, not the whole fetch.
	Timeout time.Duration
	// RequestsPerSecond and Burst feed the gateway's rate limiter.
	RequestsPerSecond float64
	Burst             int
	// MaxRetries bounds transport-level retries within one fetch. Attempt
	// scheduling across fetches is the coordinator's job, not the gateway's.
	MaxRetries uint64
}

// Gateway fetches device aggregates from an HTTP JSON provider. It implements
// telemetry.ProviderGateway.
type Gateway struct {
	baseURL     *url.URL
	apiKey      string
	httpClient  *http.Client
	rateLimiter *common.RateLimiter
	maxRetries  uint64
	tracer      trace.Tracer
}

var _ telemetry.ProviderGateway = (*Gateway)(nil)

// New creates a REST gateway for the given provider endpoint. The HTTP client
// is instrumented with otelhttp so provider calls show up in traces.
func New(cfg Config, tracer trace.Tracer) (*Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rest gateway requires a base URL")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}

	return &Gateway{
		baseURL: base,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		rateLimiter: common.NewRateLimiter(rps, burst),
		maxRetries:  maxRetries,
		tracer:      tracer,
	}, nil
}

// aggregatesResponse is the provider's JSON body for one aggregate query.
// Statistic arrays are aligned with timestamps; a null entry marks an empty
// bucket. A statistic the provider omits entirely becomes a series of empty
// buckets.
type aggregatesResponse struct {
	Series   map[string]seriesPayload  `json:"series"`
	Currents map[string]currentPayload `json:"currents"`
}

type seriesPayload struct {
	Timestamps []int64                 `json:"timestamps"`
	Count      []*float64              `json:"count"`
	Min        []*float64              `json:"min"`
	Max        []*float64              `json:"max"`
	Avg        []*float64              `json:"avg"`
	Sum        []*float64              `json:"sum"`
	StdDev     []*float64              `json:"stddev"`
	Ranges     map[string]rangePayload `json:"ranges,omitempty"`
}

type rangePayload struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type currentPayload struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// FetchAggregates executes one aggregate query against the provider and
// returns the result stamped with the query's fetch sequence. Transport
// errors and retryable status codes are retried with exponential backoff up
// to the configured bound; everything else fails immediately.
func (g *Gateway) FetchAggregates(ctx context.Context, query telemetry.AggregateQuery) (telemetry.DeviceAggregates, error) {
	ctx, span := g.tracer.Start(ctx, "rest_gateway.fetch_aggregates",
		trace.WithAttributes(
			attribute.String("device_id", query.DeviceID()),
			attribute.Int("property_count", len(query.PropertyIDs())),
			attribute.String("window", query.Window().Key()),
			attribute.Int64("fetch_seq", int64(query.FetchSeq())),
			attribute.Int("attempt", query.Attempt()),
		))
	defer span.End()

	if err := g.rateLimiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return telemetry.DeviceAggregates{}, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var resp aggregatesResponse
	operation := func() error {
		r, err := g.doAggregatesRequest(ctx, query)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 250 * time.Millisecond
	expBackoff.MaxInterval = 2 * time.Second
	expBackoff.MaxElapsedTime = 0 // bounded by retry count and context

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(expBackoff, g.maxRetries), ctx)); err != nil {
		span.RecordError(err)
		return telemetry.DeviceAggregates{}, err
	}

	result, err := g.toDeviceAggregates(query, resp)
	if err != nil {
		span.RecordError(err)
		return telemetry.DeviceAggregates{}, err
	}

	span.SetAttributes(attribute.Int("series_count", len(result.Series())))
	return result, nil
}

// doAggregatesRequest performs a single HTTP round trip. Errors wrapped with
// backoff.Permanent abort the retry loop.
func (g *Gateway) doAggregatesRequest(ctx context.Context, query telemetry.AggregateQuery) (aggregatesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.aggregatesURL(query), nil)
	if err != nil {
		return aggregatesResponse{}, backoff.Permanent(fmt.Errorf("failed to create aggregates request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return aggregatesResponse{}, fmt.Errorf("aggregates request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("non-200 response from aggregates API: %d %s", resp.StatusCode, string(data))
		if retryableStatus(resp.StatusCode) {
			return aggregatesResponse{}, err
		}
		return aggregatesResponse{}, backoff.Permanent(err)
	}

	g.updateQuota(resp.Header)

	var out aggregatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return aggregatesResponse{}, backoff.Permanent(fmt.Errorf("failed to decode aggregates response: %w", err))
	}
	return out, nil
}

// updateQuota retunes the rate limiter from the provider's quota headers so
// sustained fetching tracks the remaining allowance instead of the static
// configured rate. Responses without the headers leave the limits untouched.
func (g *Gateway) updateQuota(headers http.Header) {
	remaining, _ := strconv.ParseInt(headers.Get("X-RateLimit-Remaining"), 10, 64)
	reset, _ := strconv.ParseInt(headers.Get("X-RateLimit-Reset"), 10, 64)
	limit, _ := strconv.ParseInt(headers.Get("X-RateLimit-Limit"), 10, 64)
	if remaining <= 0 || reset <= 0 || limit <= 0 {
		return
	}

	window := time.Until(time.Unix(reset, 0))
	if window <= 0 {
		return
	}

	// Spread the remaining allowance across the rest of the window at a
	// safe margin.
	rps := float64(remaining) / window.Seconds() * 0.9
	burst := int(remaining / 10)
	if burst < 1 {
		burst = 1
	}
	g.rateLimiter.UpdateLimits(rps, burst)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// aggregatesURL builds the query URL:
// {base}/v1/devices/{device}/aggregates?property=...&from=...&to=...&resolution=...
func (g *Gateway) aggregatesURL(query telemetry.AggregateQuery) string {
	u := *g.baseURL
	u.Path = path.Join(u.Path, "v1", "devices", query.DeviceID(), "aggregates")

	w := query.Window()
	q := url.Values{}
	for _, id := range query.PropertyIDs() {
		q.Add("property", id)
	}
	q.Set("from", strconv.FormatInt(w.StartSecond(), 10))
	q.Set("to", strconv.FormatInt(w.EndSecond(), 10))
	q.Set("resolution", string(w.Resolution()))
	u.RawQuery = q.Encode()

	return u.String()
}

// toDeviceAggregates converts the wire payload into the domain result,
// stamped with the query's fetch sequence.
func (g *Gateway) toDeviceAggregates(query telemetry.AggregateQuery, resp aggregatesResponse) (telemetry.DeviceAggregates, error) {
	series := make(map[string]*telemetry.AggregateSeries, len(resp.Series))
	for propertyID, p := range resp.Series {
		s, err := p.toSeries()
		if err != nil {
			return telemetry.DeviceAggregates{}, fmt.Errorf("property %s: %w", propertyID, err)
		}
		series[propertyID] = s
	}

	currents := make(map[string]telemetry.CurrentValue, len(resp.Currents))
	for propertyID, c := range resp.Currents {
		currents[propertyID] = telemetry.CurrentValue{
			Timestamp: time.Unix(c.Timestamp, 0).UTC(),
			Value:     c.Value,
		}
	}

	return telemetry.NewDeviceAggregates(query.DeviceID(), query.Window(), query.FetchSeq(), series, currents), nil
}

func (p seriesPayload) toSeries() (*telemetry.AggregateSeries, error) {
	n := len(p.Timestamps)
	ranges := make(map[string]telemetry.ValueRange, len(p.Ranges))
	for name, r := range p.Ranges {
		ranges[name] = telemetry.ValueRange{Min: r.Min, Max: r.Max}
	}

	s, err := telemetry.NewAggregateSeries(
		p.Timestamps,
		padded(p.Count, n),
		padded(p.Min, n),
		padded(p.Max, n),
		padded(p.Avg, n),
		padded(p.Sum, n),
		padded(p.StdDev, n),
		ranges,
	)
	if err != nil {
		return nil, err
	}

	// Providers that do not report ranges get them derived from the buckets.
	if len(ranges) == 0 {
		s = s.WithRanges(telemetry.ComputeRanges(s))
	}
	return s, nil
}

// padded returns the slice unchanged when present, or an all-empty slice when
// the provider omitted the statistic entirely. Misaligned non-nil slices are
// left for the series constructor to reject.
func padded(s []*float64, n int) []*float64 {
	if s == nil {
		return make([]*float64, n)
	}
	return s
}
