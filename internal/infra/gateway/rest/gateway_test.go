package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
)

func fp(v float64) *float64 { return &v }

func testQuery(t *testing.T) telemetry.AggregateQuery {
	t.Helper()
	window, err := telemetry.NewTimeWindow(1700000000, 1700003600, telemetry.ResolutionQuarterHour)
	require.NoError(t, err)
	return telemetry.NewAggregateQuery("dev-1", []string{"temp", "power"}, window, 7)
}

func newTestGateway(t *testing.T, cfg Config) *Gateway {
	t.Helper()
	gw, err := New(cfg, noop.NewTracerProvider().Tracer("test"))
	require.NoError(t, err)
	return gw
}

func TestFetchAggregatesSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()

		resp := aggregatesResponse{
			Series: map[string]seriesPayload{
				"temp": {
					Timestamps: []int64{1700000000, 1700000900},
					Count:      []*float64{fp(4), fp(4)},
					Min:        []*float64{fp(19.5), nil},
					Max:        []*float64{fp(22.0), fp(21.0)},
					Avg:        []*float64{fp(20.75), fp(20.5)},
					Sum:        []*float64{fp(83.0), fp(82.0)},
					StdDev:     []*float64{fp(0.9), fp(0.2)},
					Ranges: map[string]rangePayload{
						telemetry.SeriesAvg: {Min: 20.5, Max: 20.75},
					},
				},
			},
			Currents: map[string]currentPayload{
				"temp": {Timestamp: 1700001234, Value: 21.5},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	gw := newTestGateway(t, Config{BaseURL: server.URL, APIKey: "secret"})
	query := testQuery(t)

	result, err := gw.FetchAggregates(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, "/v1/devices/dev-1/aggregates", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, []string{"temp", "power"}, gotQuery["property"])
	assert.Equal(t, []string{"1700000000"}, gotQuery["from"])
	assert.Equal(t, []string{"1700003600"}, gotQuery["to"])
	assert.Equal(t, []string{"15m"}, gotQuery["resolution"])

	assert.Equal(t, "dev-1", result.DeviceID())
	assert.True(t, result.Window().Equals(query.Window()))
	assert.Equal(t, uint64(7), result.FetchSeq(), "result must carry the query's fetch sequence")

	s, ok := result.Series()["temp"]
	require.True(t, ok)
	assert.Equal(t, []int64{1700000000, 1700000900}, s.Timestamps())
	assert.Nil(t, s.Mins()[1], "null wire entries stay empty buckets")
	avgRange, ok := s.RangeFor(telemetry.SeriesAvg)
	require.True(t, ok)
	assert.Equal(t, telemetry.ValueRange{Min: 20.5, Max: 20.75}, avgRange)

	cv, ok := result.Currents()["temp"]
	require.True(t, ok)
	assert.Equal(t, time.Unix(1700001234, 0).UTC(), cv.Timestamp)
	assert.Equal(t, 21.5, cv.Value)
}

func TestFetchAggregatesDerivesRanges(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := aggregatesResponse{
			Series: map[string]seriesPayload{
				"temp": {
					Timestamps: []int64{1700000000, 1700000900, 1700001800},
					Avg:        []*float64{fp(10), nil, fp(30)},
				},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	gw := newTestGateway(t, Config{BaseURL: server.URL})

	result, err := gw.FetchAggregates(context.Background(), testQuery(t))
	require.NoError(t, err)

	s := result.Series()["temp"]
	require.NotNil(t, s)

	avgRange, ok := s.RangeFor(telemetry.SeriesAvg)
	require.True(t, ok, "missing ranges are derived from the buckets")
	assert.Equal(t, telemetry.ValueRange{Min: 10, Max: 30}, avgRange)

	_, ok = s.RangeFor(telemetry.SeriesSum)
	assert.False(t, ok, "all-empty series produce no range")
}

func TestFetchAggregatesOmittedStatistic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := aggregatesResponse{
			Series: map[string]seriesPayload{
				"power": {
					Timestamps: []int64{1700000000, 1700000900},
					Avg:        []*float64{fp(480), fp(520)},
				},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	gw := newTestGateway(t, Config{BaseURL: server.URL})

	result, err := gw.FetchAggregates(context.Background(), testQuery(t))
	require.NoError(t, err)

	s := result.Series()["power"]
	require.NotNil(t, s)
	require.Len(t, s.StdDevs(), 2, "omitted statistics stay aligned with timestamps")
	assert.Nil(t, s.StdDevs()[0])
	assert.Nil(t, s.StdDevs()[1])
}

func TestFetchAggregatesMisalignedSeriesRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := aggregatesResponse{
			Series: map[string]seriesPayload{
				"temp": {
					Timestamps: []int64{1700000000, 1700000900},
					Avg:        []*float64{fp(10)},
				},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	gw := newTestGateway(t, Config{BaseURL: server.URL})

	_, err := gw.FetchAggregates(context.Background(), testQuery(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "property temp")
}

func TestFetchAggregatesRetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(aggregatesResponse{}))
	}))
	defer server.Close()

	gw := newTestGateway(t, Config{BaseURL: server.URL, MaxRetries: 3})

	result, err := gw.FetchAggregates(context.Background(), testQuery(t))
	require.NoError(t, err)
	assert.Equal(t, int32(3), requests.Load())
	assert.Equal(t, uint64(7), result.FetchSeq())
}

func TestFetchAggregatesDoesNotRetryClientErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "unknown device", http.StatusNotFound)
	}))
	defer server.Close()

	gw := newTestGateway(t, Config{BaseURL: server.URL, MaxRetries: 3})

	_, err := gw.FetchAggregates(context.Background(), testQuery(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-200 response")
	assert.Equal(t, int32(1), requests.Load(), "4xx responses must not be retried")
}

func TestFetchAggregatesExhaustsRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	gw := newTestGateway(t, Config{BaseURL: server.URL, MaxRetries: 2})

	_, err := gw.FetchAggregates(context.Background(), testQuery(t))
	require.Error(t, err)
	assert.Equal(t, int32(3), requests.Load(), "initial attempt plus two retries")
}

func TestFetchAggregatesContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gw := newTestGateway(t, Config{BaseURL: server.URL, MaxRetries: 10})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.FetchAggregates(ctx, testQuery(t))
	require.Error(t, err)
}

func TestFetchAggregatesAdoptsQuotaHeaders(t *testing.T) {
	reset := time.Now().Add(10 * time.Second).Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "90000")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
		w.Header().Set("X-RateLimit-Limit", "100000")
		require.NoError(t, json.NewEncoder(w).Encode(aggregatesResponse{}))
	}))
	defer server.Close()

	// One token of headroom: without retuning from the quota headers the
	// second fetch would wait hours for the next token.
	gw := newTestGateway(t, Config{BaseURL: server.URL, RequestsPerSecond: 0.0001, Burst: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := gw.FetchAggregates(ctx, testQuery(t))
	require.NoError(t, err)

	_, err = gw.FetchAggregates(ctx, testQuery(t))
	require.NoError(t, err, "quota headers must retune the limiter")
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{}, noop.NewTracerProvider().Tracer("test"))
	require.Error(t, err)
}
