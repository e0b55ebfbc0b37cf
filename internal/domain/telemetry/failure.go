package telemetry

import "time"

// FetchFailure records a query whose retries were exhausted. The cache keeps
// it as diagnostic state: lookups for the affected slots still report absent
// and re-trigger a request, but callers can inspect why data is missing.
type FetchFailure struct {
	DeviceID    string
	PropertyIDs []string
	Window      TimeWindow
	Attempts    int
	Reason      string
	OccurredAt  time.Time
}
