package metrics

import "time"

// RequestResult is the outcome of a single HTTP request made by a virtual user.
type RequestResult struct {
	VUID          int           `json:"vuId"`
	Iteration     int64         `json:"iteration"`
	Name          string        `json:"name"`
	Method        string        `json:"method"`
	Path          string        `json:"path"`
	StartTime     time.Time     `json:"startTime"`
	Duration      time.Duration `json:"duration"`
	StatusCode    int           `json:"statusCode"`
	BytesReceived int64         `json:"bytesReceived"`
	Error         error         `json:"-"`
}

// Success reports whether the request got a response with a non-error status.
func (r RequestResult) Success() bool {
	return r.Error == nil && r.StatusCode > 0 && r.StatusCode < 400
}

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	// TotalRequests is the total number of requests made
	TotalRequests int64 `json:"totalRequests"`

	// SuccessRequests is the number of requests answered with status < 400
	SuccessRequests int64 `json:"successRequests"`

	// FailedRequests counts transport errors and status >= 400
	FailedRequests int64 `json:"failedRequests"`

	// TotalBytes is the total bytes received
	TotalBytes int64 `json:"totalBytes"`

	Latency LatencyStats `json:"latency"`

	// RPS is requests per second over the elapsed time
	RPS float64 `json:"rps"`

	// ErrorRate is the fraction of failed requests (0.0 to 1.0)
	ErrorRate float64 `json:"errorRate"`

	ActiveVUs int `json:"activeVUs"`

	// StatusCodes counts responses per HTTP status; transport errors are keyed 0
	StatusCodes map[int]int64 `json:"statusCodes,omitempty"`

	Elapsed   time.Duration `json:"elapsed"`
	StartTime time.Time     `json:"startTime"`
	Timestamp time.Time     `json:"timestamp"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}
