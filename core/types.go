package core

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// CheckStatus is a closed sum type over probe outcomes.
type CheckStatus string

const (
	StatusSuccess CheckStatus = "success"
	StatusDNSError CheckStatus = "dns_error"
	StatusConnectionError CheckStatus = "connection_error"
	StatusTimeout CheckStatus = "timeout"
	StatusHTTPError CheckStatus = "http_error"
	StatusSSLError CheckStatus = "ssl_error"
	StatusWebSocketError CheckStatus = "websocket_error"
	StatusPhishingWarning CheckStatus = "phishing_warning"
	StatusSecurityWarning CheckStatus = "security_warning"
	StatusUnknownError CheckStatus = "unknown_error"
)

func (s CheckStatus) String() string { return string(s) }

// Retryable reports whether the worker pool should schedule a retry pass for
// a result carrying this status. Only timeout and connection_error qualify.
func (s CheckStatus) Retryable() bool {
	switch s {
	case StatusTimeout, StatusConnectionError:
		return true
	default:
		return false
	}
}

// NormalizeEndpoint applies scheme-inference rules to a raw
// endpoint string. Endpoints already carrying a scheme pass through
// unchanged; a bare "ws."-prefixed address becomes wss://, everything else
// becomes https://.
func NormalizeEndpoint(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	if strings.HasPrefix(raw, "ws.") {
		return "wss://" + raw
	}
	return "https://" + raw
}

// HTTPFallbackURL derives the plain-http downgrade of a normalized https
// endpoint, used when TLS verification fails and the caller allows the
// fallback. The downgrade stays invisible to the caller's
// bookkeeping, which keys on the original endpoint text, not this URL.
func HTTPFallbackURL(normalizedURL string) string {
	return "http://" + strings.TrimPrefix(normalizedURL, "https://")
}

// DomainName extracts the host portion of a normalized endpoint for display
// purposes, falling back to the input text if it doesn't parse as a URL.
func DomainName(normalizedURL string) string {
	u, err := url.Parse(normalizedURL)
	if err != nil || u.Host == "" {
		return normalizedURL
	}
	return u.Host
}

// CheckResult is an immutable record of one probe outcome.
type CheckResult struct {
	Endpoint string
	NormalizedURL string
	Status CheckStatus
	HTTPStatusCode int // 0 when the probe never received an HTTP response
	ErrorMessage string
	ResponseTimeSeconds float64
	Timestamp time.Time
}

// IsSuccess reports whether the result represents a successful probe.
func (r CheckResult) IsSuccess() bool { return r.Status == StatusSuccess }

// HasHTTPStatusCode reports whether the probe reached the HTTP status line.
func (r CheckResult) HasHTTPStatusCode() bool { return r.HTTPStatusCode != 0 }

// FailureBucket is a display grouping derived from a non-success CheckResult,
// consumed only by the message formatter.
type FailureBucket string

const (
	BucketCloudflareError FailureBucket = "cloudflare_error"
	BucketGatewayError FailureBucket = "gateway_error"
	BucketServerError FailureBucket = "server_error"
	BucketAccessDenied FailureBucket = "access_denied"
	BucketNotFound FailureBucket = "not_found"
	BucketBadRequest FailureBucket = "bad_request"
)

// DeriveFailureBucket implements the bucket table over a non-success
// result. Callers should not invoke this on a successful CheckResult.
func DeriveFailureBucket(r CheckResult) FailureBucket {
	switch {
	case r.HTTPStatusCode >= 520 && r.HTTPStatusCode <= 526:
		return BucketCloudflareError
	case r.HTTPStatusCode == 502 || r.HTTPStatusCode == 503 || r.HTTPStatusCode == 504:
		return BucketGatewayError
	case r.HTTPStatusCode == 500:
		return BucketServerError
	case r.HTTPStatusCode == 401 || r.HTTPStatusCode == 403 || r.HTTPStatusCode == 451:
		return BucketAccessDenied
	case r.HTTPStatusCode == 404:
		return BucketNotFound
	case r.HTTPStatusCode == 400 || r.HTTPStatusCode == 429:
		return BucketBadRequest
	case r.HTTPStatusCode > 0:
		return FailureBucket(fmt.Sprintf("http_%d", r.HTTPStatusCode))
	default:
		return FailureBucket(r.Status)
	}
}

// FailureBucketOrder is the fixed section order the message formatter
// renders buckets in: the six HTTP-derived buckets first, then the non-HTTP
// CheckStatus values in display order.
var FailureBucketOrder = []FailureBucket{
	BucketCloudflareError,
	BucketGatewayError,
	BucketServerError,
	BucketAccessDenied,
	BucketNotFound,
	BucketBadRequest,
	FailureBucket(StatusDNSError),
	FailureBucket(StatusConnectionError),
	FailureBucket(StatusTimeout),
	FailureBucket(StatusHTTPError),
	FailureBucket(StatusSSLError),
	FailureBucket(StatusWebSocketError),
	FailureBucket(StatusPhishingWarning),
	FailureBucket(StatusSecurityWarning),
	FailureBucket(StatusUnknownError),
}

// HistoryRecord is an append-only entry in TrackerState.History.
type HistoryRecord struct {
	Endpoint string
	StatusOrRecovered string // a CheckStatus value, or the literal "recovered"
	ErrorClass string
	Timestamp time.Time
	Acknowledged bool
	AckTimestamp *time.Time
	Note string
}

// TrackerState is the durable state guarded by the tracker's single mutex.
// CurrentErrors and PreviousErrors are keyed by endpoint.
type TrackerState struct {
	CurrentErrors map[string]CheckResult
	PreviousErrors map[string]CheckResult
	Acknowledged map[string]struct{}
	History []HistoryRecord
}

// NewTrackerState returns an empty, ready-to-use TrackerState.
func NewTrackerState() *TrackerState {
	return &TrackerState{
		CurrentErrors: make(map[string]CheckResult),
		PreviousErrors: make(map[string]CheckResult),
		Acknowledged: make(map[string]struct{}),
	}
}

// LastStatusCache tracks the last-seen success/failure per endpoint for
// batch-local recovery detection. Capped at DefaultStatusCacheCap
// entries; once full, the oldest half (by insertion order) is evicted.
type LastStatusCache struct {
	mu sync.Mutex
	values map[string]bool
	order []string
}

// NewLastStatusCache returns an empty cache.
func NewLastStatusCache() *LastStatusCache {
	return &LastStatusCache{values: make(map[string]bool)}
}

// Get returns the last recorded success flag for endpoint and whether one exists.
func (c *LastStatusCache) Get(endpoint string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[endpoint]
	return v, ok
}

// Set records the latest success flag for endpoint, evicting the oldest half
// of entries by insertion order once the cap is exceeded.
func (c *LastStatusCache) Set(endpoint string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.values[endpoint]; !exists {
		c.order = append(c.order, endpoint)
	}
	c.values[endpoint] = success
	if len(c.order) > DefaultStatusCacheCap {
		evict := len(c.order) / 2
		for _, e := range c.order[:evict] {
			delete(c.values, e)
		}
		remaining := make([]string, len(c.order)-evict)
		copy(remaining, c.order[evict:])
		c.order = remaining
	}
}

// Len reports the current number of cached endpoints.
func (c *LastStatusCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// ExecutionConfig is the flattened, immutable snapshot of cycle parameters
// the scheduler and worker pool consume fresh at the start of every cycle
//. The gateway boundary produces one from the live configuration
// document; nothing downstream mutates it.
type ExecutionConfig struct {
	IntervalMinutes int
	TimeoutSeconds int
	RetryCount int
	RetryDelaySeconds int
	MaxConcurrent int
	AutoAdjust bool
	BatchNotify bool
	ShowETA bool
	NotificationLevel string
	FailureThreshold int
	DailyReportTime string // empty when the daily report task is disabled
}
