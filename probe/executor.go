// Package probe issues single reachability probes — HTTP(S) or WebSocket —
// and classifies their outcome against the failure taxonomy.
package probe

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/pkg/logger"
)

// successHTTPStatus is the set of HTTP status codes a probe treats as success.
var successHTTPStatus = map[int]bool{
	200: true, 201: true, 202: true, 203: true, 204: true,
	301: true, 302: true, 303: true, 304: true, 307: true, 308: true,
	401: true, 403: true,
}

// Executor owns the two pooled HTTP clients — one TLS-verifying, one not —
// that every probe issued through it shares, and rebuilds them whenever the
// concurrency width changes.
type Executor struct {
	mu sync.RWMutex
	verifying *http.Client
	nonVerifying *http.Client
	maxConcurrent int
	log logger.Logger
}

// NewExecutor returns an Executor sized for maxConcurrent simultaneous probes.
func NewExecutor(maxConcurrent int, log logger.Logger) *Executor {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	e := &Executor{log: log}
	e.rebuild(maxConcurrent)
	return e
}

func (e *Executor) rebuild(maxConcurrent int) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	maxConns := 2 * maxConcurrent
	e.verifying = newPooledClient(maxConns, false)
	e.nonVerifying = newPooledClient(maxConns, true)
	e.maxConcurrent = maxConcurrent
}

func newPooledClient(maxConns int, skipVerify bool) *http.Client {
	transport := &http.Transport{
		MaxIdleConns: maxConns,
		MaxIdleConnsPerHost: maxConns,
		MaxConnsPerHost: maxConns,
		IdleConnTimeout: 30 * time.Second,
	}
	if skipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{Transport: transport}
}

// Resize rebuilds the client pools for a new concurrency width.
// A no-op if the width is unchanged.
func (e *Executor) Resize(maxConcurrent int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if maxConcurrent == e.maxConcurrent {
		return
	}
	e.log.Info("resizing probe client pools", "max_concurrent", maxConcurrent)
	e.rebuild(maxConcurrent)
}

// MaxConcurrent reports the width the pools are currently sized for.
func (e *Executor) MaxConcurrent() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.maxConcurrent
}

// Probe issues one probe against endpoint and classifies the outcome. At
// most one TCP connection and one redirect chain are involved; no retries
// happen here, that's the worker pool's job. The one exception: when
// allowHTTPFallback is set and a bare address (no scheme given) fails with a
// TLS error, it is probed once more over plain http on a non-verifying
// client, and that result replaces the first.
func (e *Executor) Probe(ctx context.Context, endpoint string, timeout time.Duration, allowHTTPFallback bool) core.CheckResult {
	normalized := core.NormalizeEndpoint(endpoint)

	if strings.HasPrefix(normalized, "ws://") || strings.HasPrefix(normalized, "wss://") {
		return e.probeWebSocket(ctx, endpoint, normalized, timeout)
	}

	result := e.probeHTTP(ctx, endpoint, normalized, timeout, false)
	bare := !strings.Contains(endpoint, "://")
	if result.Status == core.StatusSSLError && allowHTTPFallback && bare && strings.HasPrefix(normalized, "https://") {
		result = e.probeHTTP(ctx, endpoint, core.HTTPFallbackURL(normalized), timeout, true)
	}
	return result
}

func (e *Executor) probeHTTP(ctx context.Context, endpoint, url string, timeout time.Duration, skipVerify bool) core.CheckResult {
	e.mu.RLock()
	client := e.verifying
	if skipVerify {
		client = e.nonVerifying
	}
	e.mu.RUnlock()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return core.CheckResult{
			Endpoint: endpoint, NormalizedURL: url, Status: core.StatusUnknownError,
			ErrorMessage: err.Error(), Timestamp: time.Now(),
		}
	}

	resp, err := client.Do(req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		status, msg := ClassifyHTTPError(err)
		return core.CheckResult{
			Endpoint: endpoint, NormalizedURL: url, Status: status,
			ErrorMessage: msg, ResponseTimeSeconds: elapsed, Timestamp: time.Now(),
		}
	}
	defer resp.Body.Close()

	if status := classifyContent(resp); status != "" {
		return core.CheckResult{
			Endpoint: endpoint, NormalizedURL: url, Status: status,
			HTTPStatusCode: resp.StatusCode, ResponseTimeSeconds: elapsed, Timestamp: time.Now(),
		}
	}

	if successHTTPStatus[resp.StatusCode] {
		return core.CheckResult{
			Endpoint: endpoint, NormalizedURL: url, Status: core.StatusSuccess,
			HTTPStatusCode: resp.StatusCode, ResponseTimeSeconds: elapsed, Timestamp: time.Now(),
		}
	}
	return core.CheckResult{
		Endpoint: endpoint, NormalizedURL: url, Status: core.StatusHTTPError,
		HTTPStatusCode: resp.StatusCode, ResponseTimeSeconds: elapsed, Timestamp: time.Now(),
	}
}

func (e *Executor) probeWebSocket(ctx context.Context, endpoint, normalized string, timeout time.Duration) core.CheckResult {
	dialer := &websocket.Dialer{HandshakeTimeout: timeout}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, resp, err := dialer.DialContext(dialCtx, normalized, nil)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return core.CheckResult{
			Endpoint: endpoint, NormalizedURL: normalized, Status: classifyWebSocketError(err),
			ErrorMessage: err.Error(), ResponseTimeSeconds: elapsed, Timestamp: time.Now(),
		}
	}
	if resp != nil {
		resp.Body.Close()
	}

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	return core.CheckResult{
		Endpoint: endpoint, NormalizedURL: normalized, Status: core.StatusSuccess,
		ResponseTimeSeconds: elapsed, Timestamp: time.Now(),
	}
}

func classifyWebSocketError(err error) core.CheckStatus {
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "no such host"), strings.Contains(lower, "name or service not known"),
		strings.Contains(lower, "nxdomain"), strings.Contains(lower, "cannot resolve"):
		return core.StatusDNSError
	case strings.Contains(lower, "ssl"), strings.Contains(lower, "tls"),
		strings.Contains(lower, "certificate"), strings.Contains(lower, "x509"):
		return core.StatusSSLError
	default:
		return core.StatusWebSocketError
	}
}
