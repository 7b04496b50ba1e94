package probe

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/opsmind/pulseguard/core"
)

type errPattern struct {
	substrings []string
	status core.CheckStatus
}

// httpErrorPatterns implements the substring classification table, in
// priority order. Timeouts are checked separately, ahead of this table, via
// errors.Is/net.Error since "context deadline exceeded" and "i/o timeout"
// don't always surface the literal word in every OS error string.
var httpErrorPatterns = []errPattern{
	{[]string{"name or service not known", "getaddrinfo failed", "nxdomain", "no such host", "cannot resolve"}, core.StatusDNSError},
	{[]string{"connection refused", "network unreachable", "connection reset", "connection aborted"}, core.StatusConnectionError},
	{[]string{"ssl", "tls", "certificate", "handshake", "verify"}, core.StatusSSLError},
}

// ClassifyHTTPError maps a transport error from an HTTP probe to a
// CheckStatus and the message to retain, per the substring table.
func ClassifyHTTPError(err error) (core.CheckStatus, string) {
	msg := err.Error()
	lower := strings.ToLower(msg)

	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(lower, "timeout") {
		return core.StatusTimeout, msg
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.StatusTimeout, msg
	}

	for _, p := range httpErrorPatterns {
		for _, s := range p.substrings {
			if strings.Contains(lower, s) {
				return p.status, msg
			}
		}
	}
	return core.StatusUnknownError, msg
}
