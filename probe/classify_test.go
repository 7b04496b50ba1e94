package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsmind/pulseguard/core"
)

func TestClassifyHTTPError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want core.CheckStatus
	}{
		{"dns no such host", errors.New("dial tcp: lookup foo.example: no such host"), core.StatusDNSError},
		{"dns nxdomain", errors.New("lookup foo: NXDOMAIN"), core.StatusDNSError},
		{"connection refused", errors.New("dial tcp 127.0.0.1:80: connect: connection refused"), core.StatusConnectionError},
		{"connection reset", errors.New("read: connection reset by peer"), core.StatusConnectionError},
		{"timeout substring", errors.New("Get \"https://x\": request timeout"), core.StatusTimeout},
		{"deadline exceeded", context.DeadlineExceeded, core.StatusTimeout},
		{"tls handshake", errors.New("x509: certificate signed by unknown authority"), core.StatusSSLError},
		{"ssl verify failure", errors.New("tls: failed to verify certificate"), core.StatusSSLError},
		{"unrecognized", errors.New("something unexpected happened"), core.StatusUnknownError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, msg := ClassifyHTTPError(tc.err)
			assert.Equal(t, tc.want, status)
			assert.Equal(t, tc.err.Error(), msg)
		})
	}
}
