package format

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/tracker"
)

func TestFullSummary_AllHealthy(t *testing.T) {
	f := NewFormatter()
	results := []core.CheckResult{
		{Endpoint: "a.com", NormalizedURL: "https://a.com", Status: core.StatusSuccess},
	}
	pages := f.FullSummary(results, time.Time{}, false)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0], "All 1 endpoints healthy")
}

func TestFullSummary_GroupsByBucket(t *testing.T) {
	f := NewFormatter()
	results := []core.CheckResult{
		{Endpoint: "a.com", NormalizedURL: "https://a.com", Status: core.StatusHTTPError, HTTPStatusCode: 522},
		{Endpoint: "b.com", NormalizedURL: "https://b.com", Status: core.StatusDNSError},
	}
	pages := f.FullSummary(results, time.Now().Add(5*time.Minute), true)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0], "Cloudflare Errors")
	assert.Contains(t, pages[0], "522 connection timeout")
	assert.Contains(t, pages[0], "DNS Errors")
	assert.Contains(t, pages[0], "next run")
}

func TestDelta_NewAndRecovered(t *testing.T) {
	f := NewFormatter()
	diff := tracker.Diff{
		NewErrors: []core.CheckResult{{Endpoint: "a.com", NormalizedURL: "https://a.com", Status: core.StatusTimeout}},
		Recovered: []core.CheckResult{{Endpoint: "b.com", NormalizedURL: "https://b.com", Status: core.StatusSuccess}},
	}
	pages := f.Delta(diff, map[string]int{"a.com": 3}, 0)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0], "New problems")
	assert.Contains(t, pages[0], "×3")
	assert.Contains(t, pages[0], "Recovered")
}

func TestDelta_PersistentReminderOnly(t *testing.T) {
	f := NewFormatter()
	pages := f.Delta(tracker.Diff{}, nil, 4)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0], "4 unacknowledged")
}

func TestDelta_NothingToReport(t *testing.T) {
	f := NewFormatter()
	pages := f.Delta(tracker.Diff{}, nil, 0)
	assert.Nil(t, pages)
}

func TestDelta_CapsAtTenWithOverflow(t *testing.T) {
	f := NewFormatter()
	var newErrors []core.CheckResult
	for i := 0; i < 15; i++ {
		newErrors = append(newErrors, core.CheckResult{Endpoint: "x", NormalizedURL: "https://x", Status: core.StatusTimeout})
	}
	pages := f.Delta(tracker.Diff{NewErrors: newErrors}, nil, 0)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0], "and 5 more")
}

func TestPaginate_SplitsOnLineBoundaries(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, strings.Repeat("x", 50))
	}
	text := strings.Join(lines, "\n")

	pages := paginate(text, "Status Summary")
	require.Greater(t, len(pages), 1)
	for _, p := range pages {
		assert.LessOrEqual(t, len(p), maxMessageLength)
	}
}

func TestReport_RendersStats(t *testing.T) {
	f := NewFormatter()
	stats := tracker.Stats{
		TotalErrors:     4,
		TotalRecoveries: 2,
		PerErrorClass:   map[string]int{"timeout": 3, "dns_error": 1},
		TopOffenders:    []tracker.EndpointCount{{Endpoint: "a.com", Count: 3}},
	}
	pages := f.Report(time.Now(), stats)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0], "Daily Report")
	assert.Contains(t, pages[0], "a.com")
}
