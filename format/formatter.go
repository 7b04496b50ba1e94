// Package format renders CheckResults and tracker diffs into platform-ready
// message strings, paginated to the chat platform's length limit.
package format

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/tracker"
)

const (
	maxMessageLength = 4096
	deltaSectionCap = 10
)

// Formatter has no state; every method is a pure rendering function.
type Formatter struct{}

// NewFormatter returns a ready-to-use Formatter.
func NewFormatter() *Formatter { return &Formatter{} }

var bucketTitles = map[core.FailureBucket]string{
	core.BucketCloudflareError: "Cloudflare Errors",
	core.BucketGatewayError: "Gateway Errors",
	core.BucketServerError: "Server Errors",
	core.BucketAccessDenied: "Access Denied",
	core.BucketNotFound: "Not Found",
	core.BucketBadRequest: "Bad Request",
	core.FailureBucket(core.StatusDNSError): "DNS Errors",
	core.FailureBucket(core.StatusConnectionError): "Connection Errors",
	core.FailureBucket(core.StatusTimeout): "Timeouts",
	core.FailureBucket(core.StatusHTTPError): "HTTP Errors",
	core.FailureBucket(core.StatusSSLError): "SSL Errors",
	core.FailureBucket(core.StatusWebSocketError): "WebSocket Errors",
	core.FailureBucket(core.StatusPhishingWarning): "Phishing Warnings",
	core.FailureBucket(core.StatusSecurityWarning): "Security Warnings",
	core.FailureBucket(core.StatusUnknownError): "Unknown Errors",
}

var cloudflareCodeReasons = map[int]string{
	520: "unknown error",
	521: "web server is down",
	522: "connection timeout",
	523: "origin unreachable",
	524: "timeout occurred",
	525: "SSL handshake failed",
	526: "invalid SSL certificate",
}

// FullSummary renders the full-summary layout: a failure breakdown by
// bucket in the fixed display order, or a compact "all ok" block when
// nothing failed.
func (f *Formatter) FullSummary(results []core.CheckResult, nextRun time.Time, showETA bool) []string {
	var failing []core.CheckResult
	for _, r := range results {
		if !r.IsSuccess() {
			failing = append(failing, r)
		}
	}

	var b strings.Builder
	if len(failing) == 0 {
		fmt.Fprintf(&b, "✅ *All %d endpoints healthy*\n\n", len(results))
	} else {
		fmt.Fprintf(&b, "⚠️ *%d/%d endpoints failing*\n\n", len(failing), len(results))
		for _, bucket := range core.FailureBucketOrder {
			inBucket := resultsInBucket(failing, bucket)
			if len(inBucket) == 0 {
				continue
			}
			writeBucketSection(&b, bucket, inBucket)
		}
	}

	b.WriteString(footer(nextRun, showETA))
	return paginate(b.String(), "Status Summary")
}

func resultsInBucket(results []core.CheckResult, bucket core.FailureBucket) []core.CheckResult {
	var out []core.CheckResult
	for _, r := range results {
		if core.DeriveFailureBucket(r) == bucket {
			out = append(out, r)
		}
	}
	return out
}

func writeBucketSection(b *strings.Builder, bucket core.FailureBucket, results []core.CheckResult) {
	title := bucketTitles[bucket]
	if title == "" {
		title = string(bucket)
	}
	fmt.Fprintf(b, "*%s* (%d)\n", title, len(results))
	if bucket == core.BucketCloudflareError {
		fmt.Fprintf(b, "%s\n", cloudflareSubDetails(results))
	}
	for _, r := range results {
		fmt.Fprintf(b, "• [%s](%s)\n", core.DomainName(r.NormalizedURL), r.NormalizedURL)
	}
	b.WriteString("\n")
}

func cloudflareSubDetails(results []core.CheckResult) string {
	seen := map[int]bool{}
	var codes []int
	for _, r := range results {
		if !seen[r.HTTPStatusCode] {
			seen[r.HTTPStatusCode] = true
			codes = append(codes, r.HTTPStatusCode)
		}
	}
	sort.Ints(codes)

	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		reason := cloudflareCodeReasons[code]
		if reason == "" {
			reason = "error"
		}
		parts = append(parts, fmt.Sprintf("%d %s", code, reason))
	}
	return strings.Join(parts, ", ")
}

func footer(nextRun time.Time, showETA bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "_%s_", time.Now().Format("2006-01-02 15:04:05"))
	if showETA && !nextRun.IsZero() {
		fmt.Fprintf(&b, " · next run %s", nextRun.Format("15:04:05"))
	}
	b.WriteString("\n")
	return b.String()
}

// Delta renders the smart-mode change layout: up to three optional
// sections — new problems, recovered, persistent-reminder — each capped at
// 10 entries with "... and N more" overflow. Returns nil when there
// is nothing to report.
func (f *Formatter) Delta(diff tracker.Diff, consecutiveFailures map[string]int, unacknowledged int) []string {
	var b strings.Builder
	wrote := false

	if len(diff.NewErrors) > 0 {
		fmt.Fprintf(&b, "\U0001F195 *New problems* (%d)\n", len(diff.NewErrors))
		writeCappedList(&b, diff.NewErrors, func(r core.CheckResult) string {
			if n := consecutiveFailures[r.Endpoint]; n > 1 {
				return fmt.Sprintf("• [%s](%s) — %s (×%d)", core.DomainName(r.NormalizedURL), r.NormalizedURL, r.Status, n)
			}
			return fmt.Sprintf("• [%s](%s) — %s", core.DomainName(r.NormalizedURL), r.NormalizedURL, r.Status)
		})
		b.WriteString("\n")
		wrote = true
	}

	if len(diff.Recovered) > 0 {
		fmt.Fprintf(&b, "✅ *Recovered* (%d)\n", len(diff.Recovered))
		writeCappedList(&b, diff.Recovered, func(r core.CheckResult) string {
			return fmt.Sprintf("• [%s](%s)", core.DomainName(r.NormalizedURL), r.NormalizedURL)
		})
		b.WriteString("\n")
		wrote = true
	}

	if len(diff.NewErrors) == 0 && len(diff.Recovered) == 0 && unacknowledged > 0 {
		fmt.Fprintf(&b, "\U0001F501 *%d unacknowledged issue(s) persist*\n\n", unacknowledged)
		wrote = true
	}

	if !wrote {
		return nil
	}
	return paginate(b.String(), "Status Update")
}

func writeCappedList(b *strings.Builder, results []core.CheckResult, line func(core.CheckResult) string) {
	limit := deltaSectionCap
	if len(results) < limit {
		limit = len(results)
	}
	for _, r := range results[:limit] {
		b.WriteString(line(r))
		b.WriteString("\n")
	}
	if len(results) > limit {
		fmt.Fprintf(b, "… and %d more\n", len(results)-limit)
	}
}

// Report renders the daily aggregate report from tracker history: error and
// recovery totals, error counts per class, and the endpoints with the most
// recorded errors. It shows no total number of checks and no per-endpoint
// availability or failure ratio.
func (f *Formatter) Report(date time.Time, stats tracker.Stats) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "\U0001F4C5 *Daily Report — %s*\n\n", date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Errors: %d · Recoveries: %d\n\n", stats.TotalErrors, stats.TotalRecoveries)

	if len(stats.PerErrorClass) > 0 {
		b.WriteString("*By error class*\n")
		classes := make([]string, 0, len(stats.PerErrorClass))
		for c := range stats.PerErrorClass {
			classes = append(classes, c)
		}
		sort.Strings(classes)
		for _, c := range classes {
			fmt.Fprintf(&b, "• %s: %d\n", c, stats.PerErrorClass[c])
		}
		b.WriteString("\n")
	}

	if len(stats.TopOffenders) > 0 {
		b.WriteString("*Top offenders*\n")
		for _, o := range stats.TopOffenders {
			fmt.Fprintf(&b, "• %s — %d\n", o.Endpoint, o.Count)
		}
	}

	return paginate(b.String(), "Daily Report")
}

// paginate splits text into messages no longer than maxMessageLength,
// breaking only on line boundaries so a bullet line is never split.
func paginate(text, title string) []string {
	if len(text) <= maxMessageLength {
		return []string{text}
	}

	lines := strings.Split(text, "\n")
	var pages []string
	var current strings.Builder
	continuationHeader := fmt.Sprintf("*%s (continued)*\n\n", title)

	flush := func() {
		if current.Len() > 0 {
			pages = append(pages, strings.TrimRight(current.String(), "\n"))
			current.Reset()
		}
	}

	for _, line := range lines {
		candidate := line + "\n"
		if current.Len()+len(candidate) > maxMessageLength {
			flush()
			current.WriteString(continuationHeader)
		}
		current.WriteString(candidate)
	}
	flush()
	return pages
}
