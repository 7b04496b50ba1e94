// Package policy maps check results and tracker diffs to a notification
// decision. Decide is a pure function; ConsecutiveFailures is the
// only stateful piece, and it never gates the decision itself.
package policy

import (
	"sync"

	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/tracker"
)

// Decision is a closed sum over notification-policy outcomes.
type Decision string

const (
	DecisionFullSummary Decision = "full_summary"
	DecisionChangeDelta Decision = "change_delta"
	DecisionPersistentReminder Decision = "persistent_reminder"
	DecisionSuppress Decision = "suppress"
)

// Input bundles everything Decide needs to evaluate the table.
type Input struct {
	Level string // all, error, smart
	IsManual bool
	Results []core.CheckResult
	Diff tracker.Diff
	UnacknowledgedCount int
}

// Decide implements the decision table.
func Decide(in Input) Decision {
	if in.IsManual {
		return DecisionFullSummary
	}

	switch in.Level {
	case "all":
		return DecisionFullSummary
	case "error":
		for _, r := range in.Results {
			if !r.IsSuccess() {
				return DecisionFullSummary
			}
		}
		return DecisionSuppress
	case "smart":
		if len(in.Diff.NewErrors) > 0 || len(in.Diff.Recovered) > 0 {
			return DecisionChangeDelta
		}
		if in.UnacknowledgedCount > 0 {
			return DecisionPersistentReminder
		}
		return DecisionSuppress
	default:
		return DecisionSuppress
	}
}

// Group pairs a chat target with the endpoint subset it should be notified
// about, for multi-group routing.
type Group struct {
	Name string
	ChatID string
	Endpoints map[string]struct{}
}

// RouteGroups partitions results into each group's own slice, so Decide can
// be evaluated independently per group.
func RouteGroups(groups []Group, results []core.CheckResult) map[string][]core.CheckResult {
	out := make(map[string][]core.CheckResult, len(groups))
	for _, g := range groups {
		out[g.Name] = filterResults(results, g.Endpoints)
	}
	return out
}

// FilterDiff restricts a tracker.Diff to a group's endpoint subset.
func FilterDiff(d tracker.Diff, endpoints map[string]struct{}) tracker.Diff {
	return tracker.Diff{
		NewErrors: filterResults(d.NewErrors, endpoints),
		Recovered: filterResults(d.Recovered, endpoints),
		PersistentErrors: filterResults(d.PersistentErrors, endpoints),
	}
}

func filterResults(results []core.CheckResult, endpoints map[string]struct{}) []core.CheckResult {
	var out []core.CheckResult
	for _, r := range results {
		if _, ok := endpoints[r.Endpoint]; ok {
			out = append(out, r)
		}
	}
	return out
}

// ConsecutiveFailures counts consecutive failed cycles per endpoint, for
// display only — it never gates a notification decision.
type ConsecutiveFailures struct {
	mu sync.Mutex
	counts map[string]int
}

// NewConsecutiveFailures returns an empty counter.
func NewConsecutiveFailures() *ConsecutiveFailures {
	return &ConsecutiveFailures{counts: make(map[string]int)}
}

// Update increments the streak for every non-success result and clears it
// for every success, returning a snapshot of current streaks.
func (c *ConsecutiveFailures) Update(results []core.CheckResult) map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range results {
		if r.IsSuccess() {
			delete(c.counts, r.Endpoint)
			continue
		}
		c.counts[r.Endpoint]++
	}

	snapshot := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		snapshot[k] = v
	}
	return snapshot
}
