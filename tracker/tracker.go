// Package tracker maintains the failure-state diff across checks — new,
// recovered, and persistent errors — plus bounded history and acknowledgment
// memory.
package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/pkg/logger"
)

// Diff is the three disjoint result sets Update produces.
type Diff struct {
	NewErrors []core.CheckResult
	Recovered []core.CheckResult
	PersistentErrors []core.CheckResult
}

// Store persists TrackerState across restarts.
type Store interface {
	Load() (*core.TrackerState, error)
	Save(*core.TrackerState) error
}

// Tracker guards TrackerState behind a single mutex covering the whole
// Update operation, so callers never observe a half-applied diff.
type Tracker struct {
	mu sync.Mutex
	state *core.TrackerState
	retentionDays int
	store Store
	log logger.Logger
}

// New loads prior state from store (if any) and returns a ready Tracker.
func New(store Store, retentionDays int, log logger.Logger) (*Tracker, error) {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	state := core.NewTrackerState()
	if store != nil {
		loaded, err := store.Load()
		if err != nil {
			return nil, err
		}
		if loaded != nil {
			state = loaded
		}
	}
	return &Tracker{state: state, retentionDays: retentionDays, store: store, log: log}, nil
}

// Update computes the new/recovered/persistent diff against the previous
// cycle's error set, applies history/acknowledgment side effects, enforces
// the caps, persists, and returns the diff. Atomic under t.mu.
func (t *Tracker) Update(results []core.CheckResult) (Diff, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	current := make(map[string]core.CheckResult, len(results))
	for _, r := range results {
		if !r.IsSuccess() {
			current[r.Endpoint] = r
		}
	}

	var diff Diff
	for ep, r := range current {
		prev, existed := t.state.CurrentErrors[ep]
		if !existed || prev.Status != r.Status {
			diff.NewErrors = append(diff.NewErrors, r)
			t.appendHistory(ep, string(r.Status), now)
		} else {
			diff.PersistentErrors = append(diff.PersistentErrors, r)
		}
	}

	for ep, prev := range t.state.CurrentErrors {
		if _, stillFailing := current[ep]; stillFailing {
			continue
		}
		diff.Recovered = append(diff.Recovered, core.CheckResult{
			Endpoint: ep,
			NormalizedURL: prev.NormalizedURL,
			Status: core.StatusSuccess,
			Timestamp: now,
		})
		t.appendHistory(ep, "recovered", now)
		delete(t.state.Acknowledged, ep)
	}

	t.state.PreviousErrors = t.state.CurrentErrors
	t.state.CurrentErrors = current
	t.enforceRetention(now)
	t.enforceHistoryCap()

	if t.store != nil {
		if err := t.store.Save(t.state); err != nil {
			return diff, err
		}
	}
	return diff, nil
}

func (t *Tracker) appendHistory(endpoint, statusOrRecovered string, at time.Time) {
	t.state.History = append(t.state.History, core.HistoryRecord{
		Endpoint: endpoint,
		StatusOrRecovered: statusOrRecovered,
		Timestamp: at,
	})
}

func (t *Tracker) enforceRetention(now time.Time) {
	if t.retentionDays <= 0 {
		return
	}
	cutoff := now.Add(-time.Duration(t.retentionDays) * 24 * time.Hour)
	kept := t.state.History[:0]
	for _, h := range t.state.History {
		if h.Timestamp.After(cutoff) {
			kept = append(kept, h)
		}
	}
	t.state.History = kept
}

func (t *Tracker) enforceHistoryCap() {
	if len(t.state.History) <= core.DefaultHistoryCap {
		return
	}
	excess := len(t.state.History) - core.DefaultHistoryCap
	t.state.History = append([]core.HistoryRecord{}, t.state.History[excess:]...)
}

// Acknowledge moves endpoint from unacknowledged to acknowledged within
// current_errors and stamps its latest history entry. No effect if the
// endpoint is currently healthy.
func (t *Tracker) Acknowledge(endpoint, note string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, failing := t.state.CurrentErrors[endpoint]; !failing {
		return core.ErrEndpointNotFound
	}
	if _, already := t.state.Acknowledged[endpoint]; already {
		return core.ErrAlreadyAcked
	}

	t.state.Acknowledged[endpoint] = struct{}{}
	now := time.Now()
	for i := len(t.state.History) - 1; i >= 0; i-- {
		if t.state.History[i].Endpoint != endpoint {
			continue
		}
		t.state.History[i].Acknowledged = true
		t.state.History[i].AckTimestamp = &now
		if note != "" {
			t.state.History[i].Note = note
		}
		break
	}

	if t.store != nil {
		return t.store.Save(t.state)
	}
	return nil
}

// UnacknowledgedCount reports how many currently-failing endpoints have not
// been acknowledged. Consumed by the notification policy.
func (t *Tracker) UnacknowledgedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for ep := range t.state.CurrentErrors {
		if _, ack := t.state.Acknowledged[ep]; !ack {
			count++
		}
	}
	return count
}

// CurrentErrors returns a snapshot of the current failing-endpoint set.
func (t *Tracker) CurrentErrors() map[string]core.CheckResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]core.CheckResult, len(t.state.CurrentErrors))
	for k, v := range t.state.CurrentErrors {
		out[k] = v
	}
	return out
}

// History returns HistoryRecords within the last `days`, newest first,
// windowed by offset/limit for pagination.
func (t *Tracker) History(days, offset, limit int) []core.HistoryRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	var filtered []core.HistoryRecord
	for i := len(t.state.History) - 1; i >= 0; i-- {
		h := t.state.History[i]
		if h.Timestamp.Before(cutoff) {
			continue
		}
		filtered = append(filtered, h)
	}

	if offset >= len(filtered) {
		return nil
	}
	end := len(filtered)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return filtered[offset:end]
}

// Stats aggregates tracker history over a time window.
type Stats struct {
	TotalErrors int
	TotalRecoveries int
	PerErrorClass map[string]int
	TopOffenders []EndpointCount
}

// EndpointCount pairs an endpoint with an occurrence count.
type EndpointCount struct {
	Endpoint string
	Count int
}

// Stats computes {total_errors, total_recoveries, per_error_class_counts,
// top_n_offending_endpoints} over history within the last `window`.
func (t *Tracker) Stats(window time.Duration, topN int) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-window)
	stats := Stats{PerErrorClass: make(map[string]int)}
	perEndpoint := make(map[string]int)

	for _, h := range t.state.History {
		if h.Timestamp.Before(cutoff) {
			continue
		}
		if h.StatusOrRecovered == "recovered" {
			stats.TotalRecoveries++
			continue
		}
		stats.TotalErrors++
		stats.PerErrorClass[h.StatusOrRecovered]++
		perEndpoint[h.Endpoint]++
	}

	stats.TopOffenders = topOffenders(perEndpoint, topN)
	return stats
}

func topOffenders(counts map[string]int, n int) []EndpointCount {
	list := make([]EndpointCount, 0, len(counts))
	for ep, c := range counts {
		list = append(list, EndpointCount{Endpoint: ep, Count: c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Endpoint < list[j].Endpoint
	})
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list
}
