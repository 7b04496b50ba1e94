// Package scheduler drives the recurring check cycle: snapshot config, run
// a probe batch, submit results to the tracker and notification policy, then
// sleep until the next cycle or a manual trigger. A second goroutine emits
// an independent daily report.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsmind/pulseguard/adaptive"
	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/format"
	"github.com/opsmind/pulseguard/pkg/logger"
	"github.com/opsmind/pulseguard/policy"
	"github.com/opsmind/pulseguard/pool"
	"github.com/opsmind/pulseguard/tracker"
)

// Notifier is the subset of notifier.Client/ResilientClient the scheduler
// needs: deliver one rendered page to one chat.
type Notifier interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

const recentMeansWindow = 3

// Runner owns the cycle loop and the daily-report goroutine. Exactly one
// cycle is ever in flight; a manual trigger cancels it and starts a fresh
// one marked is_manual.
type Runner struct {
	cfg        *core.Config
	pool       *pool.Pool
	tracker    *tracker.Tracker
	controller *adaptive.Controller
	notifier   Notifier
	formatter  *format.Formatter
	failures   *policy.ConsecutiveFailures
	log        logger.Logger

	mu               sync.Mutex
	cancelCurrent    context.CancelFunc
	manualRequested  bool
	recentMeans      []float64
	lastCycleElapsed time.Duration
}

// NewRunner wires a Runner from its dependencies. notifier and controller
// may be nil: a nil notifier makes dispatch a no-op (useful for dry runs);
// a nil controller leaves the concurrency width at its configured value.
func NewRunner(cfg *core.Config, p *pool.Pool, t *tracker.Tracker, controller *adaptive.Controller, n Notifier, log logger.Logger) *Runner {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Runner{
		cfg:        cfg,
		pool:       p,
		tracker:    t,
		controller: controller,
		notifier:   n,
		formatter:  format.NewFormatter(),
		failures:   policy.NewConsecutiveFailures(),
		log:        log,
	}
}

// TriggerManual cancels any in-flight wait or probe run and marks the next
// cycle as manual, per the /check command's bypass semantics.
func (r *Runner) TriggerManual() {
	r.mu.Lock()
	r.manualRequested = true
	cancel := r.cancelCurrent
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Start runs the cycle loop until ctx is cancelled. The first cycle runs
// without a pre-delay.
func (r *Runner) Start(ctx context.Context) {
	first := true
	for ctx.Err() == nil {
		manual := r.waitForNextCycle(ctx, first)
		if ctx.Err() != nil {
			return
		}
		first = false

		cycleCtx, cancel := context.WithCancel(ctx)
		r.mu.Lock()
		r.cancelCurrent = cancel
		r.mu.Unlock()

		r.runCycle(cycleCtx, manual)
		cancel()
	}
}

// waitForNextCycle blocks until the next cycle should start, returning true
// if a manual trigger fired during the wait (or was already pending). The
// wait is the configured interval minus however long the previous cycle
// took, so cycle *start* times stay on a steady cadence instead of drifting
// by a full cycle's runtime each time; a cycle that already ran long enough
// to exhaust the interval starts the next one immediately.
func (r *Runner) waitForNextCycle(ctx context.Context, first bool) bool {
	if first {
		return false
	}

	waitCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancelCurrent = cancel
	manual := r.manualRequested
	r.manualRequested = false
	elapsed := r.lastCycleElapsed
	r.mu.Unlock()

	if manual {
		cancel()
		return true
	}

	cfg := r.cfg.Snapshot()
	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Minute
	}

	wait := interval - elapsed
	if wait <= 0 {
		cancel()
		return false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return false
	case <-waitCtx.Done():
		return ctx.Err() == nil
	}
}

func (r *Runner) runCycle(ctx context.Context, manual bool) {
	cycleID := uuid.New().String()[:8]
	start := time.Now()
	cfg := r.cfg.Snapshot()
	endpoints := r.cfg.Endpoints()

	if cfg.AutoAdjust && r.controller != nil {
		current := r.pool.Executor().MaxConcurrent()
		next := r.controller.Adjust(adaptive.Sample{
			Initial:          cfg.MaxConcurrent,
			Current:          current,
			TimeoutSeconds:   float64(cfg.TimeoutSeconds),
			RecentBatchMeans: r.recentMeansSnapshot(),
		})
		if next != current {
			r.pool.Executor().Resize(next)
		}
		cfg.MaxConcurrent = next
	}

	results, err := r.pool.RunBatch(ctx, endpoints, cfg, func(batchIndex, total int, eta time.Duration) {
		r.log.Debug("batch complete", "cycle_id", cycleID, "batch", batchIndex, "total_batches", total, "eta", eta.String())
	})
	if err != nil {
		if ctx.Err() != nil {
			r.log.Info("cycle cancelled", "cycle_id", cycleID, "manual_followup", manual)
		}
		return
	}

	r.recordCycleMean(results)

	diff, err := r.tracker.Update(results)
	if err != nil {
		r.log.Error("tracker update failed", "cycle_id", cycleID, "error", err)
		return
	}

	streaks := r.failures.Update(results)
	unacked := r.tracker.UnacknowledgedCount()

	decision := policy.Decide(policy.Input{
		Level:               cfg.NotificationLevel,
		IsManual:            manual,
		Results:             results,
		Diff:                diff,
		UnacknowledgedCount: unacked,
	})

	nextRun := start.Add(time.Duration(cfg.IntervalMinutes) * time.Minute)
	r.dispatch(ctx, cycleID, decision, results, diff, streaks, unacked, cfg, nextRun)

	elapsed := time.Since(start)
	r.mu.Lock()
	r.lastCycleElapsed = elapsed
	r.mu.Unlock()

	budget := time.Duration(cfg.IntervalMinutes) * time.Minute
	if budget > 0 && elapsed > budget {
		r.log.Warn("cycle overran its interval", "cycle_id", cycleID, "elapsed", elapsed.String(), "interval", budget.String())
		r.notifyOverrun(ctx, cycleID, elapsed, budget)
	}
}

// notifyOverrun sends an "overran" notice through the notifier boundary, in
// addition to the log line above, so an operator not tailing logs still
// sees a cycle run long.
func (r *Runner) notifyOverrun(ctx context.Context, cycleID string, elapsed, budget time.Duration) {
	if r.notifier == nil {
		return
	}
	r.cfg.RLock()
	chatID := r.cfg.Telegram.ChatID
	r.cfg.RUnlock()
	if chatID == "" {
		return
	}

	msg := fmt.Sprintf("cycle %s overran its interval: took %s, budget %s", cycleID, elapsed.Round(time.Second), budget)
	if err := r.notifier.SendMessage(ctx, chatID, msg); err != nil {
		r.log.Error("overrun notice failed", "cycle_id", cycleID, "error", err)
	}
}

func (r *Runner) recordCycleMean(results []core.CheckResult) {
	if len(results) == 0 {
		return
	}
	var sum float64
	for _, res := range results {
		sum += res.ResponseTimeSeconds
	}
	mean := sum / float64(len(results))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.recentMeans = append(r.recentMeans, mean)
	if len(r.recentMeans) > recentMeansWindow {
		r.recentMeans = r.recentMeans[len(r.recentMeans)-recentMeansWindow:]
	}
}

func (r *Runner) recentMeansSnapshot() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.recentMeans))
	copy(out, r.recentMeans)
	return out
}

func (r *Runner) dispatch(ctx context.Context, cycleID string, decision policy.Decision, results []core.CheckResult, diff tracker.Diff, streaks map[string]int, unacked int, cfg core.ExecutionConfig, nextRun time.Time) {
	if decision == policy.DecisionSuppress || r.notifier == nil {
		return
	}

	for _, g := range r.routingGroups() {
		groupResults := filterByEndpoints(results, g.Endpoints)
		groupDiff := diff
		if len(g.Endpoints) > 0 {
			groupDiff = policy.FilterDiff(diff, g.Endpoints)
		}
		groupUnacked := countUnacked(groupDiff, unacked, len(g.Endpoints) == 0)

		var pages []string
		switch decision {
		case policy.DecisionFullSummary:
			pages = r.formatter.FullSummary(groupResults, nextRun, cfg.ShowETA)
		case policy.DecisionChangeDelta, policy.DecisionPersistentReminder:
			pages = r.formatter.Delta(groupDiff, streaks, groupUnacked)
		}

		for _, page := range pages {
			if err := r.notifier.SendMessage(ctx, g.ChatID, page); err != nil {
				r.log.Error("notify failed", "cycle_id", cycleID, "chat_id", g.ChatID, "error", err)
			}
		}
	}
}

// countUnacked approximates the per-group unacknowledged count: the exact
// count would require the tracker to be group-aware, which it isn't, so the
// ungrouped (single chat) case gets the real total and grouped chats get
// the count implied by their own filtered diff.
func countUnacked(diff tracker.Diff, total int, ungrouped bool) int {
	if ungrouped {
		return total
	}
	return len(diff.PersistentErrors) + len(diff.NewErrors)
}

func filterByEndpoints(results []core.CheckResult, endpoints map[string]struct{}) []core.CheckResult {
	if len(endpoints) == 0 {
		return results
	}
	var out []core.CheckResult
	for _, r := range results {
		if _, ok := endpoints[r.Endpoint]; ok {
			out = append(out, r)
		}
	}
	return out
}

// routingGroups builds the policy.Group list from the live config: one
// group per configured Telegram group, or a single ungrouped entry (empty
// Endpoints, meaning "everything") when no groups are configured.
func (r *Runner) routingGroups() []policy.Group {
	r.cfg.RLock()
	defer r.cfg.RUnlock()

	if len(r.cfg.Telegram.Groups) == 0 {
		return []policy.Group{{Name: "default", ChatID: r.cfg.Telegram.ChatID}}
	}

	groups := make([]policy.Group, 0, len(r.cfg.Telegram.Groups))
	for chatID, g := range r.cfg.Telegram.Groups {
		endpoints := make(map[string]struct{}, len(g.Domains))
		for _, d := range g.Domains {
			endpoints[d] = struct{}{}
		}
		groups = append(groups, policy.Group{Name: g.Name, ChatID: chatID, Endpoints: endpoints})
	}
	return groups
}
