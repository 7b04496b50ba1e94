// Package pool runs bounded-concurrency batches of probes through a
// probe.Executor, with a single bounded retry pass per batch.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/pkg/logger"
	"github.com/opsmind/pulseguard/probe"
)

const (
	quickModeThreshold = 50
	quickModeTimeout = 5 * time.Second
	interBatchPause = 500 * time.Millisecond
)

// BatchCallback is invoked after every batch is finalized (including its
// retry pass), carrying enough to report progress upstream.
type BatchCallback func(batchIndex, totalBatches int, eta time.Duration)

// Pool partitions an endpoint list into batches sized to the current
// concurrency width and runs each batch's probes under a semaphore.
type Pool struct {
	executor *probe.Executor
	cache *core.LastStatusCache
	log logger.Logger
}

// NewPool wires a Pool to the executor it drives probes through.
func NewPool(executor *probe.Executor, log logger.Logger) *Pool {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Pool{executor: executor, cache: core.NewLastStatusCache(), log: log}
}

// LastStatusCache exposes the recovery-detection cache this pool maintains.
func (p *Pool) LastStatusCache() *core.LastStatusCache { return p.cache }

// Executor exposes the underlying probe executor so the adaptive controller
// can resize its client pools at a batch boundary.
func (p *Pool) Executor() *probe.Executor { return p.executor }

type batch struct {
	offset int
	endpoints []string
}

func batchEndpoints(endpoints []string, size int) []batch {
	if size < 1 {
		size = 1
	}
	var batches []batch
	for i := 0; i < len(endpoints); i += size {
		end := i + size
		if end > len(endpoints) {
			end = len(endpoints)
		}
		batches = append(batches, batch{offset: i, endpoints: endpoints[i:end]})
	}
	return batches
}

// RunBatch runs one probe cycle over endpoints under cfg's concurrency,
// timeout, and retry rules. Returns one CheckResult per endpoint in input
// order, or a context error if the run was cancelled — a cancelled run
// discards its partial results rather than returning them.
func (p *Pool) RunBatch(ctx context.Context, endpoints []string, cfg core.ExecutionConfig, cb BatchCallback) ([]core.CheckResult, error) {
	if len(endpoints) == 0 {
		return nil, nil
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	retryCount := cfg.RetryCount

	// Quick-mode: a pragmatic latency governor for wide fleets.
	if len(endpoints) > quickModeThreshold {
		timeout = quickModeTimeout
		if retryCount > 1 {
			retryCount = 1
		}
	}

	batches := batchEndpoints(endpoints, maxConcurrent)
	results := make([]core.CheckResult, len(endpoints))

	start := time.Now()
	for batchIdx, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batchResults := p.runOnce(ctx, b.endpoints, timeout, maxConcurrent)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if retryCount > 0 {
			batchResults = p.retryFailed(ctx, b.endpoints, batchResults, timeout, maxConcurrent)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		for i, r := range batchResults {
			results[b.offset+i] = r
			p.cache.Set(r.Endpoint, r.IsSuccess())
		}

		if cb != nil {
			cb(batchIdx, len(batches), estimateETA(start, batchIdx+1, len(batches)))
		}

		if batchIdx < len(batches)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interBatchPause):
			}
		}
	}

	return results, nil
}

func estimateETA(start time.Time, completed, total int) time.Duration {
	if completed == 0 {
		return 0
	}
	elapsed := time.Since(start)
	remaining := total - completed
	if remaining <= 0 {
		return 0
	}
	return elapsed / time.Duration(completed) * time.Duration(remaining)
}

func (p *Pool) runOnce(ctx context.Context, endpoints []string, timeout time.Duration, maxConcurrent int) []core.CheckResult {
	results := make([]core.CheckResult, len(endpoints))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, ep := range endpoints {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, ep string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.executor.Probe(ctx, ep, timeout, true)
		}(i, ep)
	}
	wg.Wait()
	return results
}

// retryFailed schedules exactly one retry pass for every result whose
// status is timeout or connection_error, overwriting the original at the
// same index.
func (p *Pool) retryFailed(ctx context.Context, endpoints []string, results []core.CheckResult, timeout time.Duration, maxConcurrent int) []core.CheckResult {
	var toRetry []int
	for i, r := range results {
		if r.Status.Retryable() {
			toRetry = append(toRetry, i)
		}
	}
	if len(toRetry) == 0 {
		return results
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for _, idx := range toRetry {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = p.executor.Probe(ctx, endpoints[idx], timeout, true)
		}(idx)
	}
	wg.Wait()
	return results
}
