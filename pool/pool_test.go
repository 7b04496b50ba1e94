package pool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/probe"
)

func TestRunBatch_AllSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	executor := probe.NewExecutor(10, nil)
	p := NewPool(executor, nil)

	endpoints := []string{srv.URL, srv.URL, srv.URL}
	cfg := core.ExecutionConfig{MaxConcurrent: 10, TimeoutSeconds: 2, RetryCount: 1}

	results, err := p.RunBatch(context.Background(), endpoints, cfg, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.IsSuccess())
	}
	assert.Equal(t, 3, p.LastStatusCache().Len())
}

func TestRunBatch_RetriesTransientFailure(t *testing.T) {
	// A connection refused endpoint is retried once, under the same
	// result slot, and still ends up a connection_error since nothing is
	// listening (retries on timeout/connection_error only).
	executor := probe.NewExecutor(5, nil)
	p := NewPool(executor, nil)
	cfg := core.ExecutionConfig{MaxConcurrent: 5, TimeoutSeconds: 1, RetryCount: 1}

	results, err := p.RunBatch(context.Background(), []string{"http://127.0.0.1:1"}, cfg, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.StatusConnectionError, results[0].Status)
}

func TestRunBatch_EmptyEndpoints(t *testing.T) {
	executor := probe.NewExecutor(5, nil)
	p := NewPool(executor, nil)

	results, err := p.RunBatch(context.Background(), nil, core.ExecutionConfig{MaxConcurrent: 5, TimeoutSeconds: 1}, nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestRunBatch_QuickModeCapsTimeoutAndRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	endpoints := make([]string, 51)
	for i := range endpoints {
		endpoints[i] = srv.URL
	}

	executor := probe.NewExecutor(60, nil)
	p := NewPool(executor, nil)
	cfg := core.ExecutionConfig{MaxConcurrent: 60, TimeoutSeconds: 30, RetryCount: 5}

	results, err := p.RunBatch(context.Background(), endpoints, cfg, nil)
	require.NoError(t, err)
	require.Len(t, results, 51)
	for _, r := range results {
		assert.True(t, r.IsSuccess())
	}
}

func TestRunBatch_Cancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	executor := probe.NewExecutor(5, nil)
	p := NewPool(executor, nil)
	cfg := core.ExecutionConfig{MaxConcurrent: 5, TimeoutSeconds: 5, RetryCount: 0}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := p.RunBatch(ctx, []string{srv.URL}, cfg, nil)
	assert.Error(t, err)
	assert.Nil(t, results)
}

func TestBatchEndpoints(t *testing.T) {
	endpoints := []string{"a", "b", "c", "d", "e"}
	batches := batchEndpoints(endpoints, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"a", "b"}, batches[0].endpoints)
	assert.Equal(t, []string{"c", "d"}, batches[1].endpoints)
	assert.Equal(t, []string{"e"}, batches[2].endpoints)
}
