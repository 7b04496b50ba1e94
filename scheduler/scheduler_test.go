package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/pool"
	"github.com/opsmind/pulseguard/probe"
	"github.com/opsmind/pulseguard/tracker"
)

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) SendMessage(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, chatID+":"+text)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func newTestRunner(t *testing.T, numEndpoints int, notifier Notifier) (*Runner, *core.Config) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	endpoints := make([]string, numEndpoints)
	for i := range endpoints {
		endpoints[i] = srv.URL
	}

	cfg := &core.Config{
		Domains: endpoints,
		Telegram: core.TelegramConfig{ChatID: "chat-1"},
		Check: core.CheckConfig{
			IntervalMinutes: 60,
			TimeoutSeconds:  5,
			RetryCount:      1,
			MaxConcurrent:   5,
		},
		Notification: core.NotificationConfig{Level: "all"},
	}

	store := tracker.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	trk, err := tracker.New(store, 30, nil)
	require.NoError(t, err)

	executor := probe.NewExecutor(5, nil)
	p := pool.NewPool(executor, nil)

	runner := NewRunner(cfg, p, trk, nil, notifier, nil)
	return runner, cfg
}

func TestWaitForNextCycle_FirstCycleNoDelay(t *testing.T) {
	runner, _ := newTestRunner(t, 0, nil)
	manual := runner.waitForNextCycle(context.Background(), true)
	assert.False(t, manual)
}

func TestTriggerManual_InterruptsWait(t *testing.T) {
	runner, cfg := newTestRunner(t, 0, nil)
	cfg.Check.IntervalMinutes = 60

	done := make(chan bool, 1)
	go func() {
		done <- runner.waitForNextCycle(context.Background(), false)
	}()

	time.Sleep(20 * time.Millisecond)
	runner.TriggerManual()

	select {
	case manual := <-done:
		assert.True(t, manual)
	case <-time.After(2 * time.Second):
		t.Fatal("waitForNextCycle did not return after TriggerManual")
	}
}

func TestRunCycle_SendsFullSummaryOnAllLevel(t *testing.T) {
	notifier := &fakeNotifier{}
	runner, _ := newTestRunner(t, 1, notifier)

	runner.runCycle(context.Background(), false)

	assert.Equal(t, 1, notifier.count())
}

func TestRunCycle_RespectsCancellation(t *testing.T) {
	notifier := &fakeNotifier{}
	runner, _ := newTestRunner(t, 1, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner.runCycle(ctx, false)
	assert.Equal(t, 0, notifier.count())
}

func TestNextOccurrence_RollsToTomorrowWhenPassed(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	next := nextOccurrence(now, 9, 0)
	assert.Equal(t, 2, next.Day())
}

func TestNextOccurrence_SameDayWhenUpcoming(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	next := nextOccurrence(now, 9, 0)
	assert.Equal(t, 1, next.Day())
}

func TestParseHHMM_RejectsMalformed(t *testing.T) {
	_, _, err := parseHHMM("25:00")
	assert.Error(t, err)

	_, _, err = parseHHMM("not-a-time")
	assert.Error(t, err)

	h, m, err := parseHHMM("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 30, m)
}

func TestRoutingGroups_DefaultsToSingleUngroupedChat(t *testing.T) {
	runner, _ := newTestRunner(t, 0, nil)
	groups := runner.routingGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, "chat-1", groups[0].ChatID)
	assert.Empty(t, groups[0].Endpoints)
}

// TestWaitForNextCycle_SkipsSleepAfterOverrun covers S7: when the previous
// cycle already consumed the whole configured interval, the next cycle must
// start immediately rather than waiting a full interval on top of it.
func TestWaitForNextCycle_SkipsSleepAfterOverrun(t *testing.T) {
	runner, cfg := newTestRunner(t, 0, nil)
	cfg.Check.IntervalMinutes = 1

	runner.mu.Lock()
	runner.lastCycleElapsed = 90 * time.Second // longer than the 1-minute interval
	runner.mu.Unlock()

	done := make(chan bool, 1)
	go func() {
		done <- runner.waitForNextCycle(context.Background(), false)
	}()

	select {
	case manual := <-done:
		assert.False(t, manual)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("waitForNextCycle slept instead of starting the next cycle immediately")
	}
}

// TestWaitForNextCycle_SubtractsElapsedFromWait covers S7's companion
// property: a cycle that finished with time to spare only waits the
// remainder of the interval, not the interval in full.
func TestWaitForNextCycle_SubtractsElapsedFromWait(t *testing.T) {
	runner, cfg := newTestRunner(t, 0, nil)
	cfg.Check.IntervalMinutes = 1

	runner.mu.Lock()
	runner.lastCycleElapsed = 59*time.Second + 900*time.Millisecond
	runner.mu.Unlock()

	start := time.Now()
	manual := runner.waitForNextCycle(context.Background(), false)
	waited := time.Since(start)

	assert.False(t, manual)
	assert.Less(t, waited, 500*time.Millisecond)
}

// TestNotifyOverrun_SendsNoticeThroughNotifier covers S7's notifier-facing
// half: an overran cycle's notice goes out through the notifier boundary,
// not only to the logger.
func TestNotifyOverrun_SendsNoticeThroughNotifier(t *testing.T) {
	notifier := &fakeNotifier{}
	runner, _ := newTestRunner(t, 0, notifier)

	runner.notifyOverrun(context.Background(), "abc12345", 90*time.Second, 60*time.Second)

	require.Equal(t, 1, notifier.count())
	assert.Contains(t, notifier.messages[0], "chat-1:")
	assert.Contains(t, notifier.messages[0], "overran")
}

func TestRoutingGroups_OneGroupPerConfiguredChat(t *testing.T) {
	runner, cfg := newTestRunner(t, 0, nil)
	cfg.Telegram.Groups = map[string]core.GroupConfig{
		"chat-ops": {Name: "ops", Domains: []string{"a.com"}},
		"chat-biz": {Name: "biz", Domains: []string{"b.com"}},
	}

	groups := runner.routingGroups()
	assert.Len(t, groups, 2)
}
