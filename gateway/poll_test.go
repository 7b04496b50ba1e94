package gateway

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmind/pulseguard/notifier"
	"github.com/opsmind/pulseguard/tracker"
)

type fakeUpdatesNotifier struct {
	updates [][]notifier.Update
	calls   int
	sent    []string
}

func (f *fakeUpdatesNotifier) SendMessage(ctx context.Context, chatID, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeUpdatesNotifier) GetUpdates(ctx context.Context, offset int64) ([]notifier.Update, error) {
	if f.calls >= len(f.updates) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	batch := f.updates[f.calls]
	f.calls++
	return batch, nil
}

func TestPollLoop_DispatchesCommandAndReplies(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "config.json"))
	cfg, err := store.Load()
	require.NoError(t, err)

	trk, err := tracker.New(nil, 30, nil)
	require.NoError(t, err)
	cmds := NewCommands(cfg, store, nil, trk, nil, nil, nil)

	client := &fakeUpdatesNotifier{
		updates: [][]notifier.Update{
			{{
				UpdateID: 1,
				Message: &notifier.UpdateMessage{
					Text: "/status",
					Chat: struct {
						ID int64 `json:"id"`
					}{ID: 42},
				},
			}},
		},
	}

	var gotAction ProcessAction
	loop := NewPollLoop(cfg, client, cmds, func(a ProcessAction) { gotAction = a })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { loop.Run(ctx); close(done) }()

	require.Eventually(t, func() bool { return len(client.sent) == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.Contains(t, client.sent[0], "monitoring")
	assert.Equal(t, ActionNone, gotAction)
}

func TestPollLoop_IsAdminEmptyListAllowsEveryone(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "config.json"))
	cfg, err := store.Load()
	require.NoError(t, err)

	loop := NewPollLoop(cfg, &fakeUpdatesNotifier{}, nil, nil)
	assert.True(t, loop.isAdmin("anyone"))
}

func TestPollLoop_IsAdminMatchesTrimmedUsername(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "config.json"))
	cfg, err := store.Load()
	require.NoError(t, err)
	cfg.Telegram.AdminUsers = []string{"@alice"}

	loop := NewPollLoop(cfg, &fakeUpdatesNotifier{}, nil, nil)
	assert.True(t, loop.isAdmin("alice"))
	assert.False(t, loop.isAdmin("bob"))
}
