package gateway

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/tracker"
)

func newTestCommands(t *testing.T) (*Commands, *core.Config, *Store) {
	t.Helper()
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "config.json"))
	cfg, err := store.Load()
	require.NoError(t, err)

	trk, err := tracker.New(nil, 30, nil)
	require.NoError(t, err)

	return NewCommands(cfg, store, nil, trk, nil, nil, nil), cfg, store
}

func TestDispatch_ReadOnlyCommandNeedsNoAdmin(t *testing.T) {
	cmds, _, _ := newTestCommands(t)

	result := cmds.Dispatch(CommandInput{Name: "/status", IsAdmin: false})
	assert.NotContains(t, result.Reply, "requires admin")
}

func TestDispatch_MutatingCommandRequiresAdmin(t *testing.T) {
	cmds, _, _ := newTestCommands(t)

	result := cmds.Dispatch(CommandInput{Name: "/add", Args: []string{"a.com"}, IsAdmin: false})
	assert.Contains(t, result.Reply, "requires admin authorization")
}

func TestDispatch_AddThenListRoundTrips(t *testing.T) {
	cmds, cfg, _ := newTestCommands(t)

	cmds.Dispatch(CommandInput{Name: "/add", Args: []string{"a.com"}, IsAdmin: true})
	assert.Len(t, cfg.Endpoints(), 1)

	result := cmds.Dispatch(CommandInput{Name: "/list", IsAdmin: false})
	assert.Contains(t, result.Reply, "https://a.com")
}

func TestDispatch_UnknownCommand(t *testing.T) {
	cmds, _, _ := newTestCommands(t)

	result := cmds.Dispatch(CommandInput{Name: "/bogus", IsAdmin: true})
	assert.Contains(t, result.Reply, "unknown command")
}

func TestDispatch_ReentrantGuardRefusesConcurrentStop(t *testing.T) {
	cmds, _, _ := newTestCommands(t)

	require.True(t, cmds.tryEnter("/stop"))
	result := cmds.Dispatch(CommandInput{Name: "/stop", IsAdmin: true})
	assert.Contains(t, result.Reply, "already in progress")
	cmds.leave("/stop")
}

func TestDispatch_StopReturnsActionStop(t *testing.T) {
	cmds, _, _ := newTestCommands(t)

	result := cmds.Dispatch(CommandInput{Name: "/stop", IsAdmin: true})
	assert.Equal(t, ActionStop, result.Action)
}

func TestDispatch_ReloadReturnsActionReload(t *testing.T) {
	cmds, _, _ := newTestCommands(t)

	result := cmds.Dispatch(CommandInput{Name: "/reload", IsAdmin: true})
	assert.Equal(t, ActionReload, result.Action)
}
