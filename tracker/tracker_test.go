package tracker

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmind/pulseguard/core"
)

func result(endpoint string, status core.CheckStatus) core.CheckResult {
	return core.CheckResult{Endpoint: endpoint, Status: status, Timestamp: time.Now()}
}

func TestUpdate_NewError(t *testing.T) {
	tr, err := New(nil, 30, nil)
	require.NoError(t, err)

	diff, err := tr.Update([]core.CheckResult{result("a.com", core.StatusTimeout)})
	require.NoError(t, err)
	assert.Len(t, diff.NewErrors, 1)
	assert.Empty(t, diff.Recovered)
	assert.Empty(t, diff.PersistentErrors)
}

func TestUpdate_PersistentError(t *testing.T) {
	tr, err := New(nil, 30, nil)
	require.NoError(t, err)

	_, err = tr.Update([]core.CheckResult{result("a.com", core.StatusTimeout)})
	require.NoError(t, err)

	diff, err := tr.Update([]core.CheckResult{result("a.com", core.StatusTimeout)})
	require.NoError(t, err)
	assert.Empty(t, diff.NewErrors)
	assert.Len(t, diff.PersistentErrors, 1)
}

func TestUpdate_ChangedStatusCountsAsNew(t *testing.T) {
	tr, err := New(nil, 30, nil)
	require.NoError(t, err)

	_, err = tr.Update([]core.CheckResult{result("a.com", core.StatusTimeout)})
	require.NoError(t, err)

	diff, err := tr.Update([]core.CheckResult{result("a.com", core.StatusConnectionError)})
	require.NoError(t, err)
	assert.Len(t, diff.NewErrors, 1)
	assert.Empty(t, diff.PersistentErrors)
}

func TestUpdate_Recovered(t *testing.T) {
	tr, err := New(nil, 30, nil)
	require.NoError(t, err)

	_, err = tr.Update([]core.CheckResult{result("a.com", core.StatusTimeout)})
	require.NoError(t, err)

	diff, err := tr.Update([]core.CheckResult{result("a.com", core.StatusSuccess)})
	require.NoError(t, err)
	require.Len(t, diff.Recovered, 1)
	assert.True(t, diff.Recovered[0].IsSuccess())
	assert.Empty(t, tr.CurrentErrors())
}

func TestAcknowledge_NoEffectWhenHealthy(t *testing.T) {
	tr, err := New(nil, 30, nil)
	require.NoError(t, err)

	err = tr.Acknowledge("a.com", "")
	assert.ErrorIs(t, err, core.ErrEndpointNotFound)
}

func TestAcknowledge_RemovedOnRecovery(t *testing.T) {
	tr, err := New(nil, 30, nil)
	require.NoError(t, err)

	_, err = tr.Update([]core.CheckResult{result("a.com", core.StatusTimeout)})
	require.NoError(t, err)

	require.NoError(t, tr.Acknowledge("a.com", "known flaky"))
	assert.Equal(t, 0, tr.UnacknowledgedCount())

	_, err = tr.Update([]core.CheckResult{result("a.com", core.StatusSuccess)})
	require.NoError(t, err)

	err = tr.Acknowledge("a.com", "")
	assert.ErrorIs(t, err, core.ErrEndpointNotFound)
}

func TestHistory_WindowAndPagination(t *testing.T) {
	tr, err := New(nil, 30, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := tr.Update([]core.CheckResult{result("a.com", core.CheckStatus("err" + string(rune('0'+i))))})
		require.NoError(t, err)
	}

	page := tr.History(30, 0, 2)
	assert.Len(t, page, 2)

	all := tr.History(30, 0, 0)
	assert.Len(t, all, 5)
}

func TestStats_Aggregation(t *testing.T) {
	tr, err := New(nil, 30, nil)
	require.NoError(t, err)

	_, err = tr.Update([]core.CheckResult{result("a.com", core.StatusTimeout), result("b.com", core.StatusDNSError)})
	require.NoError(t, err)
	_, err = tr.Update([]core.CheckResult{result("a.com", core.StatusSuccess), result("b.com", core.StatusDNSError)})
	require.NoError(t, err)

	stats := tr.Stats(24*time.Hour, 5)
	assert.Equal(t, 2, stats.TotalErrors)
	assert.Equal(t, 1, stats.TotalRecoveries)
	assert.Equal(t, 1, stats.PerErrorClass["dns_error"])
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	store := NewFileStore(path)

	tr, err := New(store, 30, nil)
	require.NoError(t, err)

	_, err = tr.Update([]core.CheckResult{result("a.com", core.StatusTimeout)})
	require.NoError(t, err)

	reloaded, err := New(store, 30, nil)
	require.NoError(t, err)
	assert.Contains(t, reloaded.CurrentErrors(), "a.com")
}
