package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/tracker"
)

func TestDecide_ManualAlwaysFullSummary(t *testing.T) {
	d := Decide(Input{Level: "smart", IsManual: true})
	assert.Equal(t, DecisionFullSummary, d)
}

func TestDecide_AllLevel(t *testing.T) {
	d := Decide(Input{Level: "all"})
	assert.Equal(t, DecisionFullSummary, d)
}

func TestDecide_ErrorLevel_WithFailures(t *testing.T) {
	d := Decide(Input{Level: "error", Results: []core.CheckResult{{Status: core.StatusTimeout}}})
	assert.Equal(t, DecisionFullSummary, d)
}

func TestDecide_ErrorLevel_AllHealthy(t *testing.T) {
	d := Decide(Input{Level: "error", Results: []core.CheckResult{{Status: core.StatusSuccess}}})
	assert.Equal(t, DecisionSuppress, d)
}

func TestDecide_Smart_ChangeDelta(t *testing.T) {
	d := Decide(Input{Level: "smart", Diff: tracker.Diff{NewErrors: []core.CheckResult{{Status: core.StatusTimeout}}}})
	assert.Equal(t, DecisionChangeDelta, d)
}

func TestDecide_Smart_PersistentReminder(t *testing.T) {
	d := Decide(Input{Level: "smart", UnacknowledgedCount: 2})
	assert.Equal(t, DecisionPersistentReminder, d)
}

func TestDecide_Smart_Suppress(t *testing.T) {
	d := Decide(Input{Level: "smart"})
	assert.Equal(t, DecisionSuppress, d)
}

func TestRouteGroups_PartitionsByEndpoint(t *testing.T) {
	groups := []Group{
		{Name: "ops", Endpoints: map[string]struct{}{"a.com": {}}},
		{Name: "biz", Endpoints: map[string]struct{}{"b.com": {}}},
	}
	results := []core.CheckResult{{Endpoint: "a.com"}, {Endpoint: "b.com"}, {Endpoint: "c.com"}}

	routed := RouteGroups(groups, results)
	assert.Len(t, routed["ops"], 1)
	assert.Len(t, routed["biz"], 1)
	assert.Equal(t, "a.com", routed["ops"][0].Endpoint)
}

func TestConsecutiveFailures_TracksStreaksAndClears(t *testing.T) {
	c := NewConsecutiveFailures()

	snap := c.Update([]core.CheckResult{{Endpoint: "a.com", Status: core.StatusTimeout}})
	assert.Equal(t, 1, snap["a.com"])

	snap = c.Update([]core.CheckResult{{Endpoint: "a.com", Status: core.StatusTimeout}})
	assert.Equal(t, 2, snap["a.com"])

	snap = c.Update([]core.CheckResult{{Endpoint: "a.com", Status: core.StatusSuccess}})
	_, exists := snap["a.com"]
	assert.False(t, exists)
}
