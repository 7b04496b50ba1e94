package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_SnapshotReflectsCounts(t *testing.T) {
	m := NewMetrics()
	m.recordSendMsg()
	m.recordSendMsg()
	m.recordHealth()
	m.recordCommand("/status")

	snap := m.Snapshot()
	assert.Equal(t, float64(2), snap["pulseguard_sendmsg_total"])
	assert.Equal(t, float64(1), snap["pulseguard_health_total"])
	assert.Equal(t, float64(1), snap["pulseguard_commands_total_/status"])
}
