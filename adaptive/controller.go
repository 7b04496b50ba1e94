// Package adaptive adjusts worker-pool width based on CPU, memory, and
// recent batch latency feedback, observed only at batch boundaries.
package adaptive

import (
	"github.com/opsmind/pulseguard/pkg/logger"
)

// MinConcurrent and MaxConcurrent bound every candidate the controller
// produces, regardless of host pressure.
const (
	MinConcurrent = 1
	MaxConcurrent = 200
)

// HostMetrics reports point-in-time host resource pressure. The bool return
// is false when the sample isn't available (first call, unsupported OS),
// which leaves the controller a no-op for that cycle.
type HostMetrics interface {
	CPUPercent() (float64, bool)
	MemoryPercent() (float64, bool)
}

// Sample is one batch-boundary observation fed to Adjust.
type Sample struct {
	Initial int // the configured (not current) concurrency
	Current int // the pool's width right now
	TimeoutSeconds float64 // configured per-probe timeout
	RecentBatchMeans []float64 // up to the last three batch mean response times
}

// Controller implements the resize rules.
type Controller struct {
	metrics HostMetrics
	log logger.Logger
}

// NewController wires a Controller to a HostMetrics source. A nil metrics
// source makes the controller permanently inert.
func NewController(metrics HostMetrics, log logger.Logger) *Controller {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	if metrics == nil {
		metrics = NoopHostMetrics{}
	}
	return &Controller{metrics: metrics, log: log}
}

// Adjust returns the new max_concurrent for Sample, or Current unchanged if
// the host-metrics facility is unavailable or the candidate doesn't clear
// the 20% hysteresis band. Later rules may only lower the candidate
// the CPU rule produced, except the low-CPU branch which raises it.
func (c *Controller) Adjust(s Sample) int {
	cpu, cpuOK := c.metrics.CPUPercent()
	mem, memOK := c.metrics.MemoryPercent()
	if !cpuOK && !memOK {
		return s.Current
	}

	candidate := s.Initial

	if cpuOK {
		switch {
		case cpu > 80:
			candidate = min(candidate, s.Initial/2)
		case cpu > 60:
			candidate = min(candidate, int(float64(s.Initial)*0.7))
		case cpu < 30:
			candidate = min(s.Initial*2, MaxConcurrent)
		}
	}

	if memOK {
		switch {
		case mem > 85:
			candidate = min(candidate, int(float64(s.Initial)*0.3))
		case mem > 70:
			candidate = min(candidate, int(float64(s.Initial)*0.6))
		}
	}

	if len(s.RecentBatchMeans) > 0 && s.TimeoutSeconds > 0 {
		if average(s.RecentBatchMeans) > 0.8*s.TimeoutSeconds {
			candidate = int(float64(candidate) * 0.7)
		}
	}

	candidate = max(min(candidate, MaxConcurrent), MinConcurrent)

	if s.Current == 0 {
		return candidate
	}

	delta := float64(absInt(candidate-s.Current)) / float64(s.Current)
	if delta <= 0.2 {
		return s.Current
	}

	c.log.Info("adaptive controller resizing pool",
		"from", s.Current, "to", candidate, "cpu_percent", cpu, "memory_percent", mem)
	return candidate
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
