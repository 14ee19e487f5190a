package rtmp

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Bridge activity. A nil *Metrics records nothing.
type Metrics struct {
	liveHandles      prometheus.Gauge
	transientRecords prometheus.Gauge
	operations       *prometheus.CounterVec
	bytes            *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		liveHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtmp",
			Name:      "live_handles",
			Help:      "Session contexts currently allocated.",
		}),
		transientRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtmp",
			Name:      "transient_packet_records",
			Help:      "Send-side packet records currently held.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtmp",
			Name:      "operations_total",
			Help:      "Bridge operations by name and result.",
		}, []string{"op", "result"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtmp",
			Name:      "bytes_total",
			Help:      "Bytes moved through Read and Write.",
		}, []string{"direction"}),
	}

	for _, c := range []prometheus.Collector{m.liveHandles, m.transientRecords, m.operations, m.bytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op string, status int) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, statusName(status)).Inc()
}

func (m *Metrics) handleAllocated() {
	if m == nil {
		return
	}
	m.liveHandles.Inc()
}

func (m *Metrics) handleReleased() {
	if m == nil {
		return
	}
	m.liveHandles.Dec()
}

func (m *Metrics) recordAcquired() {
	if m == nil {
		return
	}
	m.transientRecords.Inc()
}

func (m *Metrics) recordReleased() {
	if m == nil {
		return
	}
	m.transientRecords.Dec()
}

func (m *Metrics) transferred(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.WithLabelValues(direction).Add(float64(n))
}
