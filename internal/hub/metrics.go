package hub

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	active    prometheus.Gauge
	total     prometheus.Counter
	evictions prometheus.Counter
	pushes    *prometheus.CounterVec
	fanout    prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}

	m := &metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Current number of registered live connections.",
		}),
		total: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Total number of live connections registered since start.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_connections_evicted_total",
			Help: "Connections replaced by a newer connection of the same user.",
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_fanout_pushes_total",
			Help: "Push attempts to live connections grouped by result.",
		}, []string{"result"}),
		fanout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_fanout_recipients",
			Help:    "Number of live recipients per broadcast.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
	}

	reg.MustRegister(m.active, m.total, m.evictions, m.pushes, m.fanout)
	return m
}

func (m *metrics) registered(evicted bool) {
	if m == nil {
		return
	}
	m.total.Inc()
	if evicted {
		m.evictions.Inc()
		return
	}
	m.active.Inc()
}

func (m *metrics) unregistered() {
	if m == nil {
		return
	}
	m.active.Dec()
}

func (m *metrics) push(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "dropped"
	}
	m.pushes.WithLabelValues(result).Inc()
}

func (m *metrics) recipients(n int) {
	if m == nil {
		return
	}
	m.fanout.Observe(float64(n))
}
