package ws

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	frames *prometheus.CounterVec
	errors *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}

	m := &metrics{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_ws_frames_total",
			Help: "Inbound websocket frames grouped by type.",
		}, []string{"type"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_ws_errors_total",
			Help: "Error frames sent back to clients grouped by code.",
		}, []string{"code"}),
	}
	reg.MustRegister(m.frames, m.errors)
	return m
}

func (m *metrics) frame(typ string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(typ).Inc()
}

func (m *metrics) error(code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(code).Inc()
}
