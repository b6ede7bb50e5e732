package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Metrics counts published events by name.
type Metrics struct {
	total *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{total: prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "auth_events_total", Help: "Auth domain events by name"},
		[]string{"event"},
	)}
	if reg != nil {
		reg.MustRegister(m.total)
	}
	for _, n := range All {
		m.total.WithLabelValues(string(n))
	}
	return m
}

func (m *Metrics) Handle(_ context.Context, e Event) error {
	m.total.WithLabelValues(string(e.Name)).Inc()
	return nil
}

// LogHandler writes every event at info, replays at warn.
func LogHandler(l *zap.Logger) Handler {
	return func(_ context.Context, e Event) error {
		fields := []zap.Field{zap.String("event", string(e.Name)), zap.String("userId", e.UserID)}
		for k, v := range e.Attrs {
			fields = append(fields, zap.String(k, v))
		}
		if e.Name == TokenReplayDetected {
			l.Warn("auth event", fields...)
			return nil
		}
		l.Info("auth event", fields...)
		return nil
	}
}
