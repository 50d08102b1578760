// Package metrics exports router and delivery events to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements the router and delivery metrics interfaces.
type Prometheus struct {
	published    *prometheus.CounterVec
	sent         *prometheus.CounterVec
	failed       *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	retracted    *prometheus.CounterVec
	sendLatency  *prometheus.HistogramVec
	activeGroups *prometheus.GaugeVec
}

// NewPrometheus creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Prometheus{
		// Publishing
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "topicrouter_publish_total",
			Help: "The total number of publish calls by outcome",
		}, []string{"outcome"}),

		// Delivery
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "topicrouter_messages_sent_total",
			Help: "The total number of messages delivered to a channel",
		}, []string{"platform"}),

		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "topicrouter_send_attempts_failed_total",
			Help: "The total number of failed send attempts",
		}, []string{"platform"}),

		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "topicrouter_messages_dropped_total",
			Help: "The total number of messages dropped after exhausting retries",
		}, []string{"platform"}),

		retracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "topicrouter_retractions_total",
			Help: "The total number of retraction attempts by result",
		}, []string{"platform", "result"}),

		sendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "topicrouter_send_latency_seconds",
			Help: "The latency of successful send attempts",
		}, []string{"platform"}),

		activeGroups: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "topicrouter_delivery_groups_active",
			Help: "The number of platform delivery sequences currently running",
		}, []string{"platform"}),
	}

	reg.MustRegister(m.published, m.sent, m.failed, m.dropped, m.retracted, m.sendLatency, m.activeGroups)
	return m
}

func (m *Prometheus) IncPublish(outcome string) {
	m.published.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) IncSent(platform string) {
	m.sent.WithLabelValues(platform).Inc()
}

func (m *Prometheus) IncAttemptFailed(platform string) {
	m.failed.WithLabelValues(platform).Inc()
}

func (m *Prometheus) IncDropped(platform string) {
	m.dropped.WithLabelValues(platform).Inc()
}

func (m *Prometheus) IncRetracted(platform string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.retracted.WithLabelValues(platform, result).Inc()
}

func (m *Prometheus) ObserveSendLatency(platform string, d time.Duration) {
	m.sendLatency.WithLabelValues(platform).Observe(d.Seconds())
}

func (m *Prometheus) GroupStarted(platform string) {
	m.activeGroups.WithLabelValues(platform).Inc()
}

func (m *Prometheus) GroupFinished(platform string) {
	m.activeGroups.WithLabelValues(platform).Dec()
}
