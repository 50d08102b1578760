package delivery

import "time"

// Metrics receives delivery events.
type Metrics interface {
	IncSent(platform string)
	IncAttemptFailed(platform string)
	IncDropped(platform string)
	IncRetracted(platform string, success bool)
	ObserveSendLatency(platform string, d time.Duration)
	GroupStarted(platform string)
	GroupFinished(platform string)
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

func (NoopMetrics) IncSent(string) {}
func (NoopMetrics) IncAttemptFailed(string) {}
func (NoopMetrics) IncDropped(string) {}
func (NoopMetrics) IncRetracted(string, bool) {}
func (NoopMetrics) ObserveSendLatency(string, time.Duration) {}
func (NoopMetrics) GroupStarted(string) {}
func (NoopMetrics) GroupFinished(string) {}
