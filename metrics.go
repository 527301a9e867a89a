package notifybox

import "time"

// Metrics captures dispatcher telemetry.
type Metrics interface {
	// ObserveBatchDuration records the time to drain a batch.
	ObserveBatchDuration(duration time.Duration)
	// AddSent increments the count of delivered records.
	AddSent(count int)
	// AddErrors increments the count of failed delivery attempts.
	AddErrors(count int)
	// AddRetries increments the count of records re-armed for another attempt.
	AddRetries(count int)
	// AddDead increments the count of dead-lettered records.
	AddDead(count int)
	// AddHookErrors increments the count of order hook failures.
	AddHookErrors(count int)
	// SetPending updates the current pending record count.
	SetPending(count int)
	// SetDead updates the current dead record count.
	SetDead(count int)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

// ObserveBatchDuration implements Metrics.
func (NopMetrics) ObserveBatchDuration(time.Duration) {}

// AddSent implements Metrics.
func (NopMetrics) AddSent(int) {}

// AddErrors implements Metrics.
func (NopMetrics) AddErrors(int) {}

// AddRetries implements Metrics.
func (NopMetrics) AddRetries(int) {}

// AddDead implements Metrics.
func (NopMetrics) AddDead(int) {}

// AddHookErrors implements Metrics.
func (NopMetrics) AddHookErrors(int) {}

// SetPending implements Metrics.
func (NopMetrics) SetPending(int) {}

// SetDead implements Metrics.
func (NopMetrics) SetDead(int) {}
