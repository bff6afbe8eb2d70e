package jobs

import "time"

// Event types published over the lifecycle Dispatcher.
const (
	EventJobStarted   = "job.started"
	EventJobSucceeded = "job.succeeded"
	EventJobFailed    = "job.failed"
	EventJobRetried   = "job.retried"
)

// LifecycleEvent describes a state transition of one generation job.
type LifecycleEvent struct {
	EventType string
	TaskID    string
	Occurred  time.Time
	Message   string
	Err       error
}

// Type returns the event type, satisfying the Dispatcher's Handler key.
func (e LifecycleEvent) Type() string { return e.EventType }

// NewLifecycleEvent builds a LifecycleEvent for the given task.
func NewLifecycleEvent(eventType, taskID, message string, err error) LifecycleEvent {
	return LifecycleEvent{
		EventType: eventType,
		TaskID:    taskID,
		Occurred:  time.Now(),
		Message:   message,
		Err:       err,
	}
}
