package jobs

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Registry wires the lifecycle Dispatcher to its handlers. This build
// ships only a logging handler; new observers (metrics, audit trails)
// plug in the same way without touching the job runner itself.
type Registry struct {
	dispatcher *Dispatcher
	log        *logrus.Entry
}

// NewRegistry creates a Dispatcher and registers the default handlers.
func NewRegistry(log *logrus.Entry) *Registry {
	r := &Registry{
		dispatcher: NewDispatcher(),
		log:        log,
	}
	r.registerHandlers()
	return r
}

// Dispatcher returns the underlying event dispatcher.
func (r *Registry) Dispatcher() *Dispatcher { return r.dispatcher }

func (r *Registry) registerHandlers() {
	r.dispatcher.Subscribe(EventJobStarted, r.logEvent)
	r.dispatcher.Subscribe(EventJobSucceeded, r.logEvent)
	r.dispatcher.Subscribe(EventJobFailed, r.logEvent)
	r.dispatcher.Subscribe(EventJobRetried, r.logEvent)
}

func (r *Registry) logEvent(_ context.Context, event LifecycleEvent) error {
	entry := r.log.WithFields(logrus.Fields{
		"task_id": event.TaskID,
		"event":   event.EventType,
	})
	if event.Err != nil {
		entry.WithError(event.Err).Warn(event.Message)
	} else {
		entry.Info(event.Message)
	}
	return nil
}
