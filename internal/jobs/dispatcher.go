package jobs

import (
	"context"
	"fmt"
	"sync"
)

// Handler reacts to a job lifecycle event.
type Handler func(ctx context.Context, event LifecycleEvent) error

// Dispatcher manages subscription and publishing of job lifecycle
// events, decoupling the job runner from whoever wants to observe
// state transitions.
type Dispatcher struct {
	handlers map[string][]Handler
	mutex    sync.RWMutex
}

// NewDispatcher creates a new, empty lifecycle dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for a specific event type.
func (d *Dispatcher) Subscribe(eventType string, handler Handler) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Publish sends an event to all registered handlers concurrently and
// collects any errors they return.
func (d *Dispatcher) Publish(ctx context.Context, event LifecycleEvent) error {
	d.mutex.RLock()
	handlers := d.handlers[event.Type()]
	d.mutex.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(handlers))
	for _, h := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			if err := h(ctx, event); err != nil {
				errCh <- fmt.Errorf("handler error for event %s: %w", event.Type(), err)
			}
		}(h)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("lifecycle dispatch errors: %v", errs)
	}
	return nil
}

// PublishSync sends an event to all registered handlers in order,
// stopping at the first error.
func (d *Dispatcher) PublishSync(ctx context.Context, event LifecycleEvent) error {
	d.mutex.RLock()
	handlers := d.handlers[event.Type()]
	d.mutex.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return fmt.Errorf("handler error for event %s: %w", event.Type(), err)
		}
	}
	return nil
}

// HasHandlers reports whether any handler is registered for eventType.
func (d *Dispatcher) HasHandlers(eventType string) bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return len(d.handlers[eventType]) > 0
}
