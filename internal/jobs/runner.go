package jobs

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"cs2bim-go/internal/cserr"
)

// GenerateFunc runs the actual model-generation pipeline for one task
// and returns the path of the written artifact. It is supplied by the
// caller (internal/app) rather than imported here, so this package never
// needs to know about tin/terrain/citygml/bimwriter.
type GenerateFunc func(ctx context.Context, payload GenerateModelPayload, taskID string) (artifactPath string, err error)

// Runner hosts the asynq worker pool that executes generation jobs.
type Runner struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	dispatcher *Dispatcher
	log        *logrus.Entry
	generate   GenerateFunc
}

// NewRunner builds a Runner with concurrency workers over redisOpt.
func NewRunner(redisOpt asynq.RedisConnOpt, queueName string, concurrency int, registry *Registry, log *logrus.Entry, generate GenerateFunc) *Runner {
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
	})
	r := &Runner{
		server:     server,
		mux:        asynq.NewServeMux(),
		dispatcher: registry.Dispatcher(),
		log:        log,
		generate:   generate,
	}
	r.mux.HandleFunc(TaskTypeGenerateModel, r.handleGenerateModel)
	return r
}

// Run starts the worker pool; it blocks until asynq's own signal
// handling receives a termination signal and shuts the pool down, and
// returns an error only if the pool cannot be started.
func (r *Runner) Run() error {
	return r.server.Run(r.mux)
}

// Shutdown stops the worker pool, waiting for in-flight tasks.
func (r *Runner) Shutdown() {
	r.server.Shutdown()
}

func (r *Runner) handleGenerateModel(ctx context.Context, task *asynq.Task) error {
	taskID, _ := asynq.GetTaskID(ctx)
	payload, err := ParseGenerateModelPayload(task.Payload())
	if err != nil {
		// A malformed payload cannot be retried into success; archive it.
		r.publish(ctx, EventJobFailed, taskID, "malformed payload", err)
		return asynq.SkipRetry
	}

	r.publish(ctx, EventJobStarted, taskID, "generation started", nil)

	_, err = r.generate(ctx, payload, taskID)
	if err != nil {
		if cserr.Is(err, cserr.UnsupportedConfiguration) {
			// No retry is useful for a configuration error, it will
			// fail identically.
			r.publish(ctx, EventJobFailed, taskID, "generation failed", err)
			return asynq.SkipRetry
		}
		r.publish(ctx, EventJobRetried, taskID, "generation failed, will retry", err)
		return err
	}

	r.publish(ctx, EventJobSucceeded, taskID, "generation succeeded", nil)
	return nil
}

func (r *Runner) publish(ctx context.Context, eventType, taskID, msg string, err error) {
	if perr := r.dispatcher.Publish(ctx, NewLifecycleEvent(eventType, taskID, msg, err)); perr != nil {
		r.log.WithError(perr).Warn("lifecycle dispatch failed")
	}
}
