package jobs

import (
	"time"

	"github.com/hibiken/asynq"

	"cs2bim-go/internal/cserr"
)

// completedTaskRetention keeps finished tasks inspectable so state
// polls after success still see SUCCESS instead of "no such task";
// it matches the 24h asset-cache TTL, after which the artifact is the
// only remaining record of the job.
const completedTaskRetention = 24 * time.Hour

// State is the job-lifecycle vocabulary reported to clients,
// independent of whichever task-queue library backs it.
type State string

const (
	StatePending State = "PENDING"
	StateStarted State = "STARTED"
	StateSuccess State = "SUCCESS"
	StateFailure State = "FAILURE"
	StateRetry   State = "RETRY"
)

// Queue submits generation jobs and reports their state, a thin
// wrapper over asynq's client and inspector.
type Queue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queueName string
}

// NewQueue builds a Queue backed by the given Redis connection.
func NewQueue(redisOpt asynq.RedisConnOpt, queueName string) *Queue {
	return &Queue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		queueName: queueName,
	}
}

// Close releases the underlying client and inspector connections.
func (q *Queue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	return q.inspector.Close()
}

// Submit enqueues a generation task and returns its task id.
func (q *Queue) Submit(payload GenerateModelPayload) (taskID string, err error) {
	task, err := NewGenerateModelTask(payload)
	if err != nil {
		return "", err
	}
	info, err := q.client.Enqueue(task, asynq.Queue(q.queueName), asynq.Retention(completedTaskRetention))
	if err != nil {
		return "", cserr.Wrap(cserr.UpstreamError, "jobs.Queue.Submit", err)
	}
	return info.ID, nil
}

// State reports the current lifecycle state of a submitted task,
// mapping asynq's native states onto the PENDING/STARTED/SUCCESS/
// FAILURE/RETRY vocabulary.
func (q *Queue) State(taskID string) (State, string, error) {
	info, err := q.inspector.GetTaskInfo(q.queueName, taskID)
	if err != nil {
		return "", "", cserr.Wrap(cserr.UpstreamError, "jobs.Queue.State", err)
	}
	return mapAsynqState(info.State), info.LastErr, nil
}

func mapAsynqState(s asynq.TaskState) State {
	switch s {
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateAggregating:
		return StatePending
	case asynq.TaskStateActive:
		return StateStarted
	case asynq.TaskStateCompleted:
		return StateSuccess
	case asynq.TaskStateRetry:
		return StateRetry
	case asynq.TaskStateArchived:
		return StateFailure
	default:
		return StatePending
	}
}
