package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_PublishReachesAllHandlers(t *testing.T) {
	d := NewDispatcher()

	var calls atomic.Int32
	handler := func(ctx context.Context, event LifecycleEvent) error {
		calls.Add(1)
		return nil
	}
	d.Subscribe(EventJobStarted, handler)
	d.Subscribe(EventJobStarted, handler)

	err := d.Publish(context.Background(), NewLifecycleEvent(EventJobStarted, "task-1", "started", nil))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatcher_PublishCollectsHandlerErrors(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(EventJobFailed, func(ctx context.Context, event LifecycleEvent) error {
		return errors.New("boom")
	})

	err := d.Publish(context.Background(), NewLifecycleEvent(EventJobFailed, "task-1", "failed", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestDispatcher_PublishWithoutHandlersIsNoop(t *testing.T) {
	d := NewDispatcher()
	err := d.Publish(context.Background(), NewLifecycleEvent(EventJobSucceeded, "task-1", "done", nil))
	assert.NoError(t, err)
}

func TestPayload_RoundTrip(t *testing.T) {
	origin := [3]float64{2600000, 1200000, 400}
	task, err := NewGenerateModelTask(GenerateModelPayload{
		IfcVersion:    "IFC4",
		Name:          "test",
		PolygonWKT:    "POLYGON((0 0,1 0,1 1,0 1,0 0))",
		ProjectOrigin: &origin,
	})
	require.NoError(t, err)

	decoded, err := ParseGenerateModelPayload(task.Payload())
	require.NoError(t, err)
	assert.Equal(t, "IFC4", decoded.IfcVersion)
	require.NotNil(t, decoded.ProjectOrigin)
	assert.Equal(t, origin, *decoded.ProjectOrigin)
}
