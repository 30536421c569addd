package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/pkg/channels/gochannel"
	"github.com/weftworks/weft/pkg/events"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewStdLogger(false, false))
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.StepFinishedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	sent := events.StepFinished{
		BaseEvent:  events.NewBaseEvent(events.StepFinishedEvent, "wf-1", "exec-1"),
		StepNumber: 2,
		StepSlug:   "fetch",
		Cost:       0.03,
		Tokens:     120,
	}
	require.NoError(t, bus.Publish(ctx, "exec-1", sent))

	select {
	case event := <-received:
		finished, ok := event.(*events.StepFinished)
		require.True(t, ok)
		assert.Equal(t, "fetch", finished.StepSlug)
		assert.Equal(t, 2, finished.StepNumber)
		assert.Equal(t, "exec-1", finished.ExecutionID)
		assert.InDelta(t, 0.03, finished.Cost, 0.0001)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestUnhandledEventTypeIsAcked(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	// No handler for this type; it must not block the stream.
	require.NoError(t, bus.Publish(ctx, "exec-1", events.ExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.ExecutionStartedEvent, "wf-1", "exec-1"),
	}))
	require.NoError(t, bus.Publish(ctx, "exec-1", events.ExecutionCompleted{
		BaseEvent: events.NewBaseEvent(events.ExecutionCompletedEvent, "wf-1", "exec-1"),
		Cost:      1.5,
	}))

	select {
	case event := <-received:
		completed, ok := event.(*events.ExecutionCompleted)
		require.True(t, ok)
		assert.InDelta(t, 1.5, completed.Cost, 0.0001)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestGenerateID(t *testing.T) {
	bus := newTestBus(t)

	assert.NotEmpty(t, bus.GenerateID())
	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
