package events

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"workorders_backend/platform/logger"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func newTestBus() *InMemoryBus {
	return NewInMemoryBus(logger.New("production", logger.WithWriter(io.Discard)))
}

func TestPublishRunsEveryHandler(t *testing.T) {
	bus := newTestBus()
	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
			calls.Add(1)
			return nil
		}))
	}

	bus.Publish(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if calls.Load() != 3 {
		t.Fatalf("expected 3 handler calls, got %d", calls.Load())
	}
}

func TestPublishSurvivesCancelledContextAndPanics(t *testing.T) {
	bus := newTestBus()
	var ran atomic.Bool
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		panic("boom")
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, _ Event) error {
		if ctx.Err() != nil {
			t.Errorf("handler context should be detached, got %v", ctx.Err())
		}
		ran.Store(true)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, pingEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if !ran.Load() {
		t.Fatal("expected second handler to run despite first handler panicking")
	}
}

func TestPublishSyncJoinsErrors(t *testing.T) {
	bus := newTestBus()
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error { return errA }))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error { return nil }))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error { return errB }))

	err := bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both handler errors, got %v", err)
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := newTestBus()
	bus.Publish(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	if err := bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()}); err != nil {
		t.Fatalf("expected nil error without subscribers, got %v", err)
	}
}

func TestNewBaseEventStampsIDAndUTC(t *testing.T) {
	a, b := NewBaseEvent(), NewBaseEvent()
	if a.EventID() == "" || a.EventID() == b.EventID() {
		t.Fatalf("expected distinct ids, got %q and %q", a.EventID(), b.EventID())
	}
	if a.OccurredAt().Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", a.OccurredAt().Location())
	}
}
