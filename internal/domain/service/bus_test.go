package service_test

import (
	"testing"
	"time"

	"github.com/jonny/chatbridge/internal/domain/model"
	"github.com/jonny/chatbridge/internal/domain/service"
)

func receiveEvent(t *testing.T, ch <-chan model.Event) model.Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return model.Event{}
}

func TestEventBus_FIFOPerSubscriber(t *testing.T) {
	bus := service.NewEventBus()
	events, cancel := bus.Subscribe()
	defer cancel()

	for _, body := range []string{"1", "2", "3"} {
		if n := bus.Publish(model.NewEvent([]byte(body), nil)); n != 1 {
			t.Fatalf("expected 1 subscriber, got %d", n)
		}
	}

	for _, want := range []string{"1", "2", "3"} {
		if got := string(receiveEvent(t, events).Body); got != want {
			t.Errorf("body = %q, want %q", got, want)
		}
	}
}

func TestEventBus_FanOut(t *testing.T) {
	bus := service.NewEventBus()
	a, cancelA := bus.Subscribe()
	defer cancelA()
	b, cancelB := bus.Subscribe()
	defer cancelB()

	bus.Publish(model.NewEvent([]byte("hello"), nil))

	if got := string(receiveEvent(t, a).Body); got != "hello" {
		t.Errorf("subscriber A got %q", got)
	}
	if got := string(receiveEvent(t, b).Body); got != "hello" {
		t.Errorf("subscriber B got %q", got)
	}
}

func TestEventBus_PublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	bus := service.NewEventBus()
	_, cancel := bus.Subscribe()
	defer cancel()

	start := time.Now()
	for i := 0; i < 1000; i++ {
		bus.Publish(model.NewEvent(nil, nil))
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("publish blocked on a subscriber that never reads")
	}
}

func TestEventBus_CancelClosesChannel(t *testing.T) {
	bus := service.NewEventBus()
	events, cancel := bus.Subscribe()
	cancel()
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if bus.Subscribers() != 0 {
		t.Errorf("expected 0 subscribers, got %d", bus.Subscribers())
	}
	if n := bus.Publish(model.NewEvent(nil, nil)); n != 0 {
		t.Errorf("expected publish to reach 0 subscribers, got %d", n)
	}
}
