package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonny/chatbridge/internal/domain/model"
	"github.com/jonny/chatbridge/internal/domain/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// parseBody builds a Note activity whose content is the event body. Bodies
// "skip", "fail" and "invalid" exercise the three drop paths.
func parseBody(_ context.Context, e model.Event) (*model.Activity, error) {
	body := string(e.Body)
	switch body {
	case "skip":
		return nil, nil
	case "fail":
		return nil, errors.New("boom")
	}
	a := model.NewActivity("svc", "test", time.Unix(1483677146, 0))
	a.Actor = model.Actor{ID: "u1", Type: model.ActorTypePerson}
	a.Target = model.Actor{ID: "g1", Type: model.ActorTypeGroup}
	a.Object = model.Object{ID: "m-" + body, Type: model.ObjectTypeNote, Content: body}
	if body == "invalid" {
		a.Actor.ID = ""
	}
	return &a, nil
}

func TestPipeline_DropsAndPreservesOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := service.NewEventBus()
	p := service.NewPipeline(parseBody, service.NewActivityValidator(), discardLogger())
	stream := p.Attach(ctx, bus)

	for _, body := range []string{"first", "skip", "fail", "invalid", "second"} {
		bus.Publish(model.NewEvent([]byte(body), nil))
	}

	var got []string
	for len(got) < 2 {
		select {
		case a, ok := <-stream:
			if !ok {
				t.Fatal("stream closed early")
			}
			got = append(got, a.Object.Content)
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	if got[0] != "first" || got[1] != "second" {
		t.Errorf("got %v, want [first second]", got)
	}

	// Nothing else should come through: the three bad events were dropped.
	select {
	case a := <-stream:
		t.Errorf("unexpected activity %+v", a)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPipeline_ClosesOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := service.NewEventBus()
	stream := service.NewPipeline(parseBody, nil, nil).Attach(ctx, bus)

	cancel()
	select {
	case _, ok := <-stream:
		if ok {
			t.Fatal("expected closed stream")
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not close after cancel")
	}

	deadline := time.Now().Add(time.Second)
	for bus.Subscribers() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if bus.Subscribers() != 0 {
		t.Error("subscription not released after cancel")
	}
}

func TestActivityValidator(t *testing.T) {
	v := service.NewActivityValidator()
	if v.Validate(nil) != nil {
		t.Error("nil activity must be dropped")
	}

	a, _ := parseBody(context.Background(), model.NewEvent([]byte("ok"), nil))
	if v.Validate(a) != a {
		t.Error("valid activity must pass through unchanged")
	}

	a.Object.Content = ""
	if v.Validate(a) != nil {
		t.Error("note without content must be dropped")
	}
}
