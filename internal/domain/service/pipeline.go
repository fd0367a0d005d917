package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jonny/chatbridge/internal/domain/model"
)

var errNilActivity = errors.New("nil activity")

// ParseFunc maps a raw event to a candidate activity. Returning a nil activity
// and a nil error marks the payload as unrecognized; it is skipped silently.
type ParseFunc func(ctx context.Context, event model.Event) (*model.Activity, error)

// Pipeline turns the raw event stream of one adapter into validated activities:
// event arrival -> parse -> validate -> emit. Events are processed one at a time
// so output order matches arrival order.
type Pipeline struct {
	parse     ParseFunc
	validator *ActivityValidator
	logger    *slog.Logger
}

func NewPipeline(parse ParseFunc, validator *ActivityValidator, logger *slog.Logger) *Pipeline {
	if validator == nil {
		validator = NewActivityValidator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{parse: parse, validator: validator, logger: logger}
}

// Attach subscribes to bus and returns the activity stream. The subscription
// is taken before Attach returns, so no event published afterwards is missed.
// The stream closes when ctx is done.
func (p *Pipeline) Attach(ctx context.Context, bus *EventBus) <-chan model.Activity {
	events, cancel := bus.Subscribe()
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return p.Run(ctx, events)
}

// Run consumes events until ctx is done or events is closed.
func (p *Pipeline) Run(ctx context.Context, events <-chan model.Event) <-chan model.Activity {
	out := make(chan model.Activity)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				activity, ok := p.process(ctx, event)
				if !ok {
					continue
				}
				select {
				case out <- activity:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (p *Pipeline) process(ctx context.Context, event model.Event) (model.Activity, bool) {
	candidate, err := p.parse(ctx, event)
	if err != nil {
		p.logger.Warn("dropping event: parse failed", "error", err)
		return model.Activity{}, false
	}
	if candidate == nil {
		p.logger.Debug("dropping unrecognized event", "bytes", len(event.Body))
		return model.Activity{}, false
	}
	if err := p.validator.Check(candidate); err != nil {
		p.logger.Debug("dropping invalid activity", "error", err)
		return model.Activity{}, false
	}
	return *candidate, true
}
