package service

import (
	"sync"

	"github.com/jonny/chatbridge/internal/domain/model"
)

// EventBus fans raw webhook events out to every subscriber in publish order.
// Publish never blocks: each subscriber owns an unbounded FIFO queue drained by
// its own goroutine, so a slow consumer cannot stall a webhook response.
type EventBus struct {
	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[uint64]*subscription)}
}

// Publish enqueues event for every current subscriber and returns how many
// received it. Events published with no subscribers are discarded.
func (b *EventBus) Publish(event model.Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		sub.push(event)
	}
	return len(b.subs)
}

// Subscribe registers a new subscriber. The returned channel yields events in
// publish order and is closed after the cancel function is called.
func (b *EventBus) Subscribe() (<-chan model.Event, func()) {
	sub := &subscription{
		wake: make(chan struct{}, 1),
		out:  make(chan model.Event),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go sub.run()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
	return sub.out, cancel
}

// Subscribers returns the number of active subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

type subscription struct {
	mu    sync.Mutex
	queue []model.Event
	wake  chan struct{}
	out   chan model.Event
	done  chan struct{}
}

func (s *subscription) push(event model.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		next := s.queue[0]
		s.queue[0] = model.Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}
