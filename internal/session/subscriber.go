package session

import (
	"sync"

	"zipdive/internal/layer"
)

// subscriber queues events without bound so the control loop never waits on
// a slow reader; pump hands them to ch in order.
type subscriber struct {
	ch   chan layer.Event
	quit chan struct{}
	wake chan struct{}
	once sync.Once

	mu       sync.Mutex
	queue    []layer.Event
	finished bool
}

func newSubscriber() *subscriber {
	return &subscriber{
		ch:   make(chan layer.Event, subscriberBuffer),
		quit: make(chan struct{}),
		wake: make(chan struct{}, 1),
	}
}

func (sub *subscriber) push(ev layer.Event) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, ev)
	sub.mu.Unlock()
	sub.signal()
}

// finish closes ch once every queued event has been delivered.
func (sub *subscriber) finish() {
	sub.mu.Lock()
	sub.finished = true
	sub.mu.Unlock()
	sub.signal()
}

func (sub *subscriber) stop() {
	sub.once.Do(func() { close(sub.quit) })
}

func (sub *subscriber) signal() {
	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

func (sub *subscriber) pump() {
	defer close(sub.ch)
	for {
		sub.mu.Lock()
		pending, finished := sub.queue, sub.finished
		sub.queue = nil
		sub.mu.Unlock()

		for _, ev := range pending {
			select {
			case sub.ch <- ev:
			case <-sub.quit:
				return
			}
		}
		if len(pending) > 0 {
			continue
		}
		if finished {
			return
		}
		select {
		case <-sub.wake:
		case <-sub.quit:
			return
		}
	}
}
