package orchestrator

import (
	"sync"

	"github.com/playergold/playergold-bootstrap-core/structures"
	"github.com/playergold/playergold-bootstrap-core/utils"
)

// Per-subscriber buffer. A subscriber that falls this far behind starts
// losing its oldest events rather than blocking the publisher.
const EVENT_BUFFER_SIZE = 16

// EventPublisher fans bootstrap lifecycle events out to subscriber channels.
// Publishing never blocks: a full subscriber drops its oldest event first.
type EventPublisher struct {
	mu sync.Mutex

	nextSubscriberId int

	subscribers map[int]chan structures.BootstrapEvent

	closed bool
}

func NewEventPublisher() *EventPublisher {
	return &EventPublisher{subscribers: make(map[int]chan structures.BootstrapEvent)}
}

// Subscribe registers a new listener. The returned func removes the
// subscription and closes the channel; it is safe to call more than once.
func (publisher *EventPublisher) Subscribe() (<-chan structures.BootstrapEvent, func()) {

	publisher.mu.Lock()

	defer publisher.mu.Unlock()

	eventsCh := make(chan structures.BootstrapEvent, EVENT_BUFFER_SIZE)

	if publisher.closed {
		close(eventsCh)
		return eventsCh, func() {}
	}

	subscriberId := publisher.nextSubscriberId

	publisher.nextSubscriberId++

	publisher.subscribers[subscriberId] = eventsCh

	var once sync.Once

	unsubscribe := func() {

		once.Do(func() {

			publisher.mu.Lock()

			defer publisher.mu.Unlock()

			if ch, ok := publisher.subscribers[subscriberId]; ok {
				delete(publisher.subscribers, subscriberId)
				close(ch)
			}

		})

	}

	return eventsCh, unsubscribe
}

// Publish delivers the event to every subscriber. Fills in the timestamp when
// the caller left it zero.
func (publisher *EventPublisher) Publish(event structures.BootstrapEvent) {

	if event.Timestamp == 0 {
		event.Timestamp = utils.GetUTCTimestampInMilliSeconds()
	}

	publisher.mu.Lock()

	defer publisher.mu.Unlock()

	if publisher.closed {
		return
	}

	for _, eventsCh := range publisher.subscribers {

		select {

		case eventsCh <- event:

		default:

			// Full buffer: drop the oldest event, then retry once.
			select {
			case <-eventsCh:
			default:
			}

			select {
			case eventsCh <- event:
			default:
			}

		}

	}

}

// Close terminates every subscription. Further publishes are no-ops.
func (publisher *EventPublisher) Close() {

	publisher.mu.Lock()

	defer publisher.mu.Unlock()

	if publisher.closed {
		return
	}

	publisher.closed = true

	for subscriberId, eventsCh := range publisher.subscribers {
		delete(publisher.subscribers, subscriberId)
		close(eventsCh)
	}

}
