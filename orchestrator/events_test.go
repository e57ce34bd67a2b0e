package orchestrator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/playergold/playergold-bootstrap-core/structures"
)

func TestPublishReachesEverySubscriber(t *testing.T) {

	require := require.New(t)

	publisher := NewEventPublisher()

	firstCh, firstUnsubscribe := publisher.Subscribe()

	defer firstUnsubscribe()

	secondCh, secondUnsubscribe := publisher.Subscribe()

	defer secondUnsubscribe()

	publisher.Publish(structures.BootstrapEvent{Kind: structures.EVENT_MODE_CHANGED, Mode: structures.BOOTSTRAP_MODE_DISCOVERY})

	for _, eventsCh := range []<-chan structures.BootstrapEvent{firstCh, secondCh} {

		select {

		case event := <-eventsCh:

			require.Equal(structures.EVENT_MODE_CHANGED, event.Kind)

			require.Equal(structures.BOOTSTRAP_MODE_DISCOVERY, event.Mode)

			require.Positive(event.Timestamp)

		case <-time.After(time.Second):
			t.Fatal("subscriber never received the event")

		}

	}

}

func TestUnsubscribeClosesChannel(t *testing.T) {

	require := require.New(t)

	publisher := NewEventPublisher()

	eventsCh, unsubscribe := publisher.Subscribe()

	unsubscribe()

	// Safe to call again.
	unsubscribe()

	_, open := <-eventsCh

	require.False(open)

	// Publishing to a fully unsubscribed publisher is a no-op.
	publisher.Publish(structures.BootstrapEvent{Kind: structures.EVENT_ERROR})

}

// A slow subscriber loses its oldest events, never the newest, and never
// blocks the publisher.
func TestSlowSubscriberDropsOldestEvents(t *testing.T) {

	require := require.New(t)

	publisher := NewEventPublisher()

	eventsCh, unsubscribe := publisher.Subscribe()

	defer unsubscribe()

	total := EVENT_BUFFER_SIZE + 2

	for i := 0; i < total; i++ {
		publisher.Publish(structures.BootstrapEvent{Kind: structures.EVENT_PEERS_DISCOVERED, Mode: fmt.Sprintf("seq-%d", i)})
	}

	var received []structures.BootstrapEvent

	for {

		select {

		case event := <-eventsCh:
			received = append(received, event)
			continue

		default:
		}

		break

	}

	require.Len(received, EVENT_BUFFER_SIZE)

	require.Equal("seq-2", received[0].Mode)

	require.Equal(fmt.Sprintf("seq-%d", total-1), received[len(received)-1].Mode)

}

func TestCloseTerminatesEverything(t *testing.T) {

	require := require.New(t)

	publisher := NewEventPublisher()

	eventsCh, _ := publisher.Subscribe()

	publisher.Close()

	_, open := <-eventsCh

	require.False(open)

	// Subscriptions after close come back already closed.
	lateCh, lateUnsubscribe := publisher.Subscribe()

	lateUnsubscribe()

	_, open = <-lateCh

	require.False(open)

	publisher.Publish(structures.BootstrapEvent{Kind: structures.EVENT_ERROR})

	publisher.Close()

}
