package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusHub(t *testing.T) {
	t.Run("DeliversToSubscriber", func(t *testing.T) {
		hub := NewStatusHub(4)
		defer hub.Close()

		events, cancel := hub.Subscribe(1)
		defer cancel()

		hub.Publish(1, StatusEvent{Type: StatusEventCampaign, CampaignUUID: "c-1", Status: "running"})

		select {
		case evt := <-events:
			assert.Equal(t, StatusEventCampaign, evt.Type)
			assert.Equal(t, "c-1", evt.CampaignUUID)
			assert.Equal(t, "running", evt.Status)
			assert.False(t, evt.At.IsZero())
		case <-time.After(time.Second):
			t.Fatal("no event delivered")
		}
	})

	t.Run("EventsAreScopedToUser", func(t *testing.T) {
		hub := NewStatusHub(4)
		defer hub.Close()

		mine, cancelMine := hub.Subscribe(1)
		defer cancelMine()
		theirs, cancelTheirs := hub.Subscribe(2)
		defer cancelTheirs()

		hub.Publish(1, StatusEvent{Type: StatusEventConversation, Status: "completed"})

		select {
		case <-mine:
		case <-time.After(time.Second):
			t.Fatal("subscriber missed its own event")
		}

		select {
		case evt := <-theirs:
			t.Fatalf("event leaked to another user: %+v", evt)
		default:
		}
	})

	t.Run("FanOutToMultipleSubscribers", func(t *testing.T) {
		hub := NewStatusHub(4)
		defer hub.Close()

		first, cancelFirst := hub.Subscribe(1)
		defer cancelFirst()
		second, cancelSecond := hub.Subscribe(1)
		defer cancelSecond()

		require.Equal(t, 2, hub.SubscriberCount(1))

		hub.Publish(1, StatusEvent{Type: StatusEventCampaign, Status: "paused"})

		for _, events := range []<-chan StatusEvent{first, second} {
			select {
			case evt := <-events:
				assert.Equal(t, "paused", evt.Status)
			case <-time.After(time.Second):
				t.Fatal("subscriber missed the event")
			}
		}
	})

	t.Run("SlowConsumersDropEvents", func(t *testing.T) {
		hub := NewStatusHub(2)
		defer hub.Close()

		events, cancel := hub.Subscribe(1)
		defer cancel()

		for i := 0; i < 5; i++ {
			hub.Publish(1, StatusEvent{Type: StatusEventConversation, Status: "in_progress"})
		}

		// Publish never blocks; only the buffered events survive
		assert.Len(t, events, 2)
	})

	t.Run("CancelReleasesSubscription", func(t *testing.T) {
		hub := NewStatusHub(4)
		defer hub.Close()

		events, cancel := hub.Subscribe(1)
		cancel()
		cancel()

		assert.Equal(t, 0, hub.SubscriberCount(1))

		_, open := <-events
		assert.False(t, open)
	})

	t.Run("CloseShutsAllChannels", func(t *testing.T) {
		hub := NewStatusHub(4)

		events, cancel := hub.Subscribe(1)
		defer cancel()

		hub.Close()
		hub.Close()

		_, open := <-events
		assert.False(t, open)

		// Publishing and subscribing after close are safe no-ops
		hub.Publish(1, StatusEvent{Type: StatusEventCampaign, Status: "running"})
		late, lateCancel := hub.Subscribe(2)
		defer lateCancel()
		_, open = <-late
		assert.False(t, open)
	})
}
