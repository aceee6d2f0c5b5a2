package services

import (
	"sync"
	"time"

	"github.com/voximate/voximate/utils"
)

// StatusEventType classifies live status events
type StatusEventType string

const (
	StatusEventCampaign     StatusEventType = "campaign_status"
	StatusEventConversation StatusEventType = "conversation_status"
)

// StatusEvent is one live status update delivered to subscribers
type StatusEvent struct {
	Type             StatusEventType `json:"type"`
	CampaignUUID     string          `json:"campaign_uuid,omitempty"`
	ConversationUUID string          `json:"conversation_uuid,omitempty"`
	Status           string          `json:"status"`
	At               time.Time       `json:"at"`
}

// StatusHub fans live status events out to per-user subscribers. It is built
// once at startup and handed to the flows that publish into it; there is no
// package-level instance.
type StatusHub struct {
	mu     sync.RWMutex
	subs   map[uint]map[chan StatusEvent]struct{}
	closed bool

	// buffer bounds each subscriber channel; slow consumers drop events
	buffer int
}

// NewStatusHub creates a new status hub
func NewStatusHub(buffer int) *StatusHub {
	if buffer <= 0 {
		buffer = 16
	}
	return &StatusHub{
		subs:   make(map[uint]map[chan StatusEvent]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber for a user's events. The returned cancel
// function must be called to release the subscription.
func (h *StatusHub) Subscribe(userID uint) (<-chan StatusEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan StatusEvent, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan StatusEvent]struct{})
	}
	h.subs[userID][ch] = struct{}{}

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		if set, ok := h.subs[userID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
				if len(set) == 0 {
					delete(h.subs, userID)
				}
			}
		}
	}

	return ch, cancel
}

// Publish delivers an event to every subscriber of the user. Events to full
// channels are dropped rather than blocking publishers.
func (h *StatusHub) Publish(userID uint, event StatusEvent) {
	if event.At.IsZero() {
		event.At = utils.UTCNow()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	for ch := range h.subs[userID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscribers for a user
func (h *StatusHub) SubscriberCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs[userID])
}

// Close shuts the hub down and closes every subscriber channel
func (h *StatusHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for userID, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, userID)
	}
}
