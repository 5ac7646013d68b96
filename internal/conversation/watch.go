package conversation

import "sync"

// watchBuffer is the per-subscriber channel capacity. A subscriber that falls
// further behind than this drops messages rather than stalling the turn.
const watchBuffer = 16

// watchHub fans appended messages out to live watchers, keyed by
// conversation id.
type watchHub struct {
	mu   sync.Mutex
	subs map[string]map[chan Message]struct{}
}

func newWatchHub() *watchHub {
	return &watchHub{subs: make(map[string]map[chan Message]struct{})}
}

// subscribe registers a watcher for a conversation. The returned channel is
// closed when the watcher is cancelled or the conversation is dropped; the
// cancel function is idempotent.
func (h *watchHub) subscribe(conversationID string) (<-chan Message, func()) {
	ch := make(chan Message, watchBuffer)

	h.mu.Lock()
	set, ok := h.subs[conversationID]
	if !ok {
		set = make(map[chan Message]struct{})
		h.subs[conversationID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() { h.remove(conversationID, ch) }
	return ch, cancel
}

// remove unregisters ch and closes it exactly once. Whoever takes the channel
// out of the set owns the close, so cancel and closeTopic cannot race into a
// double close.
func (h *watchHub) remove(conversationID string, ch chan Message) {
	h.mu.Lock()
	owned := false
	if set, ok := h.subs[conversationID]; ok {
		if _, present := set[ch]; present {
			delete(set, ch)
			owned = true
			if len(set) == 0 {
				delete(h.subs, conversationID)
			}
		}
	}
	h.mu.Unlock()

	if owned {
		close(ch)
	}
}

// publish delivers msg to every watcher of the conversation without blocking.
func (h *watchHub) publish(conversationID string, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[conversationID] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// closeTopic drops every watcher of a conversation, closing their channels.
func (h *watchHub) closeTopic(conversationID string) {
	h.mu.Lock()
	set := h.subs[conversationID]
	delete(h.subs, conversationID)
	h.mu.Unlock()
	for ch := range set {
		close(ch)
	}
}
