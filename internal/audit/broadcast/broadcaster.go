// Package broadcast fans audit events out to live stream subscribers.
package broadcast

import (
	"sync"

	"talentstream/internal/audit"
)

// subscriberCapacity bounds each subscriber's backlog. A subscriber whose
// channel is full at publish time is treated as dead and deregistered.
const subscriberCapacity = 100

// Broadcaster is an in-process publish/subscribe hub. Publish never blocks on
// a slow consumer: favoring publisher liveness over consumer completeness is
// the backpressure policy here, so collaborators emitting audit events are
// never stalled by a stuck stream client.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[<-chan audit.Event]chan audit.Event
}

// New creates an empty broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		subs: make(map[<-chan audit.Event]chan audit.Event),
	}
}

// Subscribe registers a new subscriber and returns its channel. The caller
// owns the channel and must call Unsubscribe when it stops consuming.
//
// A subscriber registered concurrently with an in-flight Publish may or may
// not receive that specific event; the publish snapshots whatever set it
// observes. This race is accepted, not a bug.
func (b *Broadcaster) Subscribe() <-chan audit.Event {
	ch := make(chan audit.Event, subscriberCapacity)
	b.mu.Lock()
	b.subs[ch] = ch
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call for
// a subscriber the broadcaster already dropped for slowness; the channel is
// then left open, and only the owner ever stops receiving on it.
func (b *Broadcaster) Unsubscribe(ch <-chan audit.Event) {
	b.mu.Lock()
	if send, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(send)
	}
	b.mu.Unlock()
}

// Publish delivers event to every registered subscriber without blocking.
// Subscribers whose channel is full are deregistered. Removal happens before
// the channel is abandoned, so nothing writes to a dropped channel again.
func (b *Broadcaster) Publish(event audit.Event) {
	var dead []<-chan audit.Event

	// Sends stay under the read lock: Unsubscribe (which closes) must not
	// interleave with an in-flight send.
	b.mu.RLock()
	for recv, send := range b.subs {
		select {
		case send <- event:
		default:
			dead = append(dead, recv)
		}
	}
	b.mu.RUnlock()

	if len(dead) == 0 {
		return
	}
	b.mu.Lock()
	for _, recv := range dead {
		// Not closed here: the owning session still drains its backlog and
		// remains the only closer via Unsubscribe.
		delete(b.subs, recv)
	}
	b.mu.Unlock()
}

// Len reports the current subscriber count.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
