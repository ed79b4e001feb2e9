package broadcast

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentstream/internal/audit"
)

func testEvent(eventType string) audit.Event {
	return audit.Event{ID: uuid.New(), EventType: eventType}
}

func TestPublishFansOut(t *testing.T) {
	b := New()
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	require.Equal(t, 2, b.Len())

	event := testEvent("user.login")
	b.Publish(event)

	got1 := <-sub1
	got2 := <-sub2
	assert.Equal(t, event.ID, got1.ID)
	assert.Equal(t, event.ID, got2.ID)
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	var events []audit.Event
	for i := range 10 {
		e := testEvent(fmt.Sprintf("event.%d", i))
		events = append(events, e)
		b.Publish(e)
	}

	for i := range 10 {
		got := <-sub
		assert.Equal(t, events[i].ID, got.ID, "event %d out of order", i)
	}
}

func TestPublishDropsFullSubscriber(t *testing.T) {
	b := New()
	slow := b.Subscribe()
	fast := b.Subscribe()

	// Fill every backlog, then drain only the fast subscriber so the slow
	// one alone is full at overflow time.
	for range subscriberCapacity {
		b.Publish(testEvent("filler"))
	}
	for range subscriberCapacity {
		<-fast
	}
	require.Equal(t, 2, b.Len())

	// The overflowing publish must not block, and must deregister only the
	// full subscriber.
	overflow := testEvent("overflow")
	b.Publish(overflow)
	assert.Equal(t, 1, b.Len())

	assert.Equal(t, overflow.ID, (<-fast).ID)

	// The dropped channel is not closed: the owner drains its backlog and
	// the overflow event is simply missing.
	for range subscriberCapacity {
		<-slow
	}
	select {
	case _, ok := <-slow:
		assert.Fail(t, "expected no further delivery", "received, open=%v", ok)
	default:
	}

	// Unsubscribe after being dropped is safe and closes nothing twice.
	b.Unsubscribe(slow)
	b.Unsubscribe(fast)
	assert.Equal(t, 0, b.Len())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	b.Unsubscribe(sub)

	_, ok := <-sub
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())

	// Double unsubscribe is a no-op.
	b.Unsubscribe(sub)
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	b := New()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 50 {
				b.Publish(testEvent("churn"))
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				sub := b.Subscribe()
				b.Unsubscribe(sub)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, b.Len())
}
