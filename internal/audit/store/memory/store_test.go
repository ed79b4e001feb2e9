package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentstream/internal/audit"
)

func seedStore(t *testing.T, n int) *Store {
	t.Helper()
	store := New()
	for i := range n {
		err := store.Append(context.Background(), audit.Event{
			ID:        uuid.New(),
			EventType: fmt.Sprintf("event.%d", i),
		})
		require.NoError(t, err)
	}
	return store
}

func TestListNewestFirst(t *testing.T) {
	store := seedStore(t, 3)

	events, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "event.2", events[0].EventType)
	assert.Equal(t, "event.0", events[2].EventType)
}

func TestListPagination(t *testing.T) {
	store := seedStore(t, 5)
	ctx := context.Background()

	page1, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"event.4", "event.3"}, eventTypes(page1))

	page2, err := store.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"event.2", "event.1"}, eventTypes(page2))

	past, err := store.List(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestListEmptyStore(t *testing.T) {
	store := New()
	events, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func eventTypes(events []audit.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventType
	}
	return out
}
