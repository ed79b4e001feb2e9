package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentstream/internal/audit"
)

func TestNotifyDeliversEvent(t *testing.T) {
	received := make(chan audit.Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var event audit.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		received <- event
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := New(server.URL)
	event := audit.Event{
		ID:        uuid.New(),
		EventType: "user.login",
		Actor:     "user-1",
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	n.Notify(event)

	select {
	case got := <-received:
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, "user.login", got.EventType)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was never called")
	}
}

func TestNotifyDoesNotBlockOnDeadEndpoint(t *testing.T) {
	n := New("http://127.0.0.1:1/hook", WithHTTPClient(&http.Client{
		Timeout: 50 * time.Millisecond,
	}))

	done := make(chan struct{})
	go func() {
		n.Notify(audit.Event{ID: uuid.New(), EventType: "user.login"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a dead endpoint")
	}
}
