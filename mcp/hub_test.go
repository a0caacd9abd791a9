package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub(t *testing.T) {
	t.Run("Broadcast reaches every subscriber", func(t *testing.T) {
		hub := NewHub(4)
		_, first := hub.Subscribe()
		_, second := hub.Subscribe()
		require.Equal(t, 2, hub.Len())

		hub.Broadcast([]byte("hello"))

		assert.Equal(t, []byte("hello"), <-first)
		assert.Equal(t, []byte("hello"), <-second)
	})

	t.Run("Unsubscribe closes the channel", func(t *testing.T) {
		hub := NewHub(4)
		id, ch := hub.Subscribe()

		hub.Unsubscribe(id)

		_, open := <-ch
		assert.False(t, open)
		assert.Equal(t, 0, hub.Len())
	})

	t.Run("Slow subscriber loses messages instead of blocking", func(t *testing.T) {
		hub := NewHub(1)
		_, ch := hub.Subscribe()

		hub.Broadcast([]byte("first"))
		hub.Broadcast([]byte("second"))

		assert.Equal(t, []byte("first"), <-ch)
		select {
		case msg := <-ch:
			t.Fatalf("expected dropped message, got %s", msg)
		default:
		}
	})

	t.Run("Unsubscribing twice is safe", func(t *testing.T) {
		hub := NewHub(4)
		id, _ := hub.Subscribe()

		hub.Unsubscribe(id)
		hub.Unsubscribe(id)

		assert.Equal(t, 0, hub.Len())
	})
}
