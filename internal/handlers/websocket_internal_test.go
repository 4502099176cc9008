package handlers

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAfterUnregisterIsDropped(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.SendBuffer = 4
	hub := NewWebSocketHub(cfg)
	client := newClient(hub, 42, nil)
	hub.register(client)
	require.Equal(t, 1, hub.ClientCount(42))

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 500; j++ {
				client.enqueue([]byte(`{"type":"reel_frame"}`))
				select {
				case <-client.Send:
				default:
				}
			}
		}()
	}

	close(start)
	hub.unregister(client)
	hub.unregister(client)
	wg.Wait()

	assert.Zero(t, hub.ClientCount(42))
	select {
	case <-client.done:
	default:
		t.Fatal("unregister did not signal the client")
	}
	assert.True(t, client.enqueue([]byte(`{"type":"notice"}`)), "a departed client drops messages instead of reporting a full buffer")
}

func TestEnqueueReportsFullBuffer(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.SendBuffer = 1
	hub := NewWebSocketHub(cfg)
	client := newClient(hub, 7, nil)
	hub.register(client)

	assert.True(t, client.enqueue([]byte("a")))
	assert.False(t, client.enqueue([]byte("b")))
}
