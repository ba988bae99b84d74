package controller

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/cinemasync/server/internal/protocol"
	"github.com/cinemasync/server/pkg/wsrouter"
)

// Broadcasts run on whichever handler goroutine triggered them, so two
// participants acting at once write to the same third conn concurrently.
// Gorilla allows one writer per conn; without serialization that panics.
func TestWriteToConnSerializesWriters(t *testing.T) {
	c := controller{
		writeLocks: &sync.Map{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	upgrader := websocket.Upgrader{}
	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- conn
	}))
	defer srv.Close()

	clientConn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer clientConn.Close()

	serverConn := <-connCh
	defer serverConn.Close()

	const writers = 4
	const frames = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < frames; j++ {
				c.broadcast(context.Background(), []*websocket.Conn{serverConn}, &Output{
					Type:    protocol.EventNewReaction,
					Payload: protocol.NewReactionPayload{Reaction: "🔥"},
				})
			}
		}()
	}

	for received := 0; received < writers*frames; received++ {
		var msg wsrouter.Message
		require.NoError(t, clientConn.ReadJSON(&msg))
		require.Equal(t, protocol.EventNewReaction, msg.Type)
	}

	wg.Wait()
}
