package network

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newConnPair returns a server-side WSConnection and the client socket talking to it.
func newConnPair(t *testing.T, opts Options) (*WSConnection, *websocket.Conn) {
	t.Helper()
	accepted := make(chan *WSConnection, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		accepted <- NewWSConnection("c1", conn, opts)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case c := <-accepted:
		return c, client
	case <-time.After(5 * time.Second):
		t.Fatal("server never accepted the connection")
		return nil, nil
	}
}

func readEvent(t *testing.T, client *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, frame, err := client.ReadMessage()
	require.NoError(t, err)
	event, _ := decodeEnvelope(t, frame)
	return event
}

func TestWSConnection_SendPreservesOrder(t *testing.T) {
	conn, client := newConnPair(t, Options{})

	require.NoError(t, conn.Send(Connected{SessionToken: "t"}))
	require.NoError(t, conn.Send(Message{Text: "welcome"}))
	require.NoError(t, conn.Send(StateChanged{RoundState: "idle"}))

	assert.Equal(t, EventConnected, readEvent(t, client))
	assert.Equal(t, EventMessage, readEvent(t, client))
	assert.Equal(t, EventState, readEvent(t, client))
}

func TestWSConnection_CloseFlushesQueuedMessages(t *testing.T) {
	conn, client := newConnPair(t, Options{})

	require.NoError(t, conn.Send(Message{Text: "Connection refused"}))
	require.NoError(t, conn.Close())

	assert.Equal(t, EventMessage, readEvent(t, client))
	_, _, err := client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.ErrorIs(t, conn.Send(Message{Text: "late"}), ErrConnectionClosed)
	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("socket not closed")
	}
}

func TestWSConnection_ReadFrame(t *testing.T) {
	conn, client := newConnPair(t, Options{})

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"event":"idle"}`)))

	frame, err := conn.ReadFrame()
	require.NoError(t, err)
	msg, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, RevealComplete{}, msg)
	assert.Equal(t, "c1", conn.ID())
}

func TestWSConnection_CloseIsIdempotent(t *testing.T) {
	conn, _ := newConnPair(t, Options{})
	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}
