package wsbus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscillatelabs/hasskill/bus"
)

var upgrader = websocket.Upgrader{}

// echoServer behaves like the host bus: every frame a client sends is
// broadcast back to it.
func echoServer(received chan []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if received != nil {
				received <- raw
			}
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientEmitSubscribe(t *testing.T) {
	received := make(chan []byte, 8)
	srv := echoServer(received)
	defer srv.Close()

	client := NewClient(wsURL(srv))
	require.NoError(t, client.Connect())
	defer client.Shutdown()

	ch := client.Subscribe("speak")
	client.Emit(bus.NewMessage("speak", bus.Data{"utterance": "hello"}))

	select {
	case raw := <-received:
		assert.Contains(t, string(raw), `"type":"speak"`)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the message")
	}

	select {
	case msg := <-ch:
		assert.Equal(t, "speak", msg.Type)
		assert.Equal(t, "hello", msg.StringField("utterance"))
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not receive the echo")
	}
}

func TestClientOnConnect(t *testing.T) {
	srv := echoServer(nil)
	defer srv.Close()

	client := NewClient(wsURL(srv))
	require.NoError(t, client.Connect())
	defer client.Shutdown()
	assert.True(t, client.Connected())

	fired := make(chan bool, 1)
	client.OnConnect(func() { fired <- true })
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("connect handler did not fire")
	}
}
