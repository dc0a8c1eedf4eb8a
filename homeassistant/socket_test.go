package homeassistant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{}

type wsCommand struct {
	ID          uint64 `json:"id"`
	Type        string `json:"type"`
	EventType   string `json:"event_type"`
	AccessToken string `json:"access_token"`
}

// fakeSocketHA speaks the websocket API handshake and a few commands.
func fakeSocketHA(token string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]string{"type": "auth_required", "ha_version": "2024.6.1"})
		var auth wsCommand
		if conn.ReadJSON(&auth) != nil {
			return
		}
		if auth.AccessToken != token {
			conn.WriteJSON(map[string]string{"type": "auth_invalid", "message": "Invalid access token"})
			return
		}
		conn.WriteJSON(map[string]string{"type": "auth_ok", "ha_version": "2024.6.1"})
		for {
			var cmd wsCommand
			if conn.ReadJSON(&cmd) != nil {
				return
			}
			switch cmd.Type {
			case "ping":
				conn.WriteJSON(map[string]interface{}{"id": cmd.ID, "type": "pong"})
			case "homeassistant/expose_entity/list":
				conn.WriteJSON(map[string]interface{}{
					"id": cmd.ID, "type": "result", "success": true,
					"result": map[string]interface{}{"exposed_entities": map[string]interface{}{
						"light.kitchen": map[string]bool{"conversation": true},
						"switch.fan":    map[string]bool{"conversation": true},
					}},
				})
			case "config/area_registry/list":
				conn.WriteJSON(map[string]interface{}{
					"id": cmd.ID, "type": "result", "success": true,
					"result": []map[string]interface{}{
						{"area_id": "kitchen", "name": "Kitchen"},
						{"area_id": "lounge", "name": "Lounge"},
					},
				})
			case "config/device_registry/list":
				conn.WriteJSON(map[string]interface{}{
					"id": cmd.ID, "type": "result", "success": true,
					"result": []map[string]interface{}{
						{"id": "dev1", "area_id": "lounge"},
					},
				})
			case "config/entity_registry/list":
				conn.WriteJSON(map[string]interface{}{
					"id": cmd.ID, "type": "result", "success": true,
					"result": []map[string]interface{}{
						{"entity_id": "light.kitchen", "device_id": "", "area_id": "kitchen"},
						{"entity_id": "switch.fan", "device_id": "dev1", "area_id": ""},
						{"entity_id": "sensor.orphan", "device_id": "", "area_id": ""},
					},
				})
			case "subscribe_events":
				conn.WriteJSON(map[string]interface{}{"id": cmd.ID, "type": "result", "success": true})
				conn.WriteJSON(map[string]interface{}{"id": cmd.ID, "type": "event", "event": map[string]interface{}{
					"event_type": "state_changed",
					"data": map[string]interface{}{
						"entity_id": "light.kitchen",
						"old_state": map[string]interface{}{"entity_id": "light.kitchen", "state": "on",
							"attributes": map[string]interface{}{"friendly_name": "Kitchen Light"}},
						"new_state": map[string]interface{}{"entity_id": "light.kitchen", "state": "off",
							"attributes": map[string]interface{}{"friendly_name": "Kitchen Light"}},
					},
				}})
			default:
				conn.WriteJSON(map[string]interface{}{"id": cmd.ID, "type": "result", "success": true})
			}
		}
	}))
}

func TestSocketURL(t *testing.T) {
	assert.Equal(t, "ws://ha:8123/api/websocket", SocketURL("http://ha:8123/"))
	assert.Equal(t, "wss://ha.example.org/api/websocket", SocketURL("https://ha.example.org"))
}

func TestSocketAuth(t *testing.T) {
	srv := fakeSocketHA(testToken)
	defer srv.Close()

	socket := NewSocket(srv.URL, NewTokenAuth(testToken), false)
	require.NoError(t, socket.Connect(context.Background()))
	defer socket.Close()

	assert.True(t, socket.Connected())
	assert.Equal(t, "2024.6.1", socket.HAVersion)
}

func TestSocketAuthInvalid(t *testing.T) {
	srv := fakeSocketHA(testToken)
	defer srv.Close()

	socket := NewSocket(srv.URL, NewTokenAuth("wrong"), false)
	err := socket.Connect(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, socket.Connected())
}

func TestSocketExposedEntities(t *testing.T) {
	srv := fakeSocketHA(testToken)
	defer srv.Close()

	socket := NewSocket(srv.URL, NewTokenAuth(testToken), false)
	require.NoError(t, socket.Connect(context.Background()))
	defer socket.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	exposed, err := socket.ExposedEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"light.kitchen": true, "switch.fan": true}, exposed)
}

func TestSocketEntityAreas(t *testing.T) {
	srv := fakeSocketHA(testToken)
	defer srv.Close()

	socket := NewSocket(srv.URL, NewTokenAuth(testToken), false)
	require.NoError(t, socket.Connect(context.Background()))
	defer socket.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	areas, err := socket.EntityAreas(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"light.kitchen": "Kitchen",
		"switch.fan":    "Lounge", // inherited from its device
	}, areas)
}

func TestSocketStateEvents(t *testing.T) {
	srv := fakeSocketHA(testToken)
	defer srv.Close()

	socket := NewSocket(srv.URL, NewTokenAuth(testToken), false)
	require.NoError(t, socket.Connect(context.Background()))
	defer socket.Close()

	changes := make(chan string, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := socket.SubscribeStates(ctx, func(old, updated *State) {
		changes <- updated.EntityID + ":" + updated.State
	})
	require.NoError(t, err)

	select {
	case change := <-changes:
		assert.Equal(t, "light.kitchen:off", change)
	case <-time.After(2 * time.Second):
		t.Fatal("no state_changed event delivered")
	}
}
