package homeassistant

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/oscillatelabs/hasskill/util"
)

// frame is a message received on the websocket API.
type frame struct {
	ID        uint64          `json:"id,omitempty"`
	Type      string          `json:"type"`
	Success   *bool           `json:"success,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
	Error     *socketError    `json:"error,omitempty"`
	HAVersion string          `json:"ha_version,omitempty"`
	Message   string          `json:"message,omitempty"`
}

type socketError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateChangeHandler receives state_changed events. updated is nil when the
// entity was removed, old is nil when it appeared.
type StateChangeHandler func(old, updated *State)

// Socket speaks the Home Assistant websocket API: the authentication
// handshake, id-correlated commands and event subscriptions. It reconnects
// and resubscribes by itself after a drop.
type Socket struct {
	url    string
	auth   Auth
	dialer *websocket.Dialer

	conn      *websocket.Conn
	writeLock sync.Mutex

	nextID      uint64
	pending     map[uint64]chan frame
	pendingLock sync.Mutex

	stateHandler StateChangeHandler
	handlerLock  sync.Mutex

	connected *util.Event
	closed    chan struct{}
	closeOnce sync.Once

	// HAVersion reported by auth_ok, for diagnostics.
	HAVersion string
}

// SocketURL derives the websocket endpoint from the REST host url.
func SocketURL(host string) string {
	u := strings.TrimRight(host, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/api/websocket"
}

func NewSocket(host string, auth Auth, insecureSSL bool) *Socket {
	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if insecureSSL {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Socket{
		url:       SocketURL(host),
		auth:      auth,
		dialer:    dialer,
		pending:   map[uint64]chan frame{},
		connected: util.NewEvent(),
		closed:    make(chan struct{}),
	}
}

// Connect dials and authenticates. The first connection fails fast so a bad
// host or token is reported, drops after that heal themselves.
func (s *Socket) Connect(ctx context.Context) error {
	if err := s.dial(ctx); err != nil {
		return err
	}
	go s.readPump()
	go s.pingLoop()
	return nil
}

func (s *Socket) dial(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return errors.Wrapf(err, "dialing %s", s.url)
	}
	if err := s.handshake(conn); err != nil {
		conn.Close()
		return err
	}
	s.writeLock.Lock()
	s.conn = conn
	s.writeLock.Unlock()
	s.connected.Set()
	log.Infof("Authenticated to %s (version %s)", s.url, s.HAVersion)
	return nil
}

// handshake performs the auth exchange: auth_required, auth, auth_ok.
func (s *Socket) handshake(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	var hello frame
	if err := conn.ReadJSON(&hello); err != nil {
		return errors.Wrap(err, "websocket hello")
	}
	if hello.Type != "auth_required" {
		return errors.Errorf("unexpected handshake frame: %s", hello.Type)
	}
	auth := map[string]string{"type": "auth", "access_token": s.auth.AccessToken()}
	if err := conn.WriteJSON(auth); err != nil {
		return errors.Wrap(err, "sending auth")
	}
	var result frame
	if err := conn.ReadJSON(&result); err != nil {
		return errors.Wrap(err, "websocket auth response")
	}
	switch result.Type {
	case "auth_ok":
		s.HAVersion = result.HAVersion
		return nil
	case "auth_invalid":
		return ErrUnauthorized
	default:
		return errors.Errorf("unexpected auth response: %s", result.Type)
	}
}

func (s *Socket) currentConn() *websocket.Conn {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	return s.conn
}

func (s *Socket) readPump() {
	conn := s.currentConn()
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			s.connected.Clear()
			s.failPending()
			select {
			case <-s.closed:
				return
			default:
			}
			log.Warnf("Websocket connection lost: %s", err)
			if err := s.redial(); err != nil {
				log.Errorf("Websocket reconnect abandoned: %s", err)
				return
			}
			conn = s.currentConn()
			continue
		}
		s.route(f)
	}
}

func (s *Socket) redial() error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = time.Minute
	policy.MaxElapsedTime = 0
	return backoff.Retry(func() error {
		select {
		case <-s.closed:
			return backoff.Permanent(errors.New("socket closed"))
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.dial(ctx); err != nil {
			if errors.Cause(err) == ErrUnauthorized {
				return backoff.Permanent(err)
			}
			log.Warnf("Websocket reconnect failed: %s, retrying", err)
			return err
		}
		s.resubscribe()
		return nil
	}, policy)
}

func (s *Socket) route(f frame) {
	switch f.Type {
	case "result", "pong":
		s.pendingLock.Lock()
		ch, ok := s.pending[f.ID]
		if ok {
			delete(s.pending, f.ID)
		}
		s.pendingLock.Unlock()
		if ok {
			ch <- f
		}
	case "event":
		s.handleEvent(f.Event)
	}
}

// call sends a command and waits for its result frame.
func (s *Socket) call(ctx context.Context, msgType string, extra map[string]interface{}) (json.RawMessage, error) {
	if !s.connected.IsSet() {
		return nil, errors.New("websocket not connected")
	}
	s.pendingLock.Lock()
	s.nextID++
	id := s.nextID
	ch := make(chan frame, 1)
	s.pending[id] = ch
	s.pendingLock.Unlock()

	msg := map[string]interface{}{"id": id, "type": msgType}
	for k, v := range extra {
		msg[k] = v
	}
	s.writeLock.Lock()
	conn := s.conn
	var err error
	if conn != nil {
		err = conn.WriteJSON(msg)
	} else {
		err = errors.New("websocket not connected")
	}
	s.writeLock.Unlock()
	if err != nil {
		s.dropPending(id)
		return nil, errors.Wrapf(err, "sending %s", msgType)
	}

	select {
	case f, ok := <-ch:
		if !ok {
			return nil, errors.New("websocket connection lost")
		}
		if f.Type == "pong" {
			return nil, nil
		}
		if f.Success != nil && !*f.Success {
			if f.Error != nil {
				return nil, errors.Errorf("%s failed: %s (%s)", msgType, f.Error.Message, f.Error.Code)
			}
			return nil, errors.Errorf("%s failed", msgType)
		}
		return f.Result, nil
	case <-ctx.Done():
		s.dropPending(id)
		return nil, ctx.Err()
	}
}

func (s *Socket) dropPending(id uint64) {
	s.pendingLock.Lock()
	delete(s.pending, id)
	s.pendingLock.Unlock()
}

func (s *Socket) failPending() {
	s.pendingLock.Lock()
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
	s.pendingLock.Unlock()
}

// callInto sends a command and decodes its result.
func (s *Socket) callInto(ctx context.Context, msgType string, out interface{}) error {
	result, err := s.call(ctx, msgType, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result, out); err != nil {
		return errors.Wrapf(err, "decoding %s", msgType)
	}
	return nil
}

// ExposedEntities lists the entity ids exposed to Assist. This is what the
// assist_only filter keys off.
func (s *Socket) ExposedEntities(ctx context.Context) (map[string]bool, error) {
	var out struct {
		ExposedEntities map[string]json.RawMessage `json:"exposed_entities"`
	}
	if err := s.callInto(ctx, "homeassistant/expose_entity/list", &out); err != nil {
		return nil, err
	}
	exposed := make(map[string]bool, len(out.ExposedEntities))
	for id := range out.ExposedEntities {
		exposed[id] = true
	}
	return exposed, nil
}

// EntityAreas maps entity ids to the name of their area. Entities without
// their own area assignment inherit their device's.
func (s *Socket) EntityAreas(ctx context.Context) (map[string]string, error) {
	var areas []struct {
		AreaID string `json:"area_id"`
		Name   string `json:"name"`
	}
	if err := s.callInto(ctx, "config/area_registry/list", &areas); err != nil {
		return nil, err
	}
	areaNames := make(map[string]string, len(areas))
	for _, area := range areas {
		areaNames[area.AreaID] = area.Name
	}

	var devices []struct {
		ID     string `json:"id"`
		AreaID string `json:"area_id"`
	}
	if err := s.callInto(ctx, "config/device_registry/list", &devices); err != nil {
		return nil, err
	}
	deviceAreas := make(map[string]string, len(devices))
	for _, device := range devices {
		deviceAreas[device.ID] = device.AreaID
	}

	var entities []struct {
		EntityID string `json:"entity_id"`
		DeviceID string `json:"device_id"`
		AreaID   string `json:"area_id"`
	}
	if err := s.callInto(ctx, "config/entity_registry/list", &entities); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entities))
	for _, entity := range entities {
		areaID := entity.AreaID
		if areaID == "" {
			areaID = deviceAreas[entity.DeviceID]
		}
		if name := areaNames[areaID]; name != "" {
			out[entity.EntityID] = name
		}
	}
	return out, nil
}

// SubscribeStates delivers state_changed events to handler, resubscribing
// after reconnects. Only one handler is supported.
func (s *Socket) SubscribeStates(ctx context.Context, handler StateChangeHandler) error {
	s.handlerLock.Lock()
	s.stateHandler = handler
	s.handlerLock.Unlock()
	return s.subscribeEvents(ctx)
}

func (s *Socket) subscribeEvents(ctx context.Context) error {
	_, err := s.call(ctx, "subscribe_events", map[string]interface{}{"event_type": "state_changed"})
	return err
}

func (s *Socket) resubscribe() {
	s.handlerLock.Lock()
	subscribed := s.stateHandler != nil
	s.handlerLock.Unlock()
	if !subscribed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.subscribeEvents(ctx); err != nil {
		log.Errorf("Resubscribing state events failed: %s", err)
	}
}

func (s *Socket) handleEvent(raw json.RawMessage) {
	s.handlerLock.Lock()
	handler := s.stateHandler
	s.handlerLock.Unlock()
	if handler == nil {
		return
	}
	var ev struct {
		EventType string `json:"event_type"`
		Data      struct {
			EntityID string `json:"entity_id"`
			OldState *State `json:"old_state"`
			NewState *State `json:"new_state"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		log.Debugf("Skipping undecodable event: %s", err)
		return
	}
	if ev.EventType != "state_changed" {
		return
	}
	handler(ev.Data.OldState, ev.Data.NewState)
}

func (s *Socket) pingLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			if !s.connected.IsSet() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if _, err := s.call(ctx, "ping", nil); err != nil {
				log.Debugf("Websocket ping failed: %s", err)
			}
			cancel()
		}
	}
}

func (s *Socket) Connected() bool {
	return s.connected.IsSet()
}

func (s *Socket) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.writeLock.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.writeLock.Unlock()
	})
}
