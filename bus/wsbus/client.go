// Package wsbus connects to an OVOS/Neon message bus over websocket.
//
// The bus broadcasts every message to every connected client, so filtering
// by message type happens client-side. Emit never blocks the caller on bus
// trouble: failed sends are logged and dropped, the connection heals itself.
package wsbus

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/oscillatelabs/hasskill/bus"
	"github.com/oscillatelabs/hasskill/util"
)

// DefaultURL is where an OVOS host runs its message bus.
const DefaultURL = "ws://127.0.0.1:8181/core"

type Client struct {
	url       string
	conn      *websocket.Conn
	writeLock sync.Mutex
	connected *util.Event
	incoming  chan *bus.Message
	sub       *bus.FilteredSubscriber

	onConnect    []func()
	handlersLock sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
}

func NewClient(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	self := &Client{
		url:       url,
		connected: util.NewEvent(),
		incoming:  make(chan *bus.Message, 64),
		closed:    make(chan struct{}),
	}
	self.sub = bus.NewFilteredSubscriber(self.ID(), self.incoming)
	return self
}

func (self *Client) ID() string {
	return "wsbus: " + self.url
}

// Connect dials the bus, retrying until it comes up, and starts the read
// loop. Later connection drops reconnect automatically.
func (self *Client) Connect() error {
	if err := self.dial(); err != nil {
		return err
	}
	go self.readPump()
	return nil
}

func (self *Client) dial() error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0
	return backoff.Retry(func() error {
		select {
		case <-self.closed:
			return backoff.Permanent(errors.New("bus closed"))
		default:
		}
		conn, _, err := websocket.DefaultDialer.Dial(self.url, nil)
		if err != nil {
			log.Warnf("Bus connect to %s failed: %s, retrying", self.url, err)
			return err
		}
		self.writeLock.Lock()
		self.conn = conn
		self.writeLock.Unlock()
		self.connected.Set()
		log.Infof("Connected to message bus at %s", self.url)
		self.fireConnectHandlers()
		return nil
	}, policy)
}

func (self *Client) currentConn() *websocket.Conn {
	self.writeLock.Lock()
	defer self.writeLock.Unlock()
	return self.conn
}

func (self *Client) readPump() {
	conn := self.currentConn()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			self.connected.Clear()
			select {
			case <-self.closed:
				close(self.incoming)
				return
			default:
			}
			log.Warnf("Bus connection lost: %s", err)
			if err := self.dial(); err != nil {
				close(self.incoming)
				return
			}
			conn = self.currentConn()
			continue
		}
		msg := bus.Parse(raw)
		if msg == nil {
			log.Debugf("Skipping malformed bus frame: %.120s", raw)
			continue
		}
		self.incoming <- msg
	}
}

// OnConnect registers fn to run on every successful connection. If the bus
// is already up, fn runs now as well. Used to (re)register intents after
// reconnects.
func (self *Client) OnConnect(fn func()) {
	self.handlersLock.Lock()
	self.onConnect = append(self.onConnect, fn)
	self.handlersLock.Unlock()
	if self.connected.IsSet() {
		go fn()
	}
}

func (self *Client) fireConnectHandlers() {
	self.handlersLock.Lock()
	handlers := make([]func(), len(self.onConnect))
	copy(handlers, self.onConnect)
	self.handlersLock.Unlock()
	go func() {
		for _, fn := range handlers {
			fn()
		}
	}()
}

func (self *Client) Connected() bool {
	return self.connected.IsSet()
}

// WaitConnected blocks until the bus connection is up.
func (self *Client) WaitConnected() {
	self.connected.Wait()
}

func (self *Client) Emit(msg *bus.Message) {
	if !self.connected.IsSet() {
		log.Warnf("Bus disconnected, dropping message: %s", msg.Type)
		return
	}
	self.writeLock.Lock()
	defer self.writeLock.Unlock()
	if err := self.conn.WriteMessage(websocket.TextMessage, msg.Bytes()); err != nil {
		log.Errorf("Bus write failed: %s", err)
	}
}

func (self *Client) Subscribe(types ...string) <-chan *bus.Message {
	return self.sub.Subscribe(types...)
}

func (self *Client) Close(ch <-chan *bus.Message) {
	self.sub.Close(ch)
}

// Shutdown closes the bus connection for good.
func (self *Client) Shutdown() {
	self.closeOnce.Do(func() {
		close(self.closed)
		self.writeLock.Lock()
		if self.conn != nil {
			self.conn.Close()
		}
		self.writeLock.Unlock()
	})
}
