package bus

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

type messageFilter func(*Message) bool

type messageChannel struct {
	filter messageFilter
	C      chan *Message
}

// FilteredSubscriber filters a raw stream of messages client-side. The bus
// broadcasts every message to every client, so type filtering always happens
// on our end.
type FilteredSubscriber struct {
	id           string
	channels     []messageChannel
	channelsLock sync.Mutex
}

// NewFilteredSubscriber returns a Subscriber fanning out messages read from
// ch. The subscriber stops when ch is closed.
func NewFilteredSubscriber(id string, ch <-chan *Message) *FilteredSubscriber {
	self := &FilteredSubscriber{id: id}
	go self.run(ch)
	return self
}

func (self *FilteredSubscriber) ID() string {
	return self.id
}

func (self *FilteredSubscriber) run(ch <-chan *Message) {
	for msg := range ch {
		self.Dispatch(msg)
	}
	// feed is gone for good, release anyone ranging over a subscription
	self.channelsLock.Lock()
	for _, ch := range self.channels {
		close(ch.C)
	}
	self.channels = nil
	self.channelsLock.Unlock()
}

// Dispatch delivers a message to all matching subscription channels. Sends
// never block: a subscriber that falls over 16 messages behind loses them.
func (self *FilteredSubscriber) Dispatch(msg *Message) {
	self.channelsLock.Lock()
	for _, ch := range self.channels {
		if ch.filter(msg) {
			select {
			case ch.C <- msg:
			default:
				log.Warnf("Subscriber %s lagging, dropped message: %s", self.id, msg.Type)
			}
		}
	}
	self.channelsLock.Unlock()
}

func (self *FilteredSubscriber) addChannel(filter messageFilter) messageChannel {
	ch := messageChannel{
		C:      make(chan *Message, 16),
		filter: filter,
	}
	self.channelsLock.Lock()
	self.channels = append(self.channels, ch)
	self.channelsLock.Unlock()
	return ch
}

func stringSet(li []string) map[string]bool {
	ret := map[string]bool{}
	for _, i := range li {
		ret[i] = true
	}
	return ret
}

func (self *FilteredSubscriber) Subscribe(types ...string) <-chan *Message {
	if len(types) == 0 {
		ch := self.addChannel(func(msg *Message) bool { return true })
		return ch.C
	}
	typeSet := stringSet(types)
	ch := self.addChannel(func(msg *Message) bool { return typeSet[msg.Type] })
	return ch.C
}

func (self *FilteredSubscriber) Close(channel <-chan *Message) {
	self.channelsLock.Lock()
	var channels []messageChannel
	for _, ch := range self.channels {
		if channel == (<-chan *Message)(ch.C) {
			close(ch.C)
		} else {
			channels = append(channels, ch)
		}
	}
	self.channels = channels
	self.channelsLock.Unlock()
}
