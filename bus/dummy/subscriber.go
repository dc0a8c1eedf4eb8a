package dummy

import "github.com/oscillatelabs/hasskill/bus"

// Subscriber replays a scripted list of messages to subscribers, for tests.
// The channel is closed once the script runs out, so service loops return.
type Subscriber struct {
	subscriptions []string
	Messages      []*bus.Message
}

func (sub *Subscriber) ID() string {
	return "dummy"
}

func (sub *Subscriber) matches(msg *bus.Message) bool {
	if len(sub.subscriptions) == 0 {
		return true
	}
	for _, s := range sub.subscriptions {
		if s == msg.Type {
			return true
		}
	}
	return false
}

func (sub *Subscriber) replayMessages() <-chan *bus.Message {
	ch := make(chan *bus.Message)
	go func() {
		for _, msg := range sub.Messages {
			if sub.matches(msg) {
				ch <- msg
			}
		}
		close(ch)
	}()
	return ch
}

func (sub *Subscriber) Subscribe(types ...string) <-chan *bus.Message {
	sub.subscriptions = append(sub.subscriptions, types...)
	return sub.replayMessages()
}

func (sub *Subscriber) Close(<-chan *bus.Message) {
}
