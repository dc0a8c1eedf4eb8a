package dummy

import "github.com/oscillatelabs/hasskill/bus"

// Publisher records emitted messages, for tests.
type Publisher struct {
	Messages []*bus.Message
}

func (pub *Publisher) ID() string {
	return "dummy"
}

func (pub *Publisher) Emit(msg *bus.Message) {
	pub.Messages = append(pub.Messages, msg)
}

// OfType returns the recorded messages of the given type.
func (pub *Publisher) OfType(msgType string) []*bus.Message {
	var ret []*bus.Message
	for _, msg := range pub.Messages {
		if msg.Type == msgType {
			ret = append(ret, msg)
		}
	}
	return ret
}
