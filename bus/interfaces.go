package bus

type Publisher interface {
	ID() string
	Emit(msg *Message)
}

type Subscriber interface {
	ID() string
	// Subscribe returns a channel delivering messages whose type matches one
	// of the given types. With no types, every message is delivered.
	Subscribe(types ...string) <-chan *Message
	Close(<-chan *Message)
}
