package bus

import (
	"encoding/json"
)

// Data holds the payload or context of a bus message.
type Data map[string]interface{}

// Message is the JSON envelope spoken on OVOS compatible message buses.
// Every frame on the wire is an object with a type naming the event, a data
// payload, and a context map that rides along replies for routing.
type Message struct {
	Type    string `json:"type"`
	Data    Data   `json:"data"`
	Context Data   `json:"context"`
}

func NewMessage(msgType string, data Data) *Message {
	if data == nil {
		data = Data{}
	}
	return &Message{Type: msgType, Data: data, Context: Data{}}
}

// Reply builds a response to this message. The context is carried over with
// source and destination swapped, so the host routes the response back to
// wherever the original came from.
func (m *Message) Reply(msgType string, data Data) *Message {
	reply := NewMessage(msgType, data)
	for k, v := range m.Context {
		reply.Context[k] = v
	}
	src, dst := m.Context["source"], m.Context["destination"]
	if src != nil || dst != nil {
		reply.Context["source"], reply.Context["destination"] = dst, src
	}
	return reply
}

func (m *Message) Bytes() []byte {
	c := *m
	if c.Data == nil {
		c.Data = Data{}
	}
	if c.Context == nil {
		c.Context = Data{}
	}
	v, _ := json.Marshal(&c)
	return v
}

func (m *Message) String() string {
	return string(m.Bytes())
}

func (m *Message) StringField(name string) string {
	ret, _ := m.Data[name].(string)
	return ret
}

func (m *Message) IntField(name string) int64 {
	ret, _ := m.Data[name].(float64)
	return int64(ret)
}

func (m *Message) FloatField(name string) (float64, bool) {
	ret, ok := m.Data[name].(float64)
	return ret, ok
}

func (m *Message) BoolField(name string) bool {
	ret, _ := m.Data[name].(bool)
	return ret
}

func (m *Message) SetField(name string, value interface{}) {
	if m.Data == nil {
		m.Data = Data{}
	}
	m.Data[name] = value
}

// Utterance returns the raw spoken text the intent parser matched, if the
// host included it.
func (m *Message) Utterance() string {
	if s := m.StringField("utterance"); s != "" {
		return s
	}
	// some hosts send the list of transcriptions instead
	if li, ok := m.Data["utterances"].([]interface{}); ok && len(li) > 0 {
		s, _ := li[0].(string)
		return s
	}
	return ""
}

// Parse decodes a wire frame. Returns nil if the frame is not a valid
// message envelope.
func Parse(raw []byte) *Message {
	msg := &Message{}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil
	}
	if msg.Type == "" {
		return nil
	}
	if msg.Data == nil {
		msg.Data = Data{}
	}
	if msg.Context == nil {
		msg.Context = Data{}
	}
	return msg
}
