package services

import (
	"github.com/oscillatelabs/hasskill/bus"
)

// Question is a request arriving over the message bus as "<service>.<verb>".
type Question struct {
	Verb    string
	From    string
	Message *bus.Message
}

// Answer to a Question. Text lands in the "answer" field of the reply,
// Data fields are merged in alongside.
type Answer struct {
	Text string
	Data bus.Data
}

type QueryHandler func(q Question) Answer

type QueryHandlers map[string]QueryHandler

// Queryable services answer bus requests of type "<id>.<verb>" with a
// "<id>.<verb>.response" reply.
type Queryable interface {
	ID() string
	QueryHandlers() QueryHandlers
}

// TextHandler adapts a string return value to an Answer
func TextHandler(fn func(q Question) string) QueryHandler {
	return func(q Question) Answer {
		return Answer{Text: fn(q)}
	}
}

// StaticHandler just returns a hardcoded string - useful for "help"
func StaticHandler(msg string) QueryHandler {
	return func(_ Question) Answer {
		return Answer{Text: msg}
	}
}

func sendAnswer(request *bus.Message, answer Answer) {
	data := bus.Data{}
	for name, value := range answer.Data {
		data[name] = value
	}
	if answer.Text != "" {
		data["answer"] = answer.Text
	}
	Publisher.Emit(request.Reply(request.Type+".response", data))
}

type boundQuery struct {
	verb    string
	handler QueryHandler
}

func handleQuery(msg *bus.Message, bindings map[string]boundQuery) {
	binding, ok := bindings[msg.Type]
	if !ok {
		return
	}
	from, _ := msg.Context["source"].(string)
	q := Question{
		Verb:    binding.verb,
		From:    from,
		Message: msg,
	}
	sendAnswer(msg, binding.handler(q))
}

// QuerySubscriber dispatches bus requests to Queryable services.
func QuerySubscriber() {
	bindings := map[string]boundQuery{}
	types := []string{}
	for _, service := range enabled {
		qs, ok := service.(Queryable)
		if !ok {
			continue
		}
		for verb, handler := range qs.QueryHandlers() {
			msgType := qs.ID() + "." + verb
			bindings[msgType] = boundQuery{verb: verb, handler: handler}
			types = append(types, msgType)
		}
	}
	if len(types) == 0 {
		// no point running if no Queryable services
		return
	}

	for msg := range Subscriber.Subscribe(types...) {
		handleQuery(msg, bindings)
	}
}
