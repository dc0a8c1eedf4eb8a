package services

import "github.com/oscillatelabs/hasskill/bus"

// Speak emits a text to speech request. When request is given the speak
// message is sent as its reply, so the host routes the audio back to the
// client that spoke the original utterance.
func Speak(utterance string, meta bus.Data, request *bus.Message) {
	data := bus.Data{
		"utterance":       utterance,
		"expect_response": false,
	}
	if Config != nil && Config.Lang != "" {
		data["lang"] = Config.Lang
	}
	if meta != nil {
		data["meta"] = meta
	}
	var msg *bus.Message
	if request != nil {
		msg = request.Reply("speak", data)
	} else {
		msg = bus.NewMessage("speak", data)
	}
	Publisher.Emit(msg)
}
