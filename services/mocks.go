package services

import (
	"github.com/oscillatelabs/hasskill/bus"
	"github.com/oscillatelabs/hasskill/bus/dummy"
	"github.com/oscillatelabs/hasskill/config"
)

// SetupMocks points the shared globals at a dummy bus and a fresh copy of
// the example configuration. Scripted messages are replayed to subscribers.
// For tests.
func SetupMocks(scripted ...*bus.Message) (*dummy.Publisher, *dummy.Subscriber) {
	publisher := &dummy.Publisher{}
	subscriber := &dummy.Subscriber{Messages: scripted}
	Publisher = publisher
	Subscriber = subscriber
	Config = config.Must(config.OpenRaw([]byte(config.ExampleYaml)))
	Bus = nil
	Client = nil
	Socket = nil
	HomeAssistant = nil
	Waiter = nil
	SettingsPath = ""
	return publisher, subscriber
}
