package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscillatelabs/hasskill/bus"
)

func TestAsk(t *testing.T) {
	response := bus.NewMessage("hasskill.get.devices.response", bus.Data{"answer": "2 devices"})
	publisher, _ := SetupMocks(response)

	reply, err := Ask(bus.NewMessage("hasskill.get.devices", nil), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "2 devices", reply.StringField("answer"))

	require.Len(t, publisher.Messages, 1)
	assert.Equal(t, "hasskill.get.devices", publisher.Messages[0].Type)
}

func TestAskTimeout(t *testing.T) {
	SetupMocks()
	_, err := Ask(bus.NewMessage("hasskill.get.devices", nil), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAskSkipsForeignReply(t *testing.T) {
	stale := bus.NewMessage("hasskill.get.devices.response", bus.Data{"answer": "stale"})
	stale.Context["message_id"] = "someone-elses-request"
	fresh := bus.NewMessage("hasskill.get.devices.response", bus.Data{"answer": "fresh"})
	SetupMocks(stale, fresh)

	reply, err := Ask(bus.NewMessage("hasskill.get.devices", nil), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "fresh", reply.StringField("answer"))
}

func TestSpeak(t *testing.T) {
	publisher, _ := SetupMocks()
	request := bus.NewMessage("hasskill:turn.on.intent", bus.Data{"utterance": "turn on the kitchen light"})
	request.Context["source"] = "audio"
	request.Context["destination"] = "skills"

	Speak("Turned on kitchen light", bus.Data{"dialog": "device.turned.on"}, request)

	require.Len(t, publisher.Messages, 1)
	msg := publisher.Messages[0]
	assert.Equal(t, "speak", msg.Type)
	assert.Equal(t, "Turned on kitchen light", msg.StringField("utterance"))
	assert.Equal(t, false, msg.Data["expect_response"])
	assert.Equal(t, "en-us", msg.StringField("lang"))
	// routed back to where the utterance came from
	assert.Equal(t, "skills", msg.Context["source"])
	assert.Equal(t, "audio", msg.Context["destination"])
}

func TestSpeakUnprompted(t *testing.T) {
	publisher, _ := SetupMocks()
	Speak("All quiet", nil, nil)
	require.Len(t, publisher.Messages, 1)
	assert.Equal(t, "speak", publisher.Messages[0].Type)
	assert.Nil(t, publisher.Messages[0].Data["meta"])
}

func writeSettings(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestConfigWaiterReload(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.yaml")
	writeSettings(t, settings, "host: http://ha.local:8123\napi_key: abc\n")

	SetupMocks(bus.NewMessage("configuration.updated", nil))
	waiter := NewConfigWaiter(settings, filepath.Join(dir, "absent.conf"))

	writeSettings(t, settings, "host: http://ha.local:8123\napi_key: abc\nbrightness_increment: 25\n")
	waiter.Watch()

	require.NotNil(t, waiter.Value)
	assert.Equal(t, 25, waiter.Value.BrightnessIncrement)
	assert.Equal(t, 25, Config.BrightnessIncrement)
}

func TestConfigWaiterUnchanged(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.yaml")
	writeSettings(t, settings, "host: http://ha.local:8123\napi_key: abc\n")

	SetupMocks(
		bus.NewMessage("configuration.updated", nil),
		bus.NewMessage("configuration.patch", nil),
	)
	waiter := NewConfigWaiter(settings, filepath.Join(dir, "absent.conf"))
	waiter.Watch()

	// file never changed after the waiter was primed
	assert.Nil(t, waiter.Value)
}

func TestConfigWaiterInvalid(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.yaml")
	writeSettings(t, settings, "host: http://ha.local:8123\napi_key: abc\n")

	SetupMocks(bus.NewMessage("configuration.updated", nil))
	waiter := NewConfigWaiter(settings, filepath.Join(dir, "absent.conf"))
	before := Config

	// api_key removed, reload must be rejected
	writeSettings(t, settings, "host: http://ha.local:8123\n")
	waiter.Watch()

	assert.Nil(t, waiter.Value)
	assert.Same(t, before, Config)
}
