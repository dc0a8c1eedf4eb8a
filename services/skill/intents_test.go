package skill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscillatelabs/hasskill/services"
)

func TestLoadIntents(t *testing.T) {
	intents, err := loadIntents(localeFS(""), defaultLang)
	require.NoError(t, err)
	assert.Len(t, intents, len(alwaysIntents)+len(connectedIntents))
	assert.Contains(t, intents["turn.on.intent"], "turn on the {entity}")
}

func TestLoadLocaleFallback(t *testing.T) {
	services.SetupMocks()
	services.Config.Lang = "de-de"

	service := &Service{}
	require.NoError(t, service.loadLocale())
	assert.Equal(t, defaultLang, service.lang)
}

func TestRegisterWithoutSamples(t *testing.T) {
	pub, _ := services.SetupMocks()
	service := &Service{}
	require.NoError(t, service.loadLocale())

	service.register("bogus.intent")
	assert.Empty(t, pub.OfType("padatious:register_intent"))
}

// Every intent the dispatch table routes must ship sample utterances, or
// the host would never fire it.
func TestLocaleCoversDispatch(t *testing.T) {
	services.SetupMocks()
	service := &Service{}
	require.NoError(t, service.Init())

	for intent := range service.dispatch {
		assert.NotEmpty(t, service.intents[intent], "intent %s has no samples", intent)
	}
}

func TestDetach(t *testing.T) {
	pub, _ := services.SetupMocks()
	service := &Service{}
	require.NoError(t, service.loadLocale())

	service.detach("turn.on.intent")

	detached := pub.OfType("detach_intent")
	require.Len(t, detached, 1)
	assert.Equal(t, "hasskill:turn.on.intent", detached[0].Data["intent_name"])
}
