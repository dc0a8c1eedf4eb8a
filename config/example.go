package config

// ExampleYaml is a complete settings file, used by tests and printed by
// `hasskill config example`.
var ExampleYaml = `host: http://homeassistant.local:8123
api_key: eyJhbGciOiJIUzI1NiJ9.example.token
disable_intents: false
silent_entities:
  - switch.bedroom_charger
  - Hallway Camera
brightness_increment: 10
search_confidence_threshold: 0.5
assist_only: true
timeout: 5
log_level: INFO
verify_ssl: true
toggle_automations: false
lang: en-us
refresh_interval: 300
bus:
  url: ws://127.0.0.1:8181/core
api:
  port: 8125
mqtt:
  broker: tcp://127.0.0.1:1883
  prefix: hasskill
`

// Must panics if the config failed to parse. For tests and package
// variables only.
func Must(conf *Config, err error) *Config {
	if err != nil {
		panic(err)
	}
	return conf
}

// ExampleConfig is ExampleYaml, parsed.
var ExampleConfig = Must(OpenRaw([]byte(ExampleYaml)))

// ExampleHostConfig is the shape of a host-wide mycroft.conf carrying
// credentials in the legacy location.
var ExampleHostConfig = `{
  "lang": "en-us",
  "PHAL": {
    "ovos-PHAL-plugin-homeassistant": {
      "host": "http://homeassistant.local:8123",
      "api_key": "legacy.token",
      "assist_only": false
    }
  }
}
`
