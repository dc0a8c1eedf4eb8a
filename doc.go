// The hasskill voice skill for Home Assistant
//
// hasskill connects an OVOS or Neon voice assistant to a Home Assistant
// instance. It registers voice intents on the assistant's message bus,
// matches spoken device names against Home Assistant entities and carries
// out the commands over the REST API.
//
// Features
//
// - Turn devices on and off by name ("turn on the kitchen light")
//
// - Ask about sensors and device states ("what is the hallway temperature")
//
// - Light brightness and colour control, absolute and stepwise
//
// - Anything else through the Assist conversation agent ("ask home assistant to ...")
//
// - Fuzzy matching of spoken names with a configurable confidence threshold
//
// - Honours the Home Assistant "expose to Assist" entity list
//
// - Silent entities: spoken confirmations suppressed per device
//
// - Enable and disable the skill by voice, persisted across restarts
//
// - Falls back to the host-wide configuration for credentials
//
// Services
//
// - skill: voice intents on the assistant message bus
//
// - api: HTTP REST API for status, devices and queries
//
// - announce: MQTT availability announcements with Home Assistant discovery
package hasskill
