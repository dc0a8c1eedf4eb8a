// Package homeassistant talks to a Home Assistant instance over its REST and
// websocket APIs, and keeps a registry of entities matched against spoken
// names.
package homeassistant

import (
	"math"
	"strings"
	"time"
)

// Entity states.
const (
	StateOn          = "on"
	StateOff         = "off"
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

// SupportedDomains are the entity domains the skill exposes to voice
// control.
var SupportedDomains = []string{
	"sensor",
	"binary_sensor",
	"light",
	"media_player",
	"vacuum",
	"switch",
	"climate",
	"camera",
	"scene",
	"automation",
}

var supportedDomains = stringSet(SupportedDomains)

func stringSet(li []string) map[string]bool {
	ret := map[string]bool{}
	for _, i := range li {
		ret[i] = true
	}
	return ret
}

// Domain returns the domain part of an entity id, eg "light" for
// "light.kitchen".
func Domain(entityID string) string {
	return strings.SplitN(entityID, ".", 2)[0]
}

func DomainSupported(domain string) bool {
	return supportedDomains[domain]
}

// Attributes of an entity state. Only the attributes the skill acts on are
// typed, the rest of the payload is dropped.
type Attributes struct {
	FriendlyName      string   `json:"friendly_name,omitempty"`
	Icon              string   `json:"icon,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	Brightness        *float64 `json:"brightness,omitempty"`
	RGBColor          []int    `json:"rgb_color,omitempty"`
	ColorName         string   `json:"color_name,omitempty"`
	SupportedFeatures int      `json:"supported_features,omitempty"`
}

// IsGroup reports whether the attributes belong to a group helper rather
// than a real device. Home Assistant marks groups with icons like
// "mdi:lightbulb-group".
func (a Attributes) IsGroup() bool {
	return strings.Contains(a.Icon, "-group")
}

// State mirrors an entity state as served by /api/states.
type State struct {
	EntityID    string     `json:"entity_id"`
	State       string     `json:"state"`
	Attributes  Attributes `json:"attributes"`
	LastChanged time.Time  `json:"last_changed,omitempty"`
	LastUpdated time.Time  `json:"last_updated,omitempty"`
}

// Name returns the spoken name of an entity: the friendly_name attribute,
// or the entity id when a name was never set.
func (s *State) Name() string {
	if s.Attributes.FriendlyName != "" {
		return s.Attributes.FriendlyName
	}
	return s.EntityID
}

func (s *State) Domain() string {
	return Domain(s.EntityID)
}

// PercentFromBrightness converts Home Assistant's 0-255 brightness scale to
// percent.
func PercentFromBrightness(brightness float64) int {
	return int(math.Round(brightness / 255 * 100))
}

// BrightnessFromPercent converts percent to the 0-255 brightness scale.
func BrightnessFromPercent(percent float64) int {
	return int(math.Round(percent / 100 * 255))
}

// ClampPercent bounds a percentage to 0-100.
func ClampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
