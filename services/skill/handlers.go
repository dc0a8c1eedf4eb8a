package skill

import (
	"math"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/oscillatelabs/hasskill/bus"
	"github.com/oscillatelabs/hasskill/homeassistant"
	"github.com/oscillatelabs/hasskill/services"
)

// speak renders a dialog and emits it as the spoken reply to the intent
// message, so the host routes the audio back to whoever asked.
func (self *Service) speak(request *bus.Message, dialog string, data bus.Data) {
	utterance := self.dialogs.Render(dialog, data)
	meta := bus.Data{"dialog": dialog, "skill_id": services.Config.SkillID}
	if data != nil {
		meta["data"] = data
	}
	services.Speak(utterance, meta, request)
}

func (self *Service) speakError(request *bus.Message, err error) {
	log.Errorf("Home Assistant request failed: %s", err)
	self.speak(request, "homeassistant.error", nil)
}

// resolve turns the entity slot of an intent into a registry device,
// speaking the failure dialogs on the way out.
func (self *Service) resolve(msg *bus.Message) (*homeassistant.Device, string, bool) {
	spoken := msg.StringField("entity")
	if spoken == "" {
		self.speak(msg, "no.parsed.device", nil)
		return nil, "", false
	}
	device, score, ok := services.HomeAssistant.Find(spoken)
	if !ok {
		log.Infof("Device name %q not found, best score %.2f is below the threshold", spoken, score)
		self.speak(msg, "device.not.found", bus.Data{"device": spoken})
		return nil, spoken, false
	}
	return device, spoken, true
}

// resolveLight additionally checks the device can be driven as a light.
func (self *Service) resolveLight(msg *bus.Message) (*homeassistant.Device, string, bool) {
	device, spoken, ok := self.resolve(msg)
	if !ok {
		return nil, spoken, false
	}
	if device.Domain != "light" {
		self.speak(msg, "lights.status.not.available", bus.Data{"device": spoken})
		return nil, spoken, false
	}
	return device, spoken, true
}

func (self *Service) silenced(device *homeassistant.Device) bool {
	return services.Config.IsSilent(device.EntityID, device.Name)
}

func (self *Service) handleDeviceStatus(msg *bus.Message) {
	device, _, ok := self.resolve(msg)
	if !ok {
		return
	}
	state := device.State
	if unit := device.Attributes.UnitOfMeasurement; unit != "" {
		state += " " + unit
	}
	self.speak(msg, "device.status", bus.Data{
		"device": device.Name,
		"type":   device.Domain,
		"state":  state,
	})
}

func (self *Service) handleTurnOn(msg *bus.Message) {
	self.switchDevice(msg, true)
}

func (self *Service) handleTurnOff(msg *bus.Message) {
	self.switchDevice(msg, false)
}

func (self *Service) switchDevice(msg *bus.Message, on bool) {
	device, spoken, ok := self.resolve(msg)
	if !ok {
		return
	}
	if device.Domain == "automation" && !services.Config.ToggleAutomations {
		log.Infof("Not switching automation %s, toggle_automations is off", device.EntityID)
		self.speak(msg, "device.not.found", bus.Data{"device": spoken})
		return
	}
	ctx, cancel := self.ctx()
	defer cancel()
	var err error
	dialog := "device.turned.off"
	if on {
		dialog = "device.turned.on"
		err = services.Client.TurnOn(ctx, device.EntityID)
	} else {
		err = services.Client.TurnOff(ctx, device.EntityID)
	}
	if err != nil {
		self.speakError(msg, err)
		return
	}
	if self.silenced(device) {
		return
	}
	self.speak(msg, dialog, bus.Data{"device": spoken})
}

func (self *Service) handleGetBrightness(msg *bus.Message) {
	device, spoken, ok := self.resolve(msg)
	if !ok {
		return
	}
	if percent, ok := device.BrightnessPercent(); ok {
		self.speak(msg, "lights.current.brightness", bus.Data{"device": spoken, "brightness": percent})
		return
	}
	self.speak(msg, "lights.status.not.available", bus.Data{"device": spoken})
}

func (self *Service) handleSetBrightness(msg *bus.Message) {
	device, spoken, ok := self.resolveLight(msg)
	if !ok {
		return
	}
	value, ok := brightnessSlot(msg)
	if !ok {
		log.Warnf("No brightness given for %s, ignoring", spoken)
		return
	}
	percent := homeassistant.ClampPercent(int(math.Round(value)))
	self.setBrightness(msg, device, spoken, percent)
}

// brightnessSlot reads the brightness slot, which the intent parser
// delivers as the spoken string.
func brightnessSlot(msg *bus.Message) (float64, bool) {
	switch v := msg.Data["brightness"].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func (self *Service) handleIncreaseBrightness(msg *bus.Message) {
	self.stepBrightness(msg, services.Config.BrightnessIncrement)
}

func (self *Service) handleDecreaseBrightness(msg *bus.Message) {
	self.stepBrightness(msg, -services.Config.BrightnessIncrement)
}

func (self *Service) stepBrightness(msg *bus.Message, step int) {
	device, spoken, ok := self.resolveLight(msg)
	if !ok {
		return
	}
	current, _ := device.BrightnessPercent() // lights that are off step up from zero
	percent := homeassistant.ClampPercent(current + step)
	self.setBrightness(msg, device, spoken, percent)
}

// setBrightness drives the light to percent and speaks the new level.
func (self *Service) setBrightness(msg *bus.Message, device *homeassistant.Device, spoken string, percent int) {
	ctx, cancel := self.ctx()
	defer cancel()
	_, err := services.Client.CallService(ctx, "light", "turn_on", map[string]interface{}{
		"entity_id":  device.EntityID,
		"brightness": homeassistant.BrightnessFromPercent(float64(percent)),
	})
	if err != nil {
		self.speakError(msg, err)
		return
	}
	if self.silenced(device) {
		return
	}
	self.speak(msg, "lights.current.brightness", bus.Data{"device": spoken, "brightness": percent})
}

func (self *Service) handleGetColor(msg *bus.Message) {
	device, spoken, ok := self.resolve(msg)
	if !ok {
		return
	}
	if color := device.Color(); color != "" {
		self.speak(msg, "lights.current.color", bus.Data{"device": spoken, "color": color})
		return
	}
	self.speak(msg, "lights.status.not.available", bus.Data{"device": spoken})
}

func (self *Service) handleSetColor(msg *bus.Message) {
	color := strings.ToLower(msg.StringField("color"))
	if color == "" {
		self.speak(msg, "no.parsed.color", nil)
		return
	}
	device, spoken, ok := self.resolveLight(msg)
	if !ok {
		return
	}
	ctx, cancel := self.ctx()
	defer cancel()
	_, err := services.Client.CallService(ctx, "light", "turn_on", map[string]interface{}{
		"entity_id":  device.EntityID,
		"color_name": color,
	})
	if err != nil {
		self.speakError(msg, err)
		return
	}
	if self.silenced(device) {
		return
	}
	self.speak(msg, "lights.current.color", bus.Data{"device": spoken, "color": color})
}

func (self *Service) handleAssist(msg *bus.Message) {
	command := msg.StringField("command")
	if command == "" {
		self.speak(msg, "assist.not.understood", nil)
		return
	}
	ctx, cancel := self.ctx()
	defer cancel()
	reply, err := services.Client.Converse(ctx, command, shortLang(self.lang))
	if err != nil {
		self.speakError(msg, err)
		return
	}
	log.Debugf("Assist answered: %s", reply)
	self.speak(msg, "assist", nil)
}

// shortLang maps an IETF tag to the bare language code Assist expects.
func shortLang(lang string) string {
	if i := strings.IndexByte(lang, '-'); i > 0 {
		return lang[:i]
	}
	return lang
}

func (self *Service) handleRebuildDevices(msg *bus.Message) {
	self.rebuild()
	self.speak(msg, "acknowledge", nil)
}

func (self *Service) handleEnable(msg *bus.Message) {
	self.persistDisabled(false)
	self.speak(msg, "enable", nil)
	self.enableConnected()
}

func (self *Service) handleDisable(msg *bus.Message) {
	self.persistDisabled(true)
	self.speak(msg, "disable", nil)
	self.disableConnected()
}
