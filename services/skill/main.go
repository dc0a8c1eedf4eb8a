// Package skill is the voice side of hasskill. It registers its intents
// with the host's padatious parser over the message bus, resolves spoken
// device names against the Home Assistant device registry, carries out the
// matched intent over the REST API and speaks the outcome.
package skill

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/oscillatelabs/hasskill/bus"
	"github.com/oscillatelabs/hasskill/homeassistant"
	"github.com/oscillatelabs/hasskill/services"
	"github.com/oscillatelabs/hasskill/util"
)

// Service skill
type Service struct {
	intents  map[string][]string
	dialogs  *dialogs
	dispatch map[string]func(*bus.Message)
	lang     string
	enabled  bool
}

// ID of the service
func (self *Service) ID() string {
	return "skill"
}

func (self *Service) Init() error {
	if err := self.loadLocale(); err != nil {
		return err
	}
	self.enabled = !services.Config.DisableIntents
	if !self.enabled {
		log.Info("User has indicated they do not want to use Home Assistant intents. Disabling.")
	}
	self.dispatch = map[string]func(*bus.Message){
		"sensor.intent":                     self.handleDeviceStatus,
		"turn.on.intent":                    self.handleTurnOn,
		"turn.off.intent":                   self.handleTurnOff,
		"stop.intent":                       self.handleTurnOff,
		"lights.get.brightness.intent":      self.handleGetBrightness,
		"lights.set.brightness.intent":      self.handleSetBrightness,
		"lights.increase.brightness.intent": self.handleIncreaseBrightness,
		"lights.decrease.brightness.intent": self.handleDecreaseBrightness,
		"lights.get.color.intent":           self.handleGetColor,
		"lights.set.color.intent":           self.handleSetColor,
		"assist.intent":                     self.handleAssist,
		"get.all.devices.intent":            self.handleRebuildDevices,
		"enable.intent":                     self.handleEnable,
		"disable.intent":                    self.handleDisable,
	}
	return nil
}

// Run the service
func (self *Service) Run() error {
	if services.Bus != nil {
		// (re)announce the intents on every connect
		services.Bus.OnConnect(self.registerAll)
	} else {
		self.registerAll()
	}

	types := []string{}
	for _, intent := range util.SortedKeys(self.dispatch) {
		types = append(types, self.qualified(intent))
	}
	messages := services.Subscriber.Subscribe(types...)

	var updated chan bool
	if services.Waiter != nil {
		updated = services.Waiter.Updated
	}

	refresh := time.NewTicker(services.Config.RefreshDuration())
	defer refresh.Stop()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			self.handle(msg)
		case <-updated:
			self.configUpdated()
		case <-refresh.C:
			self.rebuild()
		}
	}
}

func (self *Service) handle(msg *bus.Message) {
	intent := strings.TrimPrefix(msg.Type, services.Config.SkillID+":")
	handler, ok := self.dispatch[intent]
	if !ok {
		return
	}
	log.Infof("Intent %s: %v", intent, msg.Data)
	handler(msg)
}

// configUpdated applies a reloaded configuration: locale swaps, matching
// options and the disable_intents flag. Host or api_key changes still need
// a restart.
func (self *Service) configUpdated() {
	conf := services.Config
	if lang := strings.ToLower(conf.Lang); lang != self.lang && lang != "" {
		if err := self.loadLocale(); err != nil {
			log.Errorf("Locale reload failed: %s", err)
		} else {
			self.registerAll()
		}
	}
	if services.HomeAssistant != nil {
		services.HomeAssistant.SetOptions(homeassistant.RegistryOptions{
			Threshold:  conf.SearchConfidenceThreshold,
			AssistOnly: conf.AssistOnly,
		})
	}
	self.syncIntentState()
}

func (self *Service) syncIntentState() {
	conf := services.Config
	if conf.DisableIntents && self.enabled {
		log.Info("Disabling Home Assistant intents by user request.")
		self.disableConnected()
	} else if !conf.DisableIntents && !self.enabled {
		log.Info("Enabling Home Assistant intents by user request.")
		self.enableConnected()
	}
}

func (self *Service) rebuild() {
	ctx, cancel := self.ctx()
	defer cancel()
	if err := services.HomeAssistant.Build(ctx); err != nil {
		log.Errorf("Device refresh failed: %s", err)
	}
}

func (self *Service) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), services.Config.TimeoutDuration())
}

// QueryHandlers answer bus requests of type "skill.<verb>", mirroring what
// the voice intents can do for other bus clients.
func (self *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"status":      services.TextHandler(self.queryStatus),
		"get.devices": self.queryDevices,
		"get.device":  self.queryDevice,
		"get.intents": self.queryIntents,
		"help":        services.StaticHandler("verbs: status, get.devices, get.device {device}, get.intents"),
	}
}

func (self *Service) queryStatus(q services.Question) string {
	state := "enabled"
	if !self.enabled {
		state = "disabled"
	}
	return fmt.Sprintf("up %s, %d devices, intents %s",
		util.FriendlyDuration(services.Uptime()), services.HomeAssistant.Len(), state)
}

func (self *Service) queryDevices(q services.Question) services.Answer {
	devices := services.HomeAssistant.Devices()
	models := make([]bus.Data, 0, len(devices))
	for _, device := range devices {
		models = append(models, displayModel(device))
	}
	return services.Answer{Data: bus.Data{"devices": models}}
}

func (self *Service) queryIntents(q services.Question) services.Answer {
	registered := append([]string{}, alwaysIntents...)
	if self.enabled {
		registered = append(registered, connectedIntents...)
	}
	names := make([]string, 0, len(registered))
	for _, intent := range registered {
		names = append(names, self.qualified(intent))
	}
	sort.Strings(names)
	return services.Answer{Data: bus.Data{"intents": names, "disabled": !self.enabled}}
}

func (self *Service) queryDevice(q services.Question) services.Answer {
	spoken := q.Message.StringField("device")
	device, _, ok := services.HomeAssistant.Find(spoken)
	if !ok {
		return services.Answer{Text: "no device found"}
	}
	return services.Answer{Data: bus.Data{"device": displayModel(device)}}
}

// displayModel is the device representation shared over the bus.
func displayModel(device *homeassistant.Device) bus.Data {
	model := bus.Data{
		"id":    device.EntityID,
		"name":  device.Name,
		"type":  device.Domain,
		"state": device.State,
	}
	if device.Area != "" {
		model["area"] = device.Area
	}
	if percent, ok := device.BrightnessPercent(); ok {
		model["brightness"] = percent
	}
	if color := device.Color(); color != "" {
		model["color"] = color
	}
	if unit := device.Attributes.UnitOfMeasurement; unit != "" {
		model["unit"] = unit
	}
	return model
}
