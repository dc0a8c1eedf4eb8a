// Package announce publishes the skill's presence over MQTT so Home
// Assistant can track it like any other device: a retained discovery config
// registering a connectivity binary_sensor, an availability topic backed by
// a last-will, and a heartbeat with pid and uptime every minute.
package announce

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/oscillatelabs/hasskill/bus"
	"github.com/oscillatelabs/hasskill/config"
	"github.com/oscillatelabs/hasskill/services"
)

// Service announce
type Service struct {
}

// ID of the service
func (self *Service) ID() string {
	return "announce"
}

func availabilityTopic(prefix string) string {
	return prefix + "/availability"
}

func heartbeatTopic(prefix string) string {
	return prefix + "/heartbeat"
}

func discoveryTopic(prefix string) string {
	return "homeassistant/binary_sensor/" + prefix + "/connectivity/config"
}

// discoveryConfig is the retained payload Home Assistant's MQTT discovery
// reads to register the connectivity sensor.
type discoveryConfig struct {
	Name                string          `json:"name"`
	UniqueID            string          `json:"unique_id"`
	DeviceClass         string          `json:"device_class"`
	StateTopic          string          `json:"state_topic"`
	PayloadOn           string          `json:"payload_on"`
	PayloadOff          string          `json:"payload_off"`
	JSONAttributesTopic string          `json:"json_attributes_topic"`
	Device              discoveryDevice `json:"device"`
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

func discovery(prefix string) discoveryConfig {
	return discoveryConfig{
		Name:                "Voice skill",
		UniqueID:            prefix + "_connectivity",
		DeviceClass:         "connectivity",
		StateTopic:          availabilityTopic(prefix),
		PayloadOn:           "online",
		PayloadOff:          "offline",
		JSONAttributesTopic: heartbeatTopic(prefix),
		Device: discoveryDevice{
			Identifiers:  []string{prefix},
			Name:         "hasskill",
			Manufacturer: "Oscillate Labs",
			Model:        "hasskill",
			SWVersion:    services.Version,
		},
	}
}

func heartbeat() bus.Data {
	return bus.Data{
		"pid":    os.Getpid(),
		"uptime": int(services.Uptime().Seconds()),
	}
}

func publishJSON(client mqtt.Client, topic string, retained bool, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("Encoding %s: %s", topic, err)
		return
	}
	publishRaw(client, topic, retained, raw)
}

func publishRaw(client mqtt.Client, topic string, retained bool, payload interface{}) {
	token := client.Publish(topic, 1, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Errorf("Publishing %s: %s", topic, err)
	}
}

// announce republishes the retained discovery config and marks the skill
// online. Runs on every (re)connect so a restarted broker recovers both.
func announce(client mqtt.Client, prefix string) {
	publishJSON(client, discoveryTopic(prefix), true, discovery(prefix))
	publishRaw(client, availabilityTopic(prefix), true, "online")
	log.Infof("Announced presence on %s", availabilityTopic(prefix))
}

func connect(conf config.MQTTConf) (mqtt.Client, error) {
	hostname, _ := os.Hostname()
	opts := mqtt.NewClientOptions().
		AddBroker(conf.Broker).
		SetClientID(fmt.Sprintf("%s-%s-%d", conf.Prefix, hostname, os.Getpid())).
		SetAutoReconnect(true).
		SetWill(availabilityTopic(conf.Prefix), "offline", 1, true).
		SetOnConnectHandler(func(client mqtt.Client) {
			announce(client, conf.Prefix)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, errors.New("timed out connecting to mqtt broker")
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "connecting to mqtt broker")
	}
	return client, nil
}

// Run the service
func (self *Service) Run() error {
	conf := services.Config.MQTT
	if conf.Broker == "" {
		log.Info("mqtt.broker is not configured, announcements disabled")
		return nil
	}
	client, err := connect(conf)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	tick := time.NewTicker(time.Minute)
	defer tick.Stop()
	for {
		publishJSON(client, heartbeatTopic(conf.Prefix), false, heartbeat())
		<-tick.C
	}
}
