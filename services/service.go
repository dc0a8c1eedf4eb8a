package services

import (
	"context"
	"hash/fnv"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/oscillatelabs/hasskill/bus"
	"github.com/oscillatelabs/hasskill/bus/wsbus"
	"github.com/oscillatelabs/hasskill/config"
	"github.com/oscillatelabs/hasskill/homeassistant"
	"github.com/oscillatelabs/hasskill/util"
)

// Service interface
type Service interface {
	ID() string
	Run() error
}

// ServiceInit interface
type ServiceInit interface {
	Service
	Init() error
}

var serviceMap map[string]Service = map[string]Service{}
var enabled []Service
var started = time.Now()

// Version of the build, overridden by the linker on release builds.
var Version = "dev"

// Shared state, wired by Setup and available to every service.
var Config *config.Config
var Bus *wsbus.Client
var Publisher bus.Publisher
var Subscriber bus.Subscriber
var Client *homeassistant.Client
var Socket *homeassistant.Socket
var HomeAssistant *homeassistant.Registry
var Waiter *ConfigWaiter
var SettingsPath string

// ConfigWaiter reloads the configuration when the host announces a change.
// Both configuration.updated and configuration.patch fire for a single
// edit, so reloads are skipped while the settings file content hash is
// unchanged.
type ConfigWaiter struct {
	Value    *config.Config
	hash     uint32
	messages <-chan *bus.Message
	settings string
	host     string
	Updated  chan bool
}

func NewConfigWaiter(settingsPath, hostPath string) *ConfigWaiter {
	waiter := &ConfigWaiter{
		messages: Subscriber.Subscribe("configuration.updated", "configuration.patch"),
		settings: settingsPath,
		host:     hostPath,
		Updated:  make(chan bool),
	}
	if raw, err := os.ReadFile(util.ExpandUser(settingsPath)); err == nil {
		waiter.hash = hash(raw)
	}
	return waiter
}

func (c *ConfigWaiter) Watch() {
	for msg := range c.messages {
		if c.reload(msg) {
			c.notify()
		}
	}
}

func (c *ConfigWaiter) notify() {
	// non-blocking send
	select {
	case c.Updated <- true:
	default:
	}
}

func (c *ConfigWaiter) reload(msg *bus.Message) bool {
	if raw, err := os.ReadFile(util.ExpandUser(c.settings)); err == nil {
		hashValue := hash(raw)
		if hashValue == c.hash {
			return false
		}
		c.hash = hashValue
	}
	conf, err := config.OpenWithFallback(c.settings, c.host)
	if err != nil {
		log.Errorf("Error reloading config: %s", err)
		return false
	}
	if err := conf.Validate(); err != nil {
		log.Errorf("Ignoring reloaded config: %s", err)
		return false
	}
	c.Value = conf
	Config = conf // set global
	log.SetLevel(conf.Level())
	log.Infof("Configuration reloaded (%s)", msg.Type)
	return true
}

func hash(s []byte) uint32 {
	h := fnv.New32a()
	h.Write(s)
	return h.Sum32()
}

func SetupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
	})
	log.SetOutput(os.Stdout)
	if Config != nil {
		log.SetLevel(Config.Level())
	}
}

// Setup loads the configuration and wires the shared bus and Home Assistant
// endpoints. Must run before Launch.
func Setup(settingsPath, hostPath string) error {
	conf, err := config.OpenWithFallback(settingsPath, hostPath)
	if err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	Config = conf
	SettingsPath = settingsPath
	SetupLogging()

	Bus = wsbus.NewClient(conf.Bus.URL)
	if err := Bus.Connect(); err != nil {
		return errors.Wrap(err, "connecting to message bus")
	}
	Publisher = Bus
	Subscriber = Bus
	Waiter = NewConfigWaiter(settingsPath, hostPath)

	auth := homeassistant.NewTokenAuth(conf.APIKey)
	Client = homeassistant.NewClient(conf.Host, auth, homeassistant.Options{
		Timeout:     conf.TimeoutDuration(),
		InsecureSSL: !conf.VerifySSL,
	})

	Socket = homeassistant.NewSocket(conf.Host, auth, !conf.VerifySSL)
	ctx, cancel := context.WithTimeout(context.Background(), conf.TimeoutDuration())
	err = Socket.Connect(ctx)
	cancel()
	if errors.Is(err, homeassistant.ErrUnauthorized) {
		return errors.Wrap(err, "authenticating to home assistant")
	} else if err != nil {
		log.Warnf("Home assistant websocket unavailable, continuing without: %s", err)
		Socket.Close()
		Socket = nil
	}

	var exposure homeassistant.ExposureSource
	if Socket != nil {
		exposure = Socket
	}
	HomeAssistant = homeassistant.NewRegistry(Client, exposure, homeassistant.RegistryOptions{
		Threshold:  conf.SearchConfidenceThreshold,
		AssistOnly: conf.AssistOnly,
		TTL:        3 * conf.RefreshDuration(),
	})

	if Socket != nil {
		ctx, cancel := context.WithTimeout(context.Background(), conf.TimeoutDuration())
		defer cancel()
		if err := Socket.SubscribeStates(ctx, HomeAssistant.Update); err != nil {
			log.Warnf("State change subscription failed: %s", err)
		}
	}
	return nil
}

func Launch(ss []string) {
	enabled = []Service{}
	for _, name := range ss {
		if service, ok := serviceMap[name]; ok {
			enabled = append(enabled, service)
		} else {
			log.Fatalf("Service %s does not exist", name)
		}
	}

	if Waiter != nil {
		go Waiter.Watch()
	}

	// listen for commands
	go QuerySubscriber()

	for _, service := range enabled {
		log.Infof("Starting %s", service.ID())
		if service, ok := service.(ServiceInit); ok {
			err := service.Init()
			if err != nil {
				log.Fatalf("Error init service %s: %s", service.ID(), err)
			}
			log.Infof("Initialized %s", service.ID())
		}
	}

	var wg sync.WaitGroup
	for _, service := range enabled {
		wg.Add(1)
		go func(service Service) {
			defer wg.Done()
			announceReady(service.ID())
			if err := service.Run(); err != nil {
				log.Fatalf("Error running service %s: %s", service.ID(), err)
			}
		}(service)
	}
	wg.Wait()
}

// announceReady tells the bus this service is up, and again after every
// reconnect so late joining observers see it.
func announceReady(id string) {
	if Bus == nil {
		return
	}
	pid := os.Getpid()
	Bus.OnConnect(func() {
		Publisher.Emit(bus.NewMessage("hasskill.ready", bus.Data{
			"service": id,
			"pid":     pid,
			"started": started.Format(time.RFC3339),
			"uptime":  int(time.Since(started).Seconds()),
		}))
	})
}

// Uptime of this process.
func Uptime() time.Duration {
	return time.Since(started)
}

func Register(service Service) {
	if _, exists := serviceMap[service.ID()]; exists {
		log.Fatalf("Duplicate service registered: %s", service.ID())
	}
	serviceMap[service.ID()] = service
}

// Names lists the registered services.
func Names() []string {
	return util.SortedKeys(serviceMap)
}

func Shutdown() {
	if HomeAssistant != nil {
		HomeAssistant.Close()
	}
	if Socket != nil {
		Socket.Close()
	}
	if Bus != nil {
		Bus.Shutdown()
	}
}
