package config

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/oscillatelabs/hasskill/util"
)

// PhalSection is the key the upstream Home Assistant plugin uses inside the
// host-wide configuration file. Legacy setups keep their credentials there
// rather than in the skill's own settings.
const PhalSection = "ovos-PHAL-plugin-homeassistant"

type BusConf struct {
	URL string `yaml:"url"`
}

type APIConf struct {
	Port int `yaml:"port"`
}

type MQTTConf struct {
	Broker string `yaml:"broker"`
	Prefix string `yaml:"prefix"`
}

// Configuration structure
type Config struct {
	Host                      string   `yaml:"host"`
	APIKey                    string   `yaml:"api_key"`
	DisableIntents            bool     `yaml:"disable_intents"`
	SilentEntities            []string `yaml:"silent_entities"`
	BrightnessIncrement       int      `yaml:"brightness_increment"`
	SearchConfidenceThreshold float64  `yaml:"search_confidence_threshold"`
	AssistOnly                bool     `yaml:"assist_only"`
	Timeout                   int      `yaml:"timeout"`
	LogLevel                  string   `yaml:"log_level"`
	VerifySSL                 bool     `yaml:"verify_ssl"`
	ToggleAutomations         bool     `yaml:"toggle_automations"`
	SkillID                   string   `yaml:"skill_id"`
	Lang                      string   `yaml:"lang"`
	RefreshInterval           int      `yaml:"refresh_interval"`
	LocaleDir                 string   `yaml:"locale_dir"`
	Bus                       BusConf  `yaml:"bus"`
	API                       APIConf  `yaml:"api"`
	MQTT                      MQTTConf `yaml:"mqtt"`
}

// New returns a Config holding the documented defaults.
func New() *Config {
	return &Config{
		BrightnessIncrement:       10,
		SearchConfidenceThreshold: 0.5,
		AssistOnly:                true,
		Timeout:                   5,
		LogLevel:                  "INFO",
		VerifySSL:                 true,
		SkillID:                   "hasskill",
		Lang:                      "en-us",
		RefreshInterval:           300,
		Bus:                       BusConf{URL: "ws://127.0.0.1:8181/core"},
		MQTT:                      MQTTConf{Prefix: "hasskill"},
	}
}

// Open configuration from disk.
func Open() (*Config, error) {
	file, err := os.Open(ConfigPath("hasskill.yml"))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return OpenReader(file)
}

// Open configuration from a reader.
func OpenReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return OpenRaw(data)
}

// Open configuration from []byte. Defaults apply for absent keys, unknown
// keys are ignored.
func OpenRaw(data []byte) (*Config, error) {
	self := New()
	if err := yaml.Unmarshal(data, self); err != nil {
		return nil, err
	}
	self.normalize()
	return self, nil
}

// OpenWithFallback reads the skill settings, and when they lack the required
// host and api_key, layers the settings over the Home Assistant section of
// the host-wide configuration file. Skill settings always win over host
// config.
func OpenWithFallback(settingsPath, hostPath string) (*Config, error) {
	settings, err := os.ReadFile(util.ExpandUser(settingsPath))
	if os.IsNotExist(err) {
		settings = nil
	} else if err != nil {
		return nil, err
	}

	probe := &Config{}
	if err := yaml.Unmarshal(settings, probe); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", settingsPath)
	}
	if probe.Host != "" && probe.APIKey != "" {
		return OpenRaw(settings)
	}

	self := New()
	phal, err := readPhalSection(util.ExpandUser(hostPath))
	if err != nil {
		log.Debugf("No usable host config at %s: %s", hostPath, err)
	} else if err := yaml.Unmarshal(phal, self); err != nil {
		return nil, errors.Wrapf(err, "parsing %s section of %s", PhalSection, hostPath)
	}
	if err := yaml.Unmarshal(settings, self); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", settingsPath)
	}
	self.normalize()
	return self, nil
}

// readPhalSection extracts PHAL.<PhalSection> from the host-wide config.
// The file may be JSON (mycroft.conf style) or YAML, both parse the same
// way here.
func readPhalSection(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var host struct {
		PHAL map[string]map[string]interface{} `yaml:"PHAL"`
	}
	if err := yaml.Unmarshal(data, &host); err != nil {
		return nil, err
	}
	section, ok := host.PHAL[PhalSection]
	if !ok {
		return nil, fmt.Errorf("no %s section", PhalSection)
	}
	return yaml.Marshal(section)
}

func (self *Config) normalize() {
	if self.SearchConfidenceThreshold < 0 {
		self.SearchConfidenceThreshold = 0
	}
	if self.SearchConfidenceThreshold > 1 {
		self.SearchConfidenceThreshold = 1
	}
	if self.Timeout <= 0 {
		self.Timeout = 5
	}
	if self.BrightnessIncrement <= 0 || self.BrightnessIncrement > 100 {
		self.BrightnessIncrement = 10
	}
	if self.Bus.URL == "" {
		self.Bus.URL = "ws://127.0.0.1:8181/core"
	}
	self.Host = strings.TrimRight(self.Host, "/")
}

// Validate checks the keys without which the skill cannot talk to Home
// Assistant.
func (self *Config) Validate() error {
	if self.Host == "" {
		return errors.New("no host configured")
	}
	if self.APIKey == "" {
		return errors.New("no api_key configured")
	}
	u, err := url.Parse(self.Host)
	if err != nil {
		return errors.Wrap(err, "invalid host")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("host must be a http(s) url, got %q", self.Host)
	}
	return nil
}

// TimeoutDuration is the per request timeout for Home Assistant calls.
func (self *Config) TimeoutDuration() time.Duration {
	return time.Duration(self.Timeout) * time.Second
}

func (self *Config) RefreshDuration() time.Duration {
	return time.Duration(self.RefreshInterval) * time.Second
}

// Level parses log_level, INFO when unset or unrecognized.
func (self *Config) Level() log.Level {
	level, err := log.ParseLevel(strings.ToLower(self.LogLevel))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// IsSilent reports whether responses for this entity should be suppressed.
// Matches either the entity id or its spoken name.
func (self *Config) IsSilent(entityID, name string) bool {
	for _, s := range self.SilentEntities {
		if strings.EqualFold(s, entityID) || strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// SetKey updates a single key in a settings file in place, preserving the
// other keys. Used to persist spoken enable/disable across restarts.
func SetKey(path string, key string, value interface{}) error {
	settings := map[string]interface{}{}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return errors.Wrapf(err, "parsing %s", path)
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	settings[key] = value
	out, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(path, out, 0644)
}

// helpers

// Resolve a configuration file under .config/hasskill
func ConfigPath(p string) string {
	config := os.Getenv("XDG_CONFIG_HOME")
	if config == "" {
		config = path.Join(os.Getenv("HOME"), ".config")
	}
	return path.Join(config, "hasskill", p)
}

// HostConfigPath is where OVOS/Neon hosts keep their own configuration.
func HostConfigPath() string {
	config := os.Getenv("XDG_CONFIG_HOME")
	if config == "" {
		config = path.Join(os.Getenv("HOME"), ".config")
	}
	return path.Join(config, "mycroft", "mycroft.conf")
}
