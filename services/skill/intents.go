package skill

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/oscillatelabs/hasskill/bus"
	"github.com/oscillatelabs/hasskill/config"
	"github.com/oscillatelabs/hasskill/services"
)

//go:embed locale
var embeddedLocale embed.FS

const defaultLang = "en-us"

// connectedIntents talk to Home Assistant, so they come and go with the
// disable_intents setting. The remaining intents stay registered so the
// skill can always be spoken back to life.
var connectedIntents = []string{
	"sensor.intent",
	"turn.on.intent",
	"turn.off.intent",
	"stop.intent",
	"lights.get.brightness.intent",
	"lights.set.brightness.intent",
	"lights.increase.brightness.intent",
	"lights.decrease.brightness.intent",
	"lights.get.color.intent",
	"lights.set.color.intent",
	"assist.intent",
}

var alwaysIntents = []string{
	"get.all.devices.intent",
	"enable.intent",
	"disable.intent",
}

// localeFS is where the locale resources come from, an on disk directory
// when configured, otherwise the files shipped in the binary.
func localeFS(overrideDir string) fs.FS {
	if overrideDir != "" {
		return os.DirFS(overrideDir)
	}
	sub, _ := fs.Sub(embeddedLocale, "locale")
	return sub
}

func loadIntents(locale fs.FS, lang string) (map[string][]string, error) {
	dir := path.Join(lang, "intents")
	entries, err := fs.ReadDir(locale, dir)
	if err != nil {
		return nil, err
	}
	intents := map[string][]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".intent") {
			continue
		}
		raw, err := fs.ReadFile(locale, path.Join(dir, name))
		if err != nil {
			return nil, err
		}
		intents[name] = splitLines(raw)
	}
	return intents, nil
}

// loadLocale reads the intent samples and dialogs for the configured
// language, falling back to en-us when that language is not shipped.
func (self *Service) loadLocale() error {
	conf := services.Config
	locale := localeFS(conf.LocaleDir)
	lang := strings.ToLower(conf.Lang)
	if lang == "" {
		lang = defaultLang
	}
	intents, err := loadIntents(locale, lang)
	if err != nil && lang != defaultLang {
		log.Warnf("No %s locale shipped, falling back to %s", lang, defaultLang)
		lang = defaultLang
		intents, err = loadIntents(locale, lang)
	}
	if err != nil {
		return errors.Wrap(err, "loading intent samples")
	}
	dialogs, err := loadDialogs(locale, lang)
	if err != nil {
		return errors.Wrap(err, "loading dialogs")
	}
	self.intents = intents
	self.dialogs = dialogs
	self.lang = lang
	return nil
}

func (self *Service) qualified(intent string) string {
	return services.Config.SkillID + ":" + intent
}

func (self *Service) register(intent string) {
	samples := self.intents[intent]
	if len(samples) == 0 {
		log.Errorf("No samples to register intent: %s", intent)
		return
	}
	services.Publisher.Emit(bus.NewMessage("padatious:register_intent", bus.Data{
		"name":    self.qualified(intent),
		"samples": samples,
		"lang":    self.lang,
	}))
	log.Debugf("Registered intent: %s", intent)
}

func (self *Service) detach(intent string) {
	services.Publisher.Emit(bus.NewMessage("detach_intent", bus.Data{
		"intent_name": self.qualified(intent),
	}))
	log.Debugf("Detached intent: %s", intent)
}

// registerAll announces every intent the current state wants. Called on
// every bus (re)connect, the host treats re-registration as a replace.
func (self *Service) registerAll() {
	for _, intent := range alwaysIntents {
		self.register(intent)
	}
	if self.enabled {
		for _, intent := range connectedIntents {
			self.register(intent)
		}
	}
}

func (self *Service) enableConnected() {
	for _, intent := range connectedIntents {
		self.register(intent)
	}
	self.enabled = true
	log.Info("Home Assistant intents enabled. To disable, set disable_intents to true.")
}

func (self *Service) disableConnected() {
	for _, intent := range connectedIntents {
		self.detach(intent)
	}
	self.enabled = false
	log.Info("Home Assistant intents disabled. To re-enable, set disable_intents to false.")
}

// persistDisabled writes the disable_intents flag back to the settings
// file, so a spoken enable or disable survives a restart.
func (self *Service) persistDisabled(disabled bool) {
	services.Config.DisableIntents = disabled
	if services.SettingsPath == "" {
		return
	}
	if err := config.SetKey(services.SettingsPath, "disable_intents", disabled); err != nil {
		log.Errorf("Persisting disable_intents: %s", err)
	}
}
