package homeassistant

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	ttlcache "github.com/jellydator/ttlcache/v2"
	log "github.com/sirupsen/logrus"

	"github.com/oscillatelabs/hasskill/util"
)

// Device is the registry's view of a controllable entity.
type Device struct {
	EntityID   string     `json:"entity_id"`
	Name       string     `json:"name"`
	Domain     string     `json:"domain"`
	State      string     `json:"state"`
	Area       string     `json:"area,omitempty"`
	Attributes Attributes `json:"attributes"`
}

func deviceFromState(s *State) *Device {
	return &Device{
		EntityID:   s.EntityID,
		Name:       s.Name(),
		Domain:     s.Domain(),
		State:      s.State,
		Attributes: s.Attributes,
	}
}

// BrightnessPercent reports brightness as a percentage, false when the
// device does not expose one (eg a light that is off).
func (d *Device) BrightnessPercent() (int, bool) {
	if d.Attributes.Brightness == nil {
		return 0, false
	}
	return PercentFromBrightness(*d.Attributes.Brightness), true
}

// Color names the device's current color, "" when it has none.
func (d *Device) Color() string {
	if d.Attributes.ColorName != "" {
		return d.Attributes.ColorName
	}
	return SpokenColor(d.Attributes.RGBColor)
}

// StateSource is the part of the REST client the registry needs.
type StateSource interface {
	States(ctx context.Context) ([]State, error)
}

// ExposureSource lists Assist-exposed entity ids, the websocket connector
// in practice.
type ExposureSource interface {
	ExposedEntities(ctx context.Context) (map[string]bool, error)
	Connected() bool
}

// AreaSource maps entity ids to area names. Optional: an ExposureSource
// that also implements it supplies Device.Area.
type AreaSource interface {
	EntityAreas(ctx context.Context) (map[string]string, error)
}

type RegistryOptions struct {
	// Threshold a fuzzy match must score strictly above to be accepted.
	Threshold float64
	// AssistOnly keeps only entities exposed to Assist.
	AssistOnly bool
	// TTL expires devices that miss this many refreshes worth of updates.
	TTL time.Duration
}

// Registry indexes the controllable devices of a Home Assistant instance
// and resolves spoken names to entities.
type Registry struct {
	source   StateSource
	exposure ExposureSource
	opts     RegistryOptions

	cache   *ttlcache.Cache
	names   map[string]string // lowercased spoken name -> entity id
	exposed map[string]bool   // from the last Build, nil = unfiltered
	built   time.Time
	lock    sync.RWMutex
}

// NewRegistry builds an empty registry. exposure may be nil when no
// websocket connection is available.
func NewRegistry(source StateSource, exposure ExposureSource, opts RegistryOptions) *Registry {
	if opts.TTL == 0 {
		opts.TTL = 15 * time.Minute
	}
	cache := ttlcache.NewCache()
	cache.SetTTL(opts.TTL)
	cache.SkipTTLExtensionOnHit(true)
	return &Registry{
		source:   source,
		exposure: exposure,
		opts:     opts,
		cache:    cache,
		names:    map[string]string{},
	}
}

// Build fetches every entity state and rebuilds the registry. Unsupported
// domains and group helpers are dropped, and with assist_only only entities
// exposed to Assist are kept.
func (r *Registry) Build(ctx context.Context) error {
	states, err := r.source.States(ctx)
	if err != nil {
		return err
	}
	exposed := r.fetchExposed(ctx)
	areas := r.fetchAreas(ctx)

	r.lock.Lock()
	defer r.lock.Unlock()
	r.cache.Purge()
	r.names = map[string]string{}
	r.exposed = exposed
	count := 0
	for i := range states {
		state := &states[i]
		if !r.keep(state, exposed) {
			continue
		}
		device := deviceFromState(state)
		device.Area = areas[state.EntityID]
		r.cache.Set(state.EntityID, device)
		r.names[strings.ToLower(device.Name)] = device.EntityID
		count++
	}
	r.built = time.Now()
	log.Infof("Device registry built: %d devices of %d states", count, len(states))
	return nil
}

func (r *Registry) fetchExposed(ctx context.Context) map[string]bool {
	r.lock.RLock()
	assistOnly := r.opts.AssistOnly
	r.lock.RUnlock()
	if !assistOnly {
		return nil
	}
	if r.exposure == nil || !r.exposure.Connected() {
		log.Warn("assist_only set but websocket unavailable, keeping all devices")
		return nil
	}
	exposed, err := r.exposure.ExposedEntities(ctx)
	if err != nil {
		log.Warnf("Exposed entity list unavailable: %s, keeping all devices", err)
		return nil
	}
	return exposed
}

func (r *Registry) fetchAreas(ctx context.Context) map[string]string {
	source, ok := r.exposure.(AreaSource)
	if !ok || !r.exposure.Connected() {
		return nil
	}
	areas, err := source.EntityAreas(ctx)
	if err != nil {
		log.Debugf("Area listing unavailable: %s", err)
		return nil
	}
	return areas
}

func (r *Registry) keep(state *State, exposed map[string]bool) bool {
	if !DomainSupported(state.Domain()) {
		return false
	}
	if state.Attributes.IsGroup() {
		return false
	}
	if exposed != nil && !exposed[state.EntityID] {
		return false
	}
	return true
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Similarity scores how alike two spoken names are, 1 for identical, 0 for
// nothing in common.
func Similarity(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// Find resolves a spoken name to the best matching device. The match is
// only accepted when its score exceeds the threshold; ties go to the
// alphabetically first name.
func (r *Registry) Find(spoken string) (*Device, float64, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	bestScore := 0.0
	bestID := ""
	for _, name := range util.SortedKeys(r.names) {
		if score := Similarity(spoken, name); score > bestScore {
			bestScore, bestID = score, r.names[name]
		}
	}
	if bestID == "" || bestScore <= r.opts.Threshold {
		log.Debugf("No device matched %q (best score %.2f)", spoken, bestScore)
		return nil, bestScore, false
	}
	device, ok := r.get(bestID)
	if !ok {
		return nil, bestScore, false
	}
	log.Debugf("Matched %q to %s (score %.2f)", spoken, device.EntityID, bestScore)
	return device, bestScore, true
}

func (r *Registry) get(entityID string) (*Device, bool) {
	item, err := r.cache.Get(entityID)
	if err != nil {
		return nil, false
	}
	device, ok := item.(*Device)
	return device, ok
}

// Get returns a device by exact entity id.
func (r *Registry) Get(entityID string) (*Device, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.get(entityID)
}

// Devices lists the registry sorted by entity id.
func (r *Registry) Devices() []*Device {
	r.lock.RLock()
	defer r.lock.RUnlock()
	items := r.cache.GetItems()
	devices := make([]*Device, 0, len(items))
	for _, id := range util.SortedKeys(items) {
		if device, ok := items[id].(*Device); ok {
			devices = append(devices, device)
		}
	}
	return devices
}

func (r *Registry) Len() int {
	return r.cache.Count()
}

// Built reports when the registry was last rebuilt.
func (r *Registry) Built() time.Time {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.built
}

// SetOptions applies reloaded matching options. Threshold takes effect on
// the next Find, AssistOnly on the next Build.
func (r *Registry) SetOptions(opts RegistryOptions) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.opts.Threshold = opts.Threshold
	r.opts.AssistOnly = opts.AssistOnly
}

// Update applies a state_changed event. New entities join if they pass the
// same filters as Build, removed entities drop out.
func (r *Registry) Update(old, updated *State) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if updated == nil {
		if old == nil {
			return
		}
		if device, ok := r.get(old.EntityID); ok {
			r.cache.Remove(old.EntityID)
			delete(r.names, strings.ToLower(device.Name))
		}
		return
	}
	if !r.keep(updated, r.exposed) {
		return
	}
	device := deviceFromState(updated)
	if old != nil {
		if prev, ok := r.get(old.EntityID); ok {
			device.Area = prev.Area
			if prev.Name != updated.Name() {
				delete(r.names, strings.ToLower(prev.Name))
			}
		}
	}
	r.cache.Set(updated.EntityID, device)
	r.names[strings.ToLower(device.Name)] = updated.EntityID
}

// Close stops the expiry timers.
func (r *Registry) Close() {
	r.cache.Close()
}
