package homeassistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStates struct {
	states []State
	calls  int
}

func (f *fakeStates) States(ctx context.Context) ([]State, error) {
	f.calls++
	return f.states, nil
}

type fakeExposure struct {
	exposed   map[string]bool
	areas     map[string]string
	connected bool
}

func (f *fakeExposure) ExposedEntities(ctx context.Context) (map[string]bool, error) {
	return f.exposed, nil
}

func (f *fakeExposure) EntityAreas(ctx context.Context) (map[string]string, error) {
	return f.areas, nil
}

func (f *fakeExposure) Connected() bool {
	return f.connected
}

func testStates() []State {
	brightness := 128.0
	return []State{
		{EntityID: "light.kitchen", State: "on", Attributes: Attributes{FriendlyName: "Kitchen Light", Brightness: &brightness}},
		{EntityID: "switch.fan", State: "off", Attributes: Attributes{FriendlyName: "Ceiling Fan"}},
		{EntityID: "sensor.hallway_temperature", State: "21.5", Attributes: Attributes{FriendlyName: "Hallway Temperature", UnitOfMeasurement: "°C"}},
		{EntityID: "weather.home", State: "sunny", Attributes: Attributes{FriendlyName: "Weather"}},
		{EntityID: "light.all_lights", State: "on", Attributes: Attributes{FriendlyName: "All Lights", Icon: "mdi:lightbulb-group"}},
	}
}

func testRegistry(t *testing.T, exposure ExposureSource, opts RegistryOptions) *Registry {
	t.Helper()
	registry := NewRegistry(&fakeStates{states: testStates()}, exposure, opts)
	t.Cleanup(registry.Close)
	require.NoError(t, registry.Build(context.Background()))
	return registry
}

func TestBuildFilters(t *testing.T) {
	registry := testRegistry(t, nil, RegistryOptions{Threshold: 0.5})

	// weather.home is an unsupported domain, light.all_lights a group
	assert.Equal(t, 3, registry.Len())
	_, ok := registry.Get("weather.home")
	assert.False(t, ok)
	_, ok = registry.Get("light.all_lights")
	assert.False(t, ok)

	devices := registry.Devices()
	require.Len(t, devices, 3)
	assert.Equal(t, "light.kitchen", devices[0].EntityID)
	assert.Equal(t, "sensor.hallway_temperature", devices[1].EntityID)
	assert.Equal(t, "switch.fan", devices[2].EntityID)
}

func TestBuildAssistOnly(t *testing.T) {
	exposure := &fakeExposure{exposed: map[string]bool{"light.kitchen": true}, connected: true}
	registry := testRegistry(t, exposure, RegistryOptions{Threshold: 0.5, AssistOnly: true})

	assert.Equal(t, 1, registry.Len())
	device, ok := registry.Get("light.kitchen")
	require.True(t, ok)
	assert.Equal(t, "Kitchen Light", device.Name)
}

func TestBuildAreas(t *testing.T) {
	exposure := &fakeExposure{
		exposed:   map[string]bool{"light.kitchen": true, "switch.fan": true},
		areas:     map[string]string{"light.kitchen": "Kitchen"},
		connected: true,
	}
	registry := testRegistry(t, exposure, RegistryOptions{Threshold: 0.5, AssistOnly: true})

	device, ok := registry.Get("light.kitchen")
	require.True(t, ok)
	assert.Equal(t, "Kitchen", device.Area)

	fan, ok := registry.Get("switch.fan")
	require.True(t, ok)
	assert.Equal(t, "", fan.Area)

	// a state change keeps the area
	states := testStates()
	updated := &State{EntityID: "light.kitchen", State: "off", Attributes: Attributes{FriendlyName: "Kitchen Light"}}
	registry.Update(&states[0], updated)
	device, ok = registry.Get("light.kitchen")
	require.True(t, ok)
	assert.Equal(t, "Kitchen", device.Area)
	assert.Equal(t, "off", device.State)
}

func TestBuildAssistOnlyWithoutSocket(t *testing.T) {
	registry := testRegistry(t, nil, RegistryOptions{Threshold: 0.5, AssistOnly: true})
	// no websocket to ask, so the filter is skipped rather than
	// silencing every device
	assert.Equal(t, 3, registry.Len())
}

func TestFind(t *testing.T) {
	registry := testRegistry(t, nil, RegistryOptions{Threshold: 0.5})

	device, score, ok := registry.Find("kitchen light")
	require.True(t, ok)
	assert.Equal(t, "light.kitchen", device.EntityID)
	assert.Equal(t, 1.0, score)

	device, score, ok = registry.Find("the kitchn light")
	require.True(t, ok, "score %.2f", score)
	assert.Equal(t, "light.kitchen", device.EntityID)

	_, _, ok = registry.Find("flux capacitor")
	assert.False(t, ok)
}

func TestFindThresholdBoundary(t *testing.T) {
	registry := testRegistry(t, nil, RegistryOptions{Threshold: 1.0})
	// an exact match scores 1.0, which does not exceed the threshold
	_, score, ok := registry.Find("ceiling fan")
	assert.Equal(t, 1.0, score)
	assert.False(t, ok)
}

func TestUpdate(t *testing.T) {
	registry := testRegistry(t, nil, RegistryOptions{Threshold: 0.5})

	old := &State{EntityID: "switch.fan", State: "off", Attributes: Attributes{FriendlyName: "Ceiling Fan"}}
	updated := &State{EntityID: "switch.fan", State: "on", Attributes: Attributes{FriendlyName: "Ceiling Fan"}}
	registry.Update(old, updated)

	device, ok := registry.Get("switch.fan")
	require.True(t, ok)
	assert.Equal(t, "on", device.State)

	// a rename moves the spoken name index
	renamed := &State{EntityID: "switch.fan", State: "on", Attributes: Attributes{FriendlyName: "Bedroom Fan"}}
	registry.Update(updated, renamed)
	_, _, ok = registry.Find("ceiling fan")
	assert.False(t, ok)
	device, _, ok = registry.Find("bedroom fan")
	require.True(t, ok)
	assert.Equal(t, "switch.fan", device.EntityID)

	// removal drops the device
	registry.Update(renamed, nil)
	_, ok = registry.Get("switch.fan")
	assert.False(t, ok)

	// a brand new entity joins
	appeared := &State{EntityID: "light.porch", State: "off", Attributes: Attributes{FriendlyName: "Porch Light"}}
	registry.Update(nil, appeared)
	device, ok = registry.Get("light.porch")
	require.True(t, ok)
	assert.Equal(t, "Porch Light", device.Name)

	// unsupported domains never join
	registry.Update(nil, &State{EntityID: "weather.home", State: "rainy"})
	_, ok = registry.Get("weather.home")
	assert.False(t, ok)
}
