package skill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscillatelabs/hasskill/bus"
)

func testDialogs(t *testing.T) *dialogs {
	t.Helper()
	d, err := loadDialogs(localeFS(""), defaultLang)
	require.NoError(t, err)
	d.pick = func(int) int { return 0 }
	return d
}

func TestRender(t *testing.T) {
	d := testDialogs(t)

	got := d.Render("device.turned.on", bus.Data{"device": "kitchen light"})
	assert.Equal(t, "kitchen light is now on", got)

	got = d.Render("device.status", bus.Data{"device": "Ceiling Fan", "type": "switch", "state": "off"})
	assert.Equal(t, "the switch Ceiling Fan is off", got)
}

func TestRenderPicksVariant(t *testing.T) {
	d := testDialogs(t)
	d.pick = func(n int) int { return n - 1 }

	got := d.Render("device.turned.on", bus.Data{"device": "kitchen light"})
	assert.Equal(t, "turned on kitchen light", got)
}

func TestRenderMissingDialog(t *testing.T) {
	d := testDialogs(t)

	// degrade the way the host does, speak the dialog name itself
	assert.Equal(t, "does.not.exist", d.Render("does.not.exist", nil))
}

func TestRenderNumbers(t *testing.T) {
	d := testDialogs(t)

	got := d.Render("lights.current.brightness", bus.Data{"device": "kitchen light", "brightness": 60})
	assert.Equal(t, "kitchen light is at 60 percent brightness", got)
}

func TestSplitLines(t *testing.T) {
	lines := splitLines([]byte("first\n\n# a comment\n  second  \n"))
	assert.Equal(t, []string{"first", "second"}, lines)
}
