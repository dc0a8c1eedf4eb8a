package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseArgs(t *testing.T) {
	command, params := ParseArgs([]string{"on", "a=b", "b=1"})
	assert.Equal(t, command, "on")
	assert.Equal(t, params, map[string]interface{}{"a": "b", "b": float64(1)})
}

func TestParseArgsBool(t *testing.T) {
	command, params := ParseArgs([]string{"light.turn_on", "entity_id=light.kitchen", "rgb=false"})
	assert.Equal(t, command, "light.turn_on")
	assert.Equal(t, params, map[string]interface{}{"entity_id": "light.kitchen", "rgb": false})
}
