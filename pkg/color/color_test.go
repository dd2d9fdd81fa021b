package color

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adslot/leasekeeper/pkg/model"
)

func restore(t *testing.T) {
	enabled, overridden := state.enabled.Load(), state.overridden.Load()
	t.Cleanup(func() {
		state.enabled.Store(enabled)
		state.overridden.Store(overridden)
	})
}

func TestEnableDisable(t *testing.T) {
	restore(t)
	Enable()
	assert.True(t, Enabled())
	assert.Equal(t, green+"ok"+reset, Success("ok"))

	Disable()
	assert.False(t, Enabled())
	assert.Equal(t, "ok", Success("ok"))
}

func TestInit_NoColor(t *testing.T) {
	restore(t)
	state.overridden.Store(false)
	t.Setenv("NO_COLOR", "1")
	Init(false)
	assert.False(t, Enabled())
}

func TestInit_Flag(t *testing.T) {
	restore(t)
	state.overridden.Store(false)
	t.Setenv("TERM", "xterm")
	Init(true)
	assert.False(t, Enabled())
}

func TestInit_OverrideWins(t *testing.T) {
	restore(t)
	Enable()
	Init(true)
	assert.True(t, Enabled())
}

func TestFramed(t *testing.T) {
	restore(t)
	Enable()
	assert.Equal(t, green+"a"+reset, Framed(model.FramingSuccess, "a"))
	assert.Equal(t, cyan+"a"+reset, Framed(model.FramingInfo, "a"))
	assert.Equal(t, red+"a"+reset, Framed(model.FramingError, "a"))
}
