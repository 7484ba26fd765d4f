package script

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmxparams/internal/device"
	"dmxparams/internal/dmx"
	"dmxparams/internal/logger"
	"dmxparams/internal/param"
)

func newGroup(t *testing.T) (*device.Group, *dmx.Universe) {
	t.Helper()
	u := &dmx.Universe{}
	g := device.NewGroup(u, nil)
	d, err := g.AddDevice("spot1", 1)
	require.NoError(t, err)

	dimmer, err := param.NewScalar(0, 1, 0)
	require.NoError(t, err)
	require.NoError(t, d.AddParam("dimmer", dimmer))

	shutter, err := param.NewMultiRange(1, []param.RangeDefinition{
		param.Range("closed", 0, 6),
		param.Range("open", 7, 13),
	})
	require.NoError(t, err)
	require.NoError(t, d.AddParam("shutter", shutter))
	return g, u
}

func TestEngineFrame(t *testing.T) {
	g, u := newGroup(t)
	e := New(logger.NewNop(), g)
	defer e.Close()

	require.NoError(t, e.LoadString(`
function frame(ms)
  if ms >= 1000 then
    set("spot1", "shutter", "open")
  end
  set("spot1", "dimmer", ms / 2000)
end
`))

	require.NoError(t, e.Frame(500*time.Millisecond))
	assert.Equal(t, byte(64), u[0])
	assert.Equal(t, byte(0), u[1])

	require.NoError(t, e.Frame(2*time.Second))
	assert.Equal(t, byte(255), u[0])
	assert.Equal(t, byte(7), u[1])
}

func TestEngineGet(t *testing.T) {
	g, u := newGroup(t)
	e := New(logger.NewNop(), g)
	defer e.Close()

	require.NoError(t, e.LoadString(`
function frame(ms)
  if get("spot1", "shutter") == "closed" then
    set("spot1", "shutter", "open")
  else
    set("spot1", "shutter", "closed")
  end
end
`))

	require.NoError(t, e.Frame(0))
	assert.Equal(t, byte(7), u[1])
	require.NoError(t, e.Frame(0))
	assert.Equal(t, byte(0), u[1])
}

func TestEngineErrors(t *testing.T) {
	g, _ := newGroup(t)

	e := New(logger.NewNop(), g)
	defer e.Close()
	assert.ErrorIs(t, e.LoadString(`x = 1`), ErrNoFrameFunction)
	assert.ErrorIs(t, e.Frame(0), ErrNoFrameFunction)
	assert.Error(t, e.LoadString(`function frame(`))

	require.NoError(t, e.LoadString(`function frame(ms) set("spot1", "shutter", "blink") end`))
	err := e.Frame(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blink")

	require.NoError(t, e.LoadString(`function frame(ms) set("spot1", "shutter", {}) end`))
	assert.Error(t, e.Frame(0))
}

func TestEngineLoadFile(t *testing.T) {
	g, u := newGroup(t)
	path := filepath.Join(t.TempDir(), "fx.lua")
	require.NoError(t, os.WriteFile(path, []byte(`function frame(ms) log("tick") set("spot1", "dimmer", 1) end`), 0o600))

	e := New(logger.NewNop(), g)
	defer e.Close()
	require.NoError(t, e.LoadFile(path))
	require.NoError(t, e.Frame(time.Millisecond))
	assert.Equal(t, byte(255), u[0])

	assert.Error(t, e.LoadFile(filepath.Join(t.TempDir(), "missing.lua")))
}
