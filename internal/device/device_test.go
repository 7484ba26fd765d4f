package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmxparams/internal/dmx"
	"dmxparams/internal/param"
)

func newSpot(t *testing.T, g *Group, name string, address int) *Device {
	t.Helper()

	d, err := g.AddDevice(name, address)
	require.NoError(t, err)

	dimmer, err := param.NewScalar(0, 1, 0)
	require.NoError(t, err)
	require.NoError(t, d.AddParam("dimmer", dimmer))

	shutter, err := param.NewMultiRange(1, []param.RangeDefinition{
		param.Range("closed", 0, 6),
		param.Range("open", 7, 13),
		param.Range("strobe", 14, 100).WithValues(0, 1),
	})
	require.NoError(t, err)
	require.NoError(t, d.AddParam("shutter", shutter))

	return d
}

func TestDeviceAddressing(t *testing.T) {
	var u dmx.Universe
	g := NewGroup(&u, nil)
	d := newSpot(t, g, "spot1", 10)

	require.NoError(t, d.Set("dimmer", "1"))
	require.NoError(t, d.Set("shutter", "open"))

	assert.Equal(t, byte(255), u[9])
	assert.Equal(t, byte(7), u[10])
	assert.Equal(t, 2, d.Width())
	assert.Equal(t, []string{"dimmer", "shutter"}, d.Params())

	got, err := d.Get("shutter")
	require.NoError(t, err)
	assert.Equal(t, "open", got)
}

func TestDeviceErrors(t *testing.T) {
	var u dmx.Universe
	g := NewGroup(&u, nil)
	d := newSpot(t, g, "spot1", 1)

	_, err := d.Get("pan")
	assert.ErrorIs(t, err, ErrUnknownParam)

	err = d.Set("shutter", "blink")
	assert.ErrorIs(t, err, param.ErrUnknownRange)
	assert.Contains(t, err.Error(), "spot1.shutter")

	p, _ := param.NewScalar(0, 1, 0)
	assert.ErrorIs(t, d.AddParam("dimmer", p), ErrDuplicate)

	_, err = New("bad", 0, &u)
	assert.ErrorIs(t, err, ErrAddress)

	edge, err := New("edge", 512, &u)
	require.NoError(t, err)
	wide, _ := param.NewScalar(0, 1, 1)
	assert.ErrorIs(t, edge.AddParam("x", wide), ErrAddress)
}

func TestGroup(t *testing.T) {
	var u dmx.Universe
	g := NewGroup(&u, nil)
	newSpot(t, g, "spot1", 1)
	newSpot(t, g, "spot2", 3)

	_, err := g.AddDevice("spot1", 20)
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, g.Set("spot2", "shutter", "strobe(1)"))
	assert.Equal(t, byte(100), u[3])

	got, err := g.Get("spot2", "shutter")
	require.NoError(t, err)
	assert.Equal(t, "strobe(1)", got)

	_, err = g.Get("spot3", "shutter")
	assert.ErrorIs(t, err, ErrUnknownDevice)
	assert.ErrorIs(t, g.Set("spot3", "shutter", "open"), ErrUnknownDevice)

	values := g.Values()
	assert.Equal(t, []Value{
		{Device: "spot1", Param: "dimmer", Value: "0"},
		{Device: "spot1", Param: "shutter", Value: "closed"},
		{Device: "spot2", Param: "dimmer", Value: "0"},
		{Device: "spot2", Param: "shutter", Value: "strobe(1)"},
	}, values)

	dv, err := g.DeviceValues("spot1")
	require.NoError(t, err)
	assert.Len(t, dv, 2)

	n := g.SetChannels([]dmx.ChannelValue{{Channel: 0, Value: 9}, {Channel: 600, Value: 1}})
	assert.Equal(t, 1, n)
	frame := g.Frame()
	assert.Equal(t, byte(9), frame[0])

	assert.Len(t, g.Devices(), 2)
}

func TestWatcher(t *testing.T) {
	w := NewWatcher()
	values := []Value{
		{Device: "a", Param: "x", Value: "1"},
		{Device: "a", Param: "y", Value: "open"},
	}

	assert.Equal(t, values, w.Diff(values))
	assert.Empty(t, w.Diff(values))

	values[1].Value = "closed"
	assert.Equal(t, []Value{values[1]}, w.Diff(values))

	w.Reset()
	assert.Len(t, w.Diff(values), 2)
}
