package device

import (
	"fmt"
	"sync"

	"dmxparams/internal/dmx"
)

// Group aggregates the devices patched into one universe. All access goes
// through the group's locker so writers on different goroutines do not race
// each other or the frame being sent.
type Group struct {
	locker   sync.Locker
	universe *dmx.Universe
	devices  []*Device
	byName   map[string]*Device
}

// NewGroup creates an empty group over u. locker is usually the output that
// owns u; nil means a private mutex.
func NewGroup(u *dmx.Universe, locker sync.Locker) *Group {
	if locker == nil {
		locker = &sync.Mutex{}
	}
	return &Group{
		locker:   locker,
		universe: u,
		byName:   map[string]*Device{},
	}
}

// AddDevice creates a device at address and adds it to the group.
func (g *Group) AddDevice(name string, address int) (*Device, error) {
	g.locker.Lock()
	defer g.locker.Unlock()

	if _, ok := g.byName[name]; ok {
		return nil, fmt.Errorf("%w: device %q", ErrDuplicate, name)
	}
	d, err := New(name, address, g.universe)
	if err != nil {
		return nil, err
	}
	g.devices = append(g.devices, d)
	g.byName[name] = d
	return d, nil
}

// Devices returns the devices in the order they were added.
func (g *Group) Devices() []*Device {
	g.locker.Lock()
	defer g.locker.Unlock()
	return append([]*Device(nil), g.devices...)
}

// Device looks up a device by name.
func (g *Group) Device(name string) (*Device, error) {
	g.locker.Lock()
	defer g.locker.Unlock()
	return g.device(name)
}

func (g *Group) device(name string) (*Device, error) {
	d, ok := g.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
	return d, nil
}

// Get decodes device.param.
func (g *Group) Get(device, name string) (string, error) {
	g.locker.Lock()
	defer g.locker.Unlock()

	d, err := g.device(device)
	if err != nil {
		return "", err
	}
	return d.Get(name)
}

// Set encodes value into device.param.
func (g *Group) Set(device, name, value string) error {
	g.locker.Lock()
	defer g.locker.Unlock()

	d, err := g.device(device)
	if err != nil {
		return err
	}
	return d.Set(name, value)
}

// DeviceValues decodes all parameters of one device.
func (g *Group) DeviceValues(device string) ([]Value, error) {
	g.locker.Lock()
	defer g.locker.Unlock()

	d, err := g.device(device)
	if err != nil {
		return nil, err
	}
	return d.Values(), nil
}

// Values decodes every parameter of every device.
func (g *Group) Values() []Value {
	g.locker.Lock()
	defer g.locker.Unlock()

	var values []Value
	for _, d := range g.devices {
		values = append(values, d.Values()...)
	}
	return values
}

// SetChannels writes raw values, bypassing all parameters.
func (g *Group) SetChannels(values []dmx.ChannelValue) int {
	g.locker.Lock()
	defer g.locker.Unlock()
	return g.universe.Apply(values)
}

// Frame returns a copy of the universe.
func (g *Group) Frame() dmx.Universe {
	g.locker.Lock()
	defer g.locker.Unlock()
	return *g.universe
}
