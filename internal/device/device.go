// Package device patches parameters onto a universe at a start address.
package device

import (
	"errors"
	"fmt"

	"dmxparams/internal/dmx"
	"dmxparams/internal/param"
)

var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrUnknownParam  = errors.New("unknown param")
	ErrDuplicate     = errors.New("duplicate name")
	ErrAddress       = errors.New("address out of range")
)

// Device is a fixture occupying channels from Address (1-based) onwards.
// It is the param.Accessor its parameters read and write through.
type Device struct {
	Name    string
	Address int

	universe *dmx.Universe
	params   []namedParam
	index    map[string]int
	width    int // highest occupied relative channel + 1
}

type namedParam struct {
	name string
	p    param.Param
}

var _ param.Accessor = (*Device)(nil)

// New creates a device without parameters.
func New(name string, address int, u *dmx.Universe) (*Device, error) {
	if address < 1 || address > dmx.UniverseSize {
		return nil, fmt.Errorf("%w: device %q at %d", ErrAddress, name, address)
	}
	return &Device{
		Name:     name,
		Address:  address,
		universe: u,
		index:    map[string]int{},
	}, nil
}

// AddParam attaches p under name. All of its channels must fit in the universe.
func (d *Device) AddParam(name string, p param.Param) error {
	if _, ok := d.index[name]; ok {
		return fmt.Errorf("%w: param %q on %q", ErrDuplicate, name, d.Name)
	}
	for _, ch := range p.Channels() {
		if !dmx.ValidChannel(d.Address - 1 + ch) {
			return fmt.Errorf("%w: param %q on %q uses channel %d", ErrAddress, name, d.Name, d.Address+ch)
		}
		if ch+1 > d.width {
			d.width = ch + 1
		}
	}

	d.index[name] = len(d.params)
	d.params = append(d.params, namedParam{name: name, p: p})
	return nil
}

// Params returns the parameter names in the order they were added.
func (d *Device) Params() []string {
	names := make([]string, len(d.params))
	for i, np := range d.params {
		names[i] = np.name
	}
	return names
}

// Param looks up a parameter by name.
func (d *Device) Param(name string) (param.Param, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %q", ErrUnknownParam, name, d.Name)
	}
	return d.params[i].p, nil
}

// Width is the number of channels the device spans.
func (d *Device) Width() int {
	return d.width
}

// ChannelValue reads a channel relative to the device address.
func (d *Device) ChannelValue(ch int) uint8 {
	abs := d.Address - 1 + ch
	if !dmx.ValidChannel(abs) {
		return 0
	}
	return d.universe[abs]
}

// SetChannelValue writes a channel relative to the device address.
func (d *Device) SetChannelValue(ch int, v uint8) {
	abs := d.Address - 1 + ch
	if !dmx.ValidChannel(abs) {
		return
	}
	d.universe[abs] = v
}

// Get decodes the named parameter.
func (d *Device) Get(name string) (string, error) {
	p, err := d.Param(name)
	if err != nil {
		return "", err
	}
	return p.Decode(d), nil
}

// Set encodes value into the named parameter.
func (d *Device) Set(name, value string) error {
	p, err := d.Param(name)
	if err != nil {
		return err
	}
	if err := p.Encode(d, value); err != nil {
		return fmt.Errorf("%s.%s: %w", d.Name, name, err)
	}
	return nil
}

// Value is the decoded state of one parameter.
type Value struct {
	Device string `json:"device"`
	Param  string `json:"param"`
	Value  string `json:"value"`
}

// Values decodes all parameters in order.
func (d *Device) Values() []Value {
	values := make([]Value, len(d.params))
	for i, np := range d.params {
		values[i] = Value{Device: d.Name, Param: np.name, Value: np.p.Decode(d)}
	}
	return values
}
