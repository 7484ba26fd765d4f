package param

import (
	"fmt"
	"math"

	"dmxparams/internal/rangemap"
)

// Scalar is a plain numeric parameter, e.g. a dimmer mapped onto [0, 1].
// One channel gives 8-bit resolution, two channels (coarse, fine) give 16-bit.
type Scalar struct {
	channels []int
	min, max float64
	maxRaw   float64
	format   func(float64) string
}

var _ Param = (*Scalar)(nil)

// NewScalar maps the raw value of channels onto [min, max].
func NewScalar(min, max float64, channels ...int) (*Scalar, error) {
	if len(channels) == 0 || len(channels) > 2 {
		return nil, fmt.Errorf("%w: scalar needs one or two channels, got %d", ErrInvalidRange, len(channels))
	}
	for _, ch := range channels {
		if err := checkChannel(ch); err != nil {
			return nil, err
		}
	}
	if math.IsNaN(min) || math.IsNaN(max) || min == max {
		return nil, fmt.Errorf("%w: scalar bounds [%v, %v]", ErrInvalidRange, min, max)
	}

	maxRaw := 255.0
	if len(channels) == 2 {
		maxRaw = 65535
	}

	return &Scalar{
		channels: append([]int(nil), channels...),
		min:      min,
		max:      max,
		maxRaw:   maxRaw,
		format:   FormatNumber,
	}, nil
}

// Channels returns the coarse channel followed by the fine channel, if any.
func (p *Scalar) Channels() []int {
	return append([]int(nil), p.channels...)
}

// Decode returns the current value as a number.
func (p *Scalar) Decode(dev Accessor) string {
	raw := float64(dev.ChannelValue(p.channels[0]))
	if len(p.channels) == 2 {
		raw = raw*256 + float64(dev.ChannelValue(p.channels[1]))
	}
	return p.format(rangemap.Map(raw, 0, p.maxRaw, p.min, p.max))
}

// Encode accepts a finite number; values outside [min, max] saturate.
func (p *Scalar) Encode(dev Accessor, value string) error {
	v, ok := parseFinite(value)
	if !ok {
		return fmt.Errorf("%w: %q is not a number", ErrSyntax, value)
	}

	raw := uint16(math.Round(rangemap.Map(v, p.min, p.max, 0, p.maxRaw)))
	if len(p.channels) == 1 {
		dev.SetChannelValue(p.channels[0], uint8(raw))
		return nil
	}
	dev.SetChannelValue(p.channels[0], uint8(raw>>8))
	dev.SetChannelValue(p.channels[1], uint8(raw))
	return nil
}
