package param

import (
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"dmxparams/internal/dmx"
	"dmxparams/internal/rangemap"
)

// RangeDefinition describes one named sub-range of a channel.
type RangeDefinition struct {
	Key string
	// DMX holds the inclusive raw bounds [lo, hi]. It is required.
	DMX []int
	// ValueRange holds the value bounds the raw range maps onto.
	// Nil means [0, 1] and a decoded value without an argument.
	ValueRange []float64
	// ToDMX and ToValue replace the linear mapping when set.
	// The result of ToDMX is clamped to DMX.
	ToDMX   func(value float64) float64
	ToValue func(raw float64) float64
}

// Range returns a definition for key covering the raw values lo..hi.
func Range(key string, lo, hi int) RangeDefinition {
	return RangeDefinition{Key: key, DMX: []int{lo, hi}}
}

// WithValues maps the range onto the value interval [lo, hi].
func (r RangeDefinition) WithValues(lo, hi float64) RangeDefinition {
	r.ValueRange = []float64{lo, hi}
	return r
}

// WithFuncs sets custom conversions. Either may be nil.
func (r RangeDefinition) WithFuncs(toDMX, toValue func(float64) float64) RangeDefinition {
	r.ToDMX = toDMX
	r.ToValue = toValue
	return r
}

// rangeEntry is a validated RangeDefinition.
type rangeEntry struct {
	key        string
	lo, hi     uint8
	isFunction bool // decode as "key(value)" instead of "key"
	toDMX      rangemap.Mapper
	toValue    rangemap.Mapper
}

func (e *rangeEntry) contains(raw uint8) bool {
	return raw >= e.lo && raw <= e.hi
}

// MultiRange is a single-channel parameter split into named ranges, e.g. a
// shutter channel with closed, open and strobe sections:
//
//	shutter, err := param.NewMultiRange(10, []param.RangeDefinition{
//		param.Range("closed", 0, 6),
//		param.Range("open", 7, 13),
//		param.Range("strobe", 14, 100).WithValues(0, 1),
//	})
//
// Values are written as "open", "closed()", "strobe(0.4)" or, when a
// "default" range exists, as plain numbers. "dmx(n)" writes n unmapped.
type MultiRange struct {
	channel  int
	entries  []*rangeEntry // declaration order, first match wins on decode
	byKey    map[string]*rangeEntry
	fallback *rangeEntry // the "default" entry, if any

	cache  *lru.Cache[uint8, string]
	format func(float64) string
}

var _ Param = (*MultiRange)(nil)

// NewMultiRange validates ranges and builds the parameter over channel.
// No parameter is returned if any definition is invalid.
func NewMultiRange(channel int, ranges []RangeDefinition) (*MultiRange, error) {
	if err := checkChannel(channel); err != nil {
		return nil, err
	}

	// 256 entries cover every raw value, nothing is ever evicted.
	cache, err := lru.New[uint8, string](dmx.MaxValue + 1)
	if err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}

	p := &MultiRange{
		channel: channel,
		byKey:   make(map[string]*rangeEntry, len(ranges)),
		cache:   cache,
		format:  FormatNumber,
	}

	for _, def := range ranges {
		e, err := newRangeEntry(def)
		if err != nil {
			return nil, err
		}
		if _, ok := p.byKey[e.key]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRange, e.key)
		}
		p.entries = append(p.entries, e)
		p.byKey[e.key] = e
		if e.key == DefaultKey {
			p.fallback = e
		}
	}

	return p, nil
}

func newRangeEntry(def RangeDefinition) (*rangeEntry, error) {
	if def.Key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidRange)
	}
	if def.Key == RawKey {
		return nil, fmt.Errorf("%w: %q", ErrReservedKey, def.Key)
	}
	if e, err := ParseExpr(def.Key); err != nil || e.Name != def.Key {
		return nil, fmt.Errorf("%w: key %q is not a name", ErrInvalidRange, def.Key)
	}

	if len(def.DMX) == 0 {
		return nil, fmt.Errorf("invalid definition for range %q: %w", def.Key, ErrMissingRange)
	}
	if len(def.DMX) != 2 {
		return nil, fmt.Errorf("%w: range %q needs two dmx bounds, got %d", ErrInvalidRange, def.Key, len(def.DMX))
	}
	lo, hi := def.DMX[0], def.DMX[1]
	if lo < 0 || hi > dmx.MaxValue || lo > hi {
		return nil, fmt.Errorf("%w: range %q has dmx bounds [%d, %d]", ErrInvalidRange, def.Key, lo, hi)
	}

	valueLo, valueHi := 0.0, 1.0
	if def.ValueRange != nil {
		if len(def.ValueRange) != 2 {
			return nil, fmt.Errorf("%w: range %q needs two value bounds, got %d", ErrInvalidRange, def.Key, len(def.ValueRange))
		}
		valueLo, valueHi = def.ValueRange[0], def.ValueRange[1]
		if math.IsNaN(valueLo) || math.IsNaN(valueHi) {
			return nil, fmt.Errorf("%w: range %q has NaN value bounds", ErrInvalidRange, def.Key)
		}
	}

	e := &rangeEntry{
		key:        def.Key,
		lo:         uint8(lo),
		hi:         uint8(hi),
		isFunction: def.ValueRange != nil || def.ToValue != nil,
		toDMX:      rangemap.Clamped(valueLo, valueHi, float64(lo), float64(hi)),
		toValue:    rangemap.Clamped(float64(lo), float64(hi), valueLo, valueHi),
	}
	if def.ToDMX != nil {
		custom := def.ToDMX
		e.toDMX = func(v float64) float64 {
			return rangemap.Clamp(custom(v), float64(lo), float64(hi))
		}
	}
	if def.ToValue != nil {
		e.toValue = def.ToValue
	}

	return e, nil
}

// Channels returns the single channel the parameter lives in.
func (p *MultiRange) Channels() []int {
	return []int{p.channel}
}

// Keys returns the range keys in declaration order.
func (p *MultiRange) Keys() []string {
	keys := make([]string, len(p.entries))
	for i, e := range p.entries {
		keys[i] = e.key
	}
	return keys
}

// Decode returns the symbolic value of the raw byte currently in the channel.
// Results are memoized per raw value.
func (p *MultiRange) Decode(dev Accessor) string {
	raw := dev.ChannelValue(p.channel)
	if s, ok := p.cache.Get(raw); ok {
		return s
	}

	s := p.decode(raw)
	p.cache.Add(raw, s)
	return s
}

func (p *MultiRange) decode(raw uint8) string {
	e := p.match(raw)
	if e == nil {
		return fmt.Sprintf("%s(%d)", RawKey, raw)
	}

	switch {
	case e == p.fallback:
		return p.format(e.toValue(float64(raw)))
	case e.isFunction:
		return e.key + "(" + p.format(e.toValue(float64(raw))) + ")"
	default:
		return e.key
	}
}

func (p *MultiRange) match(raw uint8) *rangeEntry {
	for _, e := range p.entries {
		if e.contains(raw) {
			return e
		}
	}
	return nil
}

// Encode writes value to the channel. See MultiRange for accepted forms.
func (p *MultiRange) Encode(dev Accessor, value string) error {
	if p.fallback != nil {
		if v, ok := parseFinite(value); ok {
			dev.SetChannelValue(p.channel, toByte(p.fallback.toDMX(v)))
			return nil
		}
	}

	expr, err := ParseExpr(value)
	if err != nil {
		return err
	}

	if expr.Name == RawKey {
		dev.SetChannelValue(p.channel, rawByte(expr.Arg))
		return nil
	}

	e, ok := p.byKey[expr.Name]
	if !ok {
		return fmt.Errorf("%w: %q (known: %v)", ErrUnknownRange, expr.Name, p.Keys())
	}

	dev.SetChannelValue(p.channel, toByte(e.toDMX(expr.Arg)))
	return nil
}

// rawByte truncates v toward zero and saturates at the byte limits.
func rawByte(v float64) uint8 {
	return uint8(math.Trunc(rangemap.Clamp(v, 0, dmx.MaxValue)))
}
