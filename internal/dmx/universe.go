// Package dmx holds the channel array shared by parameters, devices and drivers.
package dmx

const (
	// UniverseSize is the number of channels in one DMX universe.
	UniverseSize = 512
	// MaxValue is the highest value a channel can hold.
	MaxValue = 255
)

// Universe wraps the 512 byte array for convenience.
// Index 0 is channel 1 of the controlled universe.
type Universe [UniverseSize]byte

// ChannelValue is a raw write of a value into a channel.
type ChannelValue struct {
	Channel uint16 `json:"channel"` // Channel: номер байта (0-511).
	Value   uint8  `json:"value"`   // Value: значение для канала.
}

// ValidChannel reports whether ch is a zero-based index inside a universe.
func ValidChannel(ch int) bool {
	return ch >= 0 && ch < UniverseSize
}

// Apply writes all values that address a valid channel and returns how many were written.
func (u *Universe) Apply(values []ChannelValue) int {
	n := 0
	for _, v := range values {
		if !ValidChannel(int(v.Channel)) {
			continue
		}
		u[v.Channel] = v.Value
		n++
	}
	return n
}
