package artnet

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/Haba1234/go-artnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmxparams/internal/dmx"
	"dmxparams/internal/logger"
)

type fakeSender struct {
	startErr error
	started  bool
	stopped  bool
	frames   [][512]byte
	address  []artnet.Address
}

func (s *fakeSender) Start() error {
	s.started = true
	return s.startErr
}

func (s *fakeSender) Stop() { s.stopped = true }

func (s *fakeSender) SendDMXToAddress(frame [512]byte, address artnet.Address) {
	s.frames = append(s.frames, frame)
	s.address = append(s.address, address)
}

func TestUniverseToAddress(t *testing.T) {
	assert.Equal(t, artnet.Address{Net: 0, SubUni: 0}, universeToAddress(0))
	assert.Equal(t, artnet.Address{Net: 0, SubUni: 3}, universeToAddress(3))
	assert.Equal(t, artnet.Address{Net: 1, SubUni: 2}, universeToAddress(0x0102))
}

func TestSendCopiesUniverse(t *testing.T) {
	s := &fakeSender{}
	a := newArtNet(logger.NewNop(), s, 3)
	require.NoError(t, a.Start(context.Background()))
	assert.True(t, s.started)

	var u dmx.Universe
	u[0] = 200
	a.Send(&u)
	u[0] = 1

	require.Len(t, s.frames, 1)
	assert.Equal(t, byte(200), s.frames[0][0])
	assert.Equal(t, artnet.Address{SubUni: 3}, s.address[0])

	a.Stop()
	assert.True(t, s.stopped)
}

func TestStartError(t *testing.T) {
	a := newArtNet(logger.NewNop(), &fakeSender{startErr: errors.New("bind")}, 0)
	assert.Error(t, a.Start(context.Background()))
}

func TestMatchIP(t *testing.T) {
	_, cidr, err := net.ParseCIDR("192.168.6.0/24")
	require.NoError(t, err)

	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("::1"), Mask: net.CIDRMask(128, 128)},
		&net.IPNet{IP: net.ParseIP("10.0.0.2").To4(), Mask: net.CIDRMask(8, 32)},
		&net.IPNet{IP: net.ParseIP("192.168.6.20").To4(), Mask: net.CIDRMask(24, 32)},
	}

	assert.Equal(t, "192.168.6.20", matchIP(cidr, addrs).String())
	assert.Nil(t, matchIP(cidr, addrs[:2]))
}

func TestFindArtNetIPBadNetwork(t *testing.T) {
	_, err := FindArtNetIP("not-a-cidr")
	assert.Error(t, err)
}
