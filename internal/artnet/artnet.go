package artnet

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Haba1234/go-artnet"

	"dmxparams/internal/dmx"
	"dmxparams/internal/logger"
)

// ArtNet is transport for the ArtNet protocol (DMX over UDP/IP).
// It implements output.Driver.
type ArtNet struct {
	logger  *logger.Log
	sender  sender
	address artnet.Address
	ctx     context.Context
}

// sender is the part of *artnet.Controller the driver uses.
type sender interface {
	Start() error
	Stop()
	SendDMXToAddress(dmx [512]byte, address artnet.Address)
}

// Conf configures the driver.
type Conf struct {
	Network  string // Network - CIDR сети Art-Net.
	Universe uint16 // Universe: старший байт - SubUni, младший байт - Net.
	MaxFPS   int
}

// NewController returns an art-net driver bound to the interface inside cfg.Network.
func NewController(log *logger.Log, cfg Conf) (*ArtNet, error) {
	ip, err := FindArtNetIP(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to find the art-net IP: %w", err)
	}

	if len(ip) == 0 {
		return nil, errors.New("failed to find the art-net IP: No interface found")
	}

	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hostname: %w", err)
	}

	host = strings.ToLower(strings.Split(host, ".")[0])
	log.Module("art-net").Infof("Using ArtNet IP %s and hostname %s", ip.String(), host)

	senderLogger := artnet.NewDefaultLogger("info")
	maxFPS := cfg.MaxFPS
	if maxFPS <= 0 {
		maxFPS = 40
	}

	c := artnet.NewController(host, ip, senderLogger, artnet.MaxFPS(maxFPS))
	return newArtNet(log, c, cfg.Universe), nil
}

func newArtNet(log *logger.Log, s sender, universe uint16) *ArtNet {
	return &ArtNet{
		logger:  log.Module("art-net"),
		sender:  s,
		address: universeToAddress(universe),
	}
}

// Start the ArtNet.
func (c *ArtNet) Start(ctx context.Context) error {
	if err := c.sender.Start(); err != nil {
		return fmt.Errorf("failed to start Controller: %w", err)
	}

	c.ctx = ctx
	if ctrl, ok := c.sender.(*artnet.Controller); ok {
		go c.debugDevices(ctrl)
	}
	return nil
}

// Stop the ArtNet.
func (c *ArtNet) Stop() {
	c.sender.Stop()
}

// Send copies the universe into the controller for the configured address.
func (c *ArtNet) Send(u *dmx.Universe) {
	c.sender.SendDMXToAddress(*u, c.address)
}

// universeToAddress converts a dmx universe to art-net address
// universe: старший байт - SubUni, младший байт - Net.
func universeToAddress(universe uint16) artnet.Address {
	v := make([]uint8, 2)
	binary.BigEndian.PutUint16(v, universe)

	return artnet.Address{
		Net:    v[0],
		SubUni: v[1],
	}
}

// NodeToString returns a string representation of the given Node.
func NodeToString(n *artnet.ControlledNode) string {
	var inputs, outputs []string
	for _, p := range n.Node.InputPorts {
		inputs = append(inputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
	}

	for _, p := range n.Node.OutputPorts {
		outputs = append(outputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
	}

	return fmt.Sprintf(
		"IP=%s name=%q type=%q manufacturer=%q desc=%q inputs=%q outputs=%q",
		n.UDPAddress.String(), n.Node.Name, n.Node.Type,
		n.Node.Manufacturer, n.Node.Description,
		strings.Join(inputs, "; "), strings.Join(outputs, "; "),
	)
}

func (c *ArtNet) debugDevices(ctrl *artnet.Controller) {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			nodes := make([]string, 0, len(ctrl.Nodes))
			for _, n := range ctrl.Nodes {
				nodes = append(nodes, NodeToString(n))
			}
			c.logger.Debugf("Currently %d devices are registered: %v", len(nodes), nodes)
		}
	}
}
