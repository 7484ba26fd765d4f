package artnet

import (
	"fmt"
	"net"
)

// DefaultNetwork is the CIDR an art-net network usually has.
const DefaultNetwork = "192.168.6.0/24"

// FindArtNetIP finds the matching interface with an IPv4 address inside network.
// It returns nil, nil if no interface matches.
func FindArtNetIP(network string) (net.IP, error) {
	if network == "" {
		network = DefaultNetwork
	}
	_, cidrNet, err := net.ParseCIDR(network)
	if err != nil {
		return nil, fmt.Errorf("bad network %q: %w", network, err)
	}

	address, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("error getting ips: %w", err)
	}

	return matchIP(cidrNet, address), nil
}

func matchIP(cidrNet *net.IPNet, address []net.Addr) net.IP {
	for _, addr := range address {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.To4() == nil {
			continue
		}

		if cidrNet.Contains(ipNet.IP) {
			return ipNet.IP
		}
	}
	return nil
}
