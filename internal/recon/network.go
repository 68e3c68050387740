package recon

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/HerbHall/lanwatch/pkg/models"
)

var (
	// ErrRangeTooLarge is returned when a CIDR holds more hosts than the sweep allows.
	ErrRangeTooLarge = errors.New("address range too large")
	// ErrNoLocalNetwork is returned when no usable IPv4 interface is found.
	ErrNoLocalNetwork = errors.New("no usable local IPv4 network")
)

// autoPrefixBits bounds auto-detected networks; anything wider is narrowed
// to the /24 around the host address.
const autoPrefixBits = 24

// HostsInCIDR enumerates the usable IPv4 host addresses in cidr. Network and
// broadcast addresses are excluded for prefixes shorter than /31.
func HostsInCIDR(cidr string, max int) ([]netip.Addr, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("parse cidr %q: %w", cidr, err)
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("cidr %q: only IPv4 ranges are supported", cidr)
	}
	prefix = prefix.Masked()

	hostBits := 32 - prefix.Bits()
	total := 1 << hostBits
	usable := total
	if prefix.Bits() < 31 {
		usable -= 2
	}
	if max > 0 && usable > max {
		return nil, fmt.Errorf("cidr %q has %d hosts (max %d): %w", cidr, usable, max, ErrRangeTooLarge)
	}

	hosts := make([]netip.Addr, 0, usable)
	addr := prefix.Addr()
	for i := 0; i < total; i++ {
		if prefix.Bits() < 31 && (i == 0 || i == total-1) {
			addr = addr.Next()
			continue
		}
		hosts = append(hosts, addr)
		addr = addr.Next()
	}
	return hosts, nil
}

// interfaceCandidate is the subset of an interface needed to pick the primary network.
type interfaceCandidate struct {
	Name  string
	Flags net.Flags
	Addrs []net.Addr
}

// PrimaryNetwork detects the host's primary IPv4 network: the first up,
// non-loopback interface carrying a private address, falling back to any
// global unicast IPv4 address.
func PrimaryNetwork() (*models.LocalNetwork, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	candidates := make([]interfaceCandidate, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		candidates = append(candidates, interfaceCandidate{
			Name:  iface.Name,
			Flags: iface.Flags,
			Addrs: addrs,
		})
	}
	return selectPrimary(candidates)
}

func selectPrimary(candidates []interfaceCandidate) (*models.LocalNetwork, error) {
	var fallback *models.LocalNetwork
	for _, c := range candidates {
		if c.Flags&net.FlagUp == 0 || c.Flags&net.FlagLoopback != 0 {
			continue
		}
		for _, a := range c.Addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil || !ip4.IsGlobalUnicast() {
				continue
			}
			ones, _ := ipNet.Mask.Size()
			network := localNetwork(c.Name, ip4, ones)
			if ip4.IsPrivate() {
				return network, nil
			}
			if fallback == nil {
				fallback = network
			}
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, ErrNoLocalNetwork
}

func localNetwork(name string, ip net.IP, ones int) *models.LocalNetwork {
	if ones < autoPrefixBits {
		ones = autoPrefixBits
	}
	addr, _ := netip.AddrFromSlice(ip)
	prefix := netip.PrefixFrom(addr, ones).Masked()
	return &models.LocalNetwork{
		CIDR:          prefix.String(),
		InterfaceName: name,
		Address:       addr.String(),
	}
}

// SegmentName derives a human-readable segment name for an auto-detected network.
func SegmentName(n *models.LocalNetwork) string {
	return fmt.Sprintf("%s (auto-detected on %s)", n.CIDR, n.InterfaceName)
}
