package ca

import (
	"net"
	"net/netip"
	"sync"
)

// BroadcastDestinations returns the IPv4 destinations a search datagram must
// reach so every attached subnet hears it: the directed broadcast address of
// each up, non-loopback interface, or the address of a point-to-point link.
// A valid match restricts the scan to interfaces carrying that address; a
// loopback match selects only the loopback address itself.
func BroadcastDestinations(match netip.Addr) ([]netip.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []netip.Addr
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipn.IP.To4()
			if ip4 == nil {
				continue
			}
			addr, ok := netip.AddrFromSlice(ip4)
			if !ok {
				continue
			}
			if match.IsValid() && !match.IsUnspecified() {
				if match.IsLoopback() {
					if addr.IsLoopback() {
						out = append(out, addr)
					}
					continue
				}
				if addr != match.Unmap() {
					continue
				}
			}
			if ifc.Flags&net.FlagLoopback != 0 {
				continue
			}
			switch {
			case ifc.Flags&net.FlagBroadcast != 0:
				out = append(out, broadcastOf(ip4, ipn.Mask))
			case ifc.Flags&net.FlagPointToPoint != 0:
				// The kernel's destination address is not exposed here, so
				// the link's own address has to stand in for the far end.
				out = append(out, addr)
			}
		}
	}
	return out, nil
}

// broadcastOf computes the directed broadcast address of an IPv4 subnet.
func broadcastOf(ip4 net.IP, mask net.IPMask) netip.Addr {
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	var b [4]byte
	for i := range b {
		b[i] = ip4[i] | ^mask[i]
	}
	return netip.AddrFrom4(b)
}

// LocalAddr returns a stable IPv4 address identifying this host: the first
// up, non-loopback interface address, or loopback when nothing else is
// configured. The result is computed once, since peers expect a constant
// identity for the process lifetime.
var LocalAddr = sync.OnceValue(func() netip.Addr {
	loopback := netip.AddrFrom4([4]byte{127, 0, 0, 1})
	ifaces, err := net.Interfaces()
	if err != nil {
		return loopback
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipn.IP.To4(); ip4 != nil {
				if addr, ok := netip.AddrFromSlice(ip4); ok {
					return addr
				}
			}
		}
	}
	return loopback
})
