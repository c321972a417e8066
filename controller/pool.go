package controller

import (
	"fmt"

	"github.com/meshcore/engine/address"
)

// allocateIPv4 finds a network's first unassigned address across its
// pools, in pool order, and candidate order within each pool. It does
// not itself append the assignment; callers append it while holding
// n.mu, which is the only lock this needs since it's always called
// from within a network's own critical section.
//
// If the network already has an IPv4 assignment for node, allocation is
// skipped: a node keeps whatever address it was first given.
func allocateIPv4(n *network, node address.Address) (ip string, netmaskBits int, ok bool) {
	for _, a := range n.assignments {
		if a.NodeID == node && a.IPVersion == 4 {
			return "", 0, false
		}
	}

	taken := make(map[uint32]bool, len(n.assignments))
	for _, a := range n.assignments {
		if a.IPVersion == 4 {
			if u, ok := parseIPv4(a.IP); ok {
				taken[u] = true
			}
		}
	}

	for _, pool := range n.pools {
		bits := netmaskBitsForRoute(n, pool.RouteIP)
		for candidate := pool.IPFirst; candidate <= pool.IPLast; candidate++ {
			if !taken[candidate] {
				return formatIPv4(candidate), bits, true
			}
			if candidate == pool.IPLast {
				break // avoid uint32 wraparound if IPLast == 0xffffffff
			}
		}
	}
	return "", 0, false
}

// netmaskBitsForRoute returns the netmask bits of the route a pool is
// bound to, defaulting to a /32 if no matching route is found (an
// address with no discoverable prefix is still usable, just without a
// derived subnet).
func netmaskBitsForRoute(n *network, routeIP string) int {
	for _, r := range n.routes {
		if r.IP == routeIP && r.IPVersion == 4 {
			return r.NetmaskBits
		}
	}
	return 32
}

func parseIPv4(s string) (uint32, bool) {
	var a, b, c, d uint32
	if _, err := fmt.Sscanf(s, "%d.%d.%d.%d", &a, &b, &c, &d); err != nil {
		return 0, false
	}
	if a > 255 || b > 255 || c > 255 || d > 255 {
		return 0, false
	}
	return a<<24 | b<<16 | c<<8 | d, true
}

func formatIPv4(u uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", u>>24&0xff, u>>16&0xff, u>>8&0xff, u&0xff)
}
