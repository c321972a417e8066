package controller

import (
	"strings"

	"github.com/meshcore/engine/address"
	"github.com/meshcore/engine/ztcrypto"
)

// NetworkUpdate is a merge-patch over NetworkRecord and its dependent
// collections: nil fields/slices are left untouched, non-nil ones
// atomically replace the corresponding table. Field tags match the
// POST body keys the controller's JSON API accepts.
type NetworkUpdate struct {
	Name                 *string `json:"name,omitempty"`
	Private              *bool   `json:"private,omitempty"`
	EnableBroadcast      *bool   `json:"enableBroadcast,omitempty"`
	AllowPassiveBridging *bool   `json:"allowPassiveBridging,omitempty"`
	V4AssignMode         *string `json:"v4AssignMode,omitempty"`
	V6AssignMode         *string `json:"v6AssignMode,omitempty"`
	MulticastLimit       *uint64 `json:"multicastLimit,omitempty"`

	Rules    []RuleRecord    `json:"rules,omitempty"` // replaces n.rules wholesale if non-nil
	Routes   []RouteRecord   `json:"routes,omitempty"`
	Pools    []PoolRecord    `json:"ipAssignmentPools,omitempty"`
	Relays   []RelayRecord   `json:"relays,omitempty"`
	Gateways []GatewayRecord `json:"gateways,omitempty"`
}

// UpsertNetwork creates networkID if absent, applies the given patch,
// and bumps the network's revision exactly once.
func (c *Controller) UpsertNetwork(networkID uint64, u NetworkUpdate) (Result, NetworkRecord) {
	n := c.getOrCreateNetwork(networkID)
	n.mu.Lock()
	defer n.mu.Unlock()

	if u.Name != nil {
		n.rec.Name = *u.Name
	}
	if u.Private != nil {
		n.rec.Private = *u.Private
	}
	if u.EnableBroadcast != nil {
		n.rec.EnableBroadcast = *u.EnableBroadcast
	}
	if u.AllowPassiveBridging != nil {
		n.rec.AllowPassiveBridging = *u.AllowPassiveBridging
	}
	if u.V4AssignMode != nil {
		n.rec.V4AssignMode = *u.V4AssignMode
	}
	if u.V6AssignMode != nil {
		n.rec.V6AssignMode = *u.V6AssignMode
	}
	if u.MulticastLimit != nil {
		n.rec.MulticastLimit = *u.MulticastLimit
	}
	if u.Rules != nil {
		n.rules = u.Rules
	}
	if u.Routes != nil {
		n.routes = u.Routes
	}
	if u.Pools != nil {
		n.pools = u.Pools
	}
	if u.Relays != nil {
		n.relays = u.Relays
	}
	if u.Gateways != nil {
		n.gateways = u.Gateways
	}

	n.rec.Revision++
	return ResultOK, n.rec
}

// MemberUpdate is a merge-patch over a member's mutable fields.
type MemberUpdate struct {
	Authorized   *bool `json:"authorized,omitempty"`
	ActiveBridge *bool `json:"activeBridge,omitempty"`

	// IPAssignments holds "a.b.c.d/bits" or IPv6 "addr/bits" strings; if
	// non-nil it replaces the member's static+allocated assignment rows
	// of both versions wholesale, per the single ipAssignments wire key.
	IPAssignments []string `json:"ipAssignments,omitempty"`
}

// UpsertMember creates (networkID, nodeID) if absent and applies the
// given patch, bumping the network's revision exactly once.
func (c *Controller) UpsertMember(networkID uint64, nodeID address.Address, u MemberUpdate) (Result, MemberRecord) {
	n, ok := c.networks.GetOk(networkID)
	if !ok {
		return ResultObjectNotFound, MemberRecord{}
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	m, existed := n.members[nodeID]
	if !existed {
		m = &MemberRecord{NetworkID: networkID, NodeID: nodeID, Authorized: !n.rec.Private}
		n.members[nodeID] = m
	}
	if u.Authorized != nil {
		m.Authorized = *u.Authorized
	}
	if u.ActiveBridge != nil {
		m.ActiveBridge = *u.ActiveBridge
	}
	if u.IPAssignments != nil {
		kept := n.assignments[:0]
		for _, a := range n.assignments {
			if a.NodeID != nodeID {
				kept = append(kept, a)
			}
		}
		n.assignments = kept
		for _, cidr := range u.IPAssignments {
			ip, bits, version := splitCIDR(cidr)
			n.assignments = append(n.assignments, AssignmentRecord{
				NodeID: nodeID, IP: ip, NetmaskBits: bits, IPVersion: version,
			})
		}
	}

	n.rec.Revision++
	return ResultOK, *m
}

// DeleteMember removes a member and its assignments, cascading, and
// bumps the network's revision.
func (c *Controller) DeleteMember(networkID uint64, nodeID address.Address) Result {
	n, ok := c.networks.GetOk(networkID)
	if !ok {
		return ResultObjectNotFound
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, existed := n.members[nodeID]; !existed {
		return ResultObjectNotFound
	}
	delete(n.members, nodeID)
	kept := n.assignments[:0]
	for _, a := range n.assignments {
		if a.NodeID != nodeID {
			kept = append(kept, a)
		}
	}
	n.assignments = kept
	n.rec.Revision++
	return ResultOK
}

// DeleteNetwork removes a network and every dependent row.
func (c *Controller) DeleteNetwork(networkID uint64) Result {
	if !c.networks.Delete(networkID) {
		return ResultObjectNotFound
	}
	return ResultOK
}

// MintNetwork generates a fresh network id under the controller's own
// address prefix: the high 40 bits equal c.self's address, the low 24
// bits are random, probed for uniqueness against existing networks.
// It retries until the 24-bit suffix space is exhausted. Each candidate
// is claimed with a single atomic createNetworkIfAbsent call, so two
// concurrent mints racing on the same candidate id can't both win it;
// the loser just moves on to the next suffix instead of returning the
// id it lost the race for.
func (c *Controller) MintNetwork() (uint64, Result) {
	const suffixSpace = 1 << 24
	prefix := uint64(c.self.Address()) << 24
	start := uint32(ztcrypto.RandUint64()) % suffixSpace
	for i := uint32(0); i < suffixSpace; i++ {
		suffix := (start + i) % suffixSpace
		id := prefix | uint64(suffix)
		if _, created := c.createNetworkIfAbsent(id); created {
			return id, ResultOK
		}
	}
	return 0, ResultInternalServerError
}

// splitCIDR splits "addr/bits" into its address and prefix length,
// defaulting bits to a whole-address mask if "/bits" is absent, and
// reports the IP version by the presence of a colon.
func splitCIDR(cidr string) (ip string, bits int, version int) {
	version = 4
	if strings.ContainsRune(cidr, ':') {
		version = 6
	}
	defaultBits := 32
	if version == 6 {
		defaultBits = 128
	}
	for i := len(cidr) - 1; i >= 0; i-- {
		if cidr[i] == '/' {
			return cidr[:i], atoiSimple(cidr[i+1:]), version
		}
	}
	return cidr, defaultBits, version
}

func atoiSimple(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return n
		}
		n = n*10 + int(s[i]-'0')
	}
	return n
}
