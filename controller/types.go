// Package controller implements the network controller state machine:
// the relational records describing networks and their members, IPv4
// pool allocation, and the signed network-config replies built from
// them.
package controller

import "github.com/meshcore/engine/address"

// Result is the outcome of a controller operation. Every mutation and
// query returns one of these instead of a bare error, matching the
// wire protocol's own coarse-grained failure reporting: a controller
// failure is fatal to the request, never to the process.
type Result int

const (
	ResultOK Result = iota
	// ResultOKButNotNewer means the request succeeded but the caller
	// already had the current revision; no body is produced.
	ResultOKButNotNewer
	ResultObjectNotFound
	ResultAccessDenied
	ResultInternalServerError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultOKButNotNewer:
		return "OK_BUT_NOT_NEWER"
	case ResultObjectNotFound:
		return "OBJECT_NOT_FOUND"
	case ResultAccessDenied:
		return "ACCESS_DENIED"
	case ResultInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	default:
		return "UNKNOWN"
	}
}

// NetworkRecord is a network's configuration, independent of any one
// member.
type NetworkRecord struct {
	ID                   uint64 `json:"id"`
	Name                 string `json:"name"`
	Private              bool   `json:"private"`
	EnableBroadcast      bool   `json:"enableBroadcast"`
	AllowPassiveBridging bool   `json:"allowPassiveBridging"`
	// V4AssignMode and V6AssignMode are "none" or "zt" in the source
	// schema. This module stores and round-trips both but doesn't gate
	// allocateIPv4 on V4AssignMode's value, and never auto-allocates
	// IPv6 regardless of V6AssignMode, matching the source's stubbed-out
	// IPv6 auto-assignment path.
	V4AssignMode   string `json:"v4AssignMode"`
	V6AssignMode   string `json:"v6AssignMode"`
	MulticastLimit uint64 `json:"multicastLimit"`
	CreationTime   uint64 `json:"creationTime"`
	Revision       uint64 `json:"revision"`
}

// MemberRecord is one node's membership state in one network.
type MemberRecord struct {
	NetworkID    uint64          `json:"networkId"`
	NodeID       address.Address `json:"nodeId"`
	Authorized   bool            `json:"authorized"`
	ActiveBridge bool            `json:"activeBridge"`
}

// NodeRecord is a node's global (network-independent) identity
// bookkeeping.
type NodeRecord struct {
	ID        address.Address
	Identity  address.Identity
	LastAt    string
	LastSeen  uint64
	FirstSeen uint64
}

// RuleAction is the action a traffic rule applies to matching frames.
type RuleAction string

const (
	ActionAccept RuleAction = "accept"
	ActionDrop   RuleAction = "drop"
)

// RuleRecord is one ordered traffic rule. EtherType is nil for rules
// that don't match on ethertype.
type RuleRecord struct {
	RuleNo    int        `json:"ruleNo"`
	EtherType *uint16    `json:"etherType,omitempty"`
	Action    RuleAction `json:"action"`
}

// RouteRecord is a network route, optionally scoped to a specific
// node (nil NodeID means it applies network-wide).
type RouteRecord struct {
	NodeID      *address.Address `json:"nodeId,omitempty"`
	IP          string           `json:"ip"`
	NetmaskBits int              `json:"netmaskBits"`
	IPVersion   int              `json:"ipVersion"`
}

// PoolRecord is an IPv4 auto-assignment pool: a contiguous inclusive
// candidate range bound to a route.
type PoolRecord struct {
	RouteIP string `json:"routeIp"`
	IPFirst uint32 `json:"ipFirst"`
	IPLast  uint32 `json:"ipLast"`
}

// AssignmentRecord is one address bound to one node. IPVersion is 4 or
// 6; auto-allocation (see allocateIPv4) only ever produces IPVersion
// 4 rows, but a static IPv6 row can be written directly through
// MemberUpdate.IPAssignments.
type AssignmentRecord struct {
	NodeID      address.Address `json:"nodeId"`
	IP          string          `json:"ip"`
	NetmaskBits int             `json:"netmaskBits"`
	IPVersion   int             `json:"ipVersion"`
}

// RelayRecord is a fixed relay advertised to all members.
type RelayRecord struct {
	NodeID     address.Address `json:"nodeId"`
	PhyAddress string          `json:"phyAddress"`
}

// GatewayRecord is a default route advertised to all members.
type GatewayRecord struct {
	IP        string `json:"ip"`
	IPVersion int    `json:"ipVersion"`
	Metric    int    `json:"metric"`
}
