package controller

import (
	"fmt"
	"sync"
	"time"

	"github.com/meshcore/engine/address"
	"github.com/meshcore/engine/com"
	"github.com/meshcore/engine/dict"
	"github.com/meshcore/engine/internal/syncs"
	"github.com/meshcore/engine/logger"
	"github.com/meshcore/engine/netconf"
)

const networkShards = 32

// network bundles one network's record and everything hanging off it
// under a single mutex, so a mutation can bump Revision exactly once
// while touching several related tables atomically.
type network struct {
	mu sync.Mutex

	rec         NetworkRecord
	members     map[address.Address]*MemberRecord
	rules       []RuleRecord
	routes      []RouteRecord
	pools       []PoolRecord
	assignments []AssignmentRecord
	relays      []RelayRecord
	gateways    []GatewayRecord
}

// Clock returns the current time in milliseconds since epoch. Tests
// substitute a deterministic one.
type Clock func() uint64

// Controller is the network controller state machine: an in-memory
// store of Network/Member/Node/Rule/Route/Pool/Assignment/Relay/Gateway
// records, plus the operations spec section 4.3 defines over them.
//
// Persistence is out of scope: Controller's tables are the store.
// A durable-backing implementation would wrap Controller's mutation
// entry points to journal each change before committing.
type Controller struct {
	self address.Identity

	// identities enforces first-come-first-claim address->identity
	// binding; nodeMeta holds the LastAt/LastSeen/FirstSeen sighting
	// bookkeeping identities doesn't carry.
	identities *address.Store
	nodeMeta   *syncs.ShardedMap[address.Address, *nodeMetaSlot]
	networks   *syncs.ShardedMap[uint64, *network]

	now Clock

	logf logger.Logf
	// rejectLogf rate-limits logging of rejected identity claims, since
	// a node repeatedly presenting the wrong key for an address already
	// on file is an attacker-controlled event stream.
	rejectLogf logger.Logf
}

// nodeMetaSlot guards a node's sighting bookkeeping with its own mutex
// so it doesn't contend with unrelated nodes.
type nodeMetaSlot struct {
	mu        sync.Mutex
	lastAt    string
	lastSeen  uint64
	firstSeen uint64
}

// New returns an empty Controller that signs its replies as self and
// logs through logf. self must carry a private key. A nil logf
// discards everything.
func New(self address.Identity, now Clock, logf logger.Logf) *Controller {
	if !self.HasPrivate() {
		panic("controller: self identity has no private key")
	}
	if logf == nil {
		logf = logger.Discard
	}
	return &Controller{
		self:       self,
		identities: address.NewStore(),
		nodeMeta: syncs.NewShardedMap[address.Address, *nodeMetaSlot](networkShards, func(a address.Address) int {
			return int(a % networkShards)
		}),
		networks: syncs.NewShardedMap[uint64, *network](networkShards, func(id uint64) int {
			return int(id % networkShards)
		}),
		now:        now,
		logf:       logf,
		rejectLogf: logger.RateLimitedFn(logf, 10*time.Second, 3, 64),
	}
}

// upsertNode records sightings of a node, rejecting a differing
// identity for an address already bound (first-come-first-claim).
func (c *Controller) upsertNode(from string, id address.Identity, atMillis uint64) Result {
	if ok := c.identities.Upsert(id); !ok {
		c.rejectLogf("controller: rejected identity claim for %s from %s: address already bound to a different key", id.Address(), from)
		return ResultAccessDenied
	}
	c.nodeMeta.Mutate(id.Address(), func(old *nodeMetaSlot, existed bool) (*nodeMetaSlot, bool) {
		if existed {
			old.mu.Lock()
			old.lastAt = from
			old.lastSeen = atMillis
			old.mu.Unlock()
			return old, true
		}
		return &nodeMetaSlot{lastAt: from, lastSeen: atMillis, firstSeen: atMillis}, true
	})
	return ResultOK
}

func (c *Controller) getOrCreateNetwork(networkID uint64) *network {
	n, _ := c.createNetworkIfAbsent(networkID)
	return n
}

// createNetworkIfAbsent atomically creates a network record for id if none
// exists yet, reporting whether this call is the one that created it. The
// existence check and the insert happen inside a single ShardedMap.Mutate
// call so two concurrent callers racing on the same id can never both
// believe they created it.
func (c *Controller) createNetworkIfAbsent(networkID uint64) (n *network, created bool) {
	var mine *network
	delta := c.networks.Mutate(networkID, func(old *network, existed bool) (*network, bool) {
		if existed {
			return old, true
		}
		mine = &network{
			rec:     NetworkRecord{ID: networkID, CreationTime: c.now()},
			members: make(map[address.Address]*MemberRecord),
		}
		return mine, true
	})
	if delta == 1 {
		return mine, true
	}
	got, _ := c.networks.GetOk(networkID)
	return got, false
}

// DoNetworkConfigRequest implements the NETWORK_CONFIG_REQUEST handler:
// validate the requester's standing, build a signed config, or report
// why one can't be issued.
func (c *Controller) DoNetworkConfigRequest(fromAddr string, requester address.Identity, networkID uint64, haveRevision uint64) (Result, *dict.Dictionary) {
	if !c.self.HasPrivate() || c.self.Address() != address.Address(networkID>>24) {
		return ResultInternalServerError, nil
	}

	now := c.now()
	if res := c.upsertNode(fromAddr, requester, now); res != ResultOK {
		return res, nil
	}

	n, ok := c.networks.GetOk(networkID)
	if !ok {
		return ResultObjectNotFound, nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	m, existed := n.members[requester.Address()]
	if !existed {
		m = &MemberRecord{
			NetworkID:  networkID,
			NodeID:     requester.Address(),
			Authorized: !n.rec.Private,
		}
		n.members[requester.Address()] = m
	}
	if !m.Authorized {
		return ResultAccessDenied, nil
	}

	if haveRevision == n.rec.Revision {
		return ResultOKButNotNewer, nil
	}

	in := netconf.BuildInput{
		NetworkID:            networkID,
		IssuedTo:             requester.Address(),
		Timestamp:            now,
		Revision:             n.rec.Revision,
		Private:              n.rec.Private,
		Name:                 n.rec.Name,
		EnableBroadcast:      n.rec.EnableBroadcast,
		AllowPassiveBridging: n.rec.AllowPassiveBridging,
		MulticastLimit:       n.rec.MulticastLimit,
	}

	for _, r := range n.rules {
		if r.Action == ActionAccept && r.EtherType != nil {
			in.AcceptEtherTypes = append(in.AcceptEtherTypes, *r.EtherType)
		}
	}
	for _, mem := range n.members {
		if mem.ActiveBridge {
			in.ActiveBridges = append(in.ActiveBridges, mem.NodeID)
		}
	}
	for _, r := range n.relays {
		in.Relays = append(in.Relays, netconf.Relay{Node: r.NodeID, PhyAddress: r.PhyAddress})
	}
	for _, g := range n.gateways {
		in.Gateways = append(in.Gateways, netconf.Gateway{IP: g.IP, Metric: g.Metric})
	}
	for _, a := range n.assignments {
		if a.NodeID == requester.Address() && a.IPVersion == 4 {
			in.IPv4Assignments = append(in.IPv4Assignments, fmt.Sprintf("%s/%d", a.IP, a.NetmaskBits))
		}
	}

	if ip, bits, ok := allocateIPv4(n, requester.Address()); ok {
		n.assignments = append(n.assignments, AssignmentRecord{
			NodeID: requester.Address(), IP: ip, NetmaskBits: bits, IPVersion: 4,
		})
		in.IPv4Assignments = append(in.IPv4Assignments, fmt.Sprintf("%s/%d", ip, bits))
	}

	if n.rec.Private {
		cert := com.New(networkID, n.rec.Revision, requester.Address())
		if err := cert.Sign(c.self); err != nil {
			return ResultInternalServerError, nil
		}
		in.COM = cert
	}

	d, err := netconf.Build(in, c.self)
	if err != nil {
		return ResultInternalServerError, nil
	}
	return ResultOK, d
}
