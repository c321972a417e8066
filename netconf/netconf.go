// Package netconf builds the signed Dictionary a controller sends in
// reply to a network configuration request, projecting a (network,
// member) pair's state into the wire key set.
package netconf

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meshcore/engine/address"
	"github.com/meshcore/engine/com"
	"github.com/meshcore/engine/dict"
)

// Relay is a fixed relay node advertised to members of a network.
type Relay struct {
	Node       address.Address
	PhyAddress string
}

// Gateway is a default route advertised to members of a network.
type Gateway struct {
	IP     string
	Metric int
}

// BuildInput is the projection of controller state needed to build a
// network config Dictionary for one (network, member) pair. It carries
// plain values rather than controller record types so this package has
// no dependency on the controller's storage layer.
type BuildInput struct {
	NetworkID  uint64
	IssuedTo   address.Address
	Timestamp  uint64 // ms since epoch
	Revision   uint64
	Private    bool
	Name       string

	EnableBroadcast      bool
	AllowPassiveBridging bool
	MulticastLimit       uint64 // 0 omits the key

	// AcceptEtherTypes lists the ethertypes of rules whose action is
	// "accept"; Build sorts, deduplicates, and hex-encodes them.
	AcceptEtherTypes []uint16

	ActiveBridges []address.Address
	Relays        []Relay
	Gateways      []Gateway

	// IPv4Assignments holds "a.b.c.d/bits" strings for this member's
	// static and pool-allocated IPv4 addresses.
	IPv4Assignments []string

	// COM, if non-nil, is attached under the "com" key. The builder
	// requires it be set whenever Private is true.
	COM *com.COM
}

// Build projects in into a Dictionary using the wire key set and signs
// it with signingID, which must hold a private key.
func Build(in BuildInput, signingID address.Identity) (*dict.Dictionary, error) {
	if in.Private && in.COM == nil {
		return nil, fmt.Errorf("netconf: private network requires a certificate of membership")
	}

	d := dict.New()
	d.SetHex("ts", in.Timestamp)
	d.SetHex("r", in.Revision)
	d.Set("nwid", fmt.Sprintf("%016x", in.NetworkID))
	d.Set("id", fmt.Sprintf("%010x", uint64(in.IssuedTo)))
	d.SetBool("p", in.Private)
	d.Set("n", in.Name)
	d.SetBool("eb", in.EnableBroadcast)
	d.SetBool("pb", in.AllowPassiveBridging)

	if len(in.AcceptEtherTypes) > 0 {
		seen := make(map[uint16]bool, len(in.AcceptEtherTypes))
		uniq := make([]uint16, 0, len(in.AcceptEtherTypes))
		for _, et := range in.AcceptEtherTypes {
			if !seen[et] {
				seen[et] = true
				uniq = append(uniq, et)
			}
		}
		sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })
		parts := make([]string, len(uniq))
		for i, et := range uniq {
			parts[i] = fmt.Sprintf("%04x", et)
		}
		d.Set("et", strings.Join(parts, ","))
	}

	if in.MulticastLimit != 0 {
		d.SetHex("ml", in.MulticastLimit)
	}

	if len(in.ActiveBridges) > 0 {
		parts := make([]string, len(in.ActiveBridges))
		for i, a := range in.ActiveBridges {
			parts[i] = a.String()
		}
		d.Set("ab", strings.Join(parts, ","))
	}

	if len(in.Relays) > 0 {
		parts := make([]string, len(in.Relays))
		for i, r := range in.Relays {
			parts[i] = r.Node.String() + ";" + r.PhyAddress
		}
		d.Set("rl", strings.Join(parts, ","))
	}

	if len(in.Gateways) > 0 {
		parts := make([]string, len(in.Gateways))
		for i, g := range in.Gateways {
			parts[i] = fmt.Sprintf("%s/%d", g.IP, g.Metric)
		}
		d.Set("gw", strings.Join(parts, ","))
	}

	if len(in.IPv4Assignments) > 0 {
		d.Set("v4s", strings.Join(in.IPv4Assignments, ","))
	}

	if in.Private {
		d.Set("com", string(in.COM.Marshal()))
	}

	if err := d.Sign(signingID, in.Timestamp); err != nil {
		return nil, err
	}
	return d, nil
}
