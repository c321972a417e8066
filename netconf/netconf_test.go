package netconf

import (
	"strings"
	"testing"

	"github.com/meshcore/engine/address"
	"github.com/meshcore/engine/com"
)

func TestBuildPublicNetworkKeySet(t *testing.T) {
	controller, err := address.Generate()
	if err != nil {
		t.Fatal(err)
	}
	member := address.Address(0x1234567890)

	d, err := Build(BuildInput{
		NetworkID:            0x0123456789abcdef,
		IssuedTo:             member,
		Timestamp:            1700000000000,
		Revision:             3,
		Private:              false,
		Name:                 "office",
		EnableBroadcast:      true,
		AllowPassiveBridging: false,
		AcceptEtherTypes:     []uint16{0x0800, 0x0806, 0x0800},
		IPv4Assignments:      []string{"10.0.0.5/24"},
	}, controller)
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"ts", "r", "nwid", "id", "p", "n", "eb", "pb", "et", "v4s"} {
		if _, ok := d.Get(key); !ok {
			t.Fatalf("missing key %q", key)
		}
	}
	if et, _ := d.Get("et"); et != "0800,0806" {
		t.Fatalf("et = %q, want deduplicated sorted hex list", et)
	}
	if !d.Verify(controller) {
		t.Fatal("Verify rejected the signature Build just produced")
	}
}

func TestBuildPrivateNetworkRequiresCOM(t *testing.T) {
	controller, err := address.Generate()
	if err != nil {
		t.Fatal(err)
	}
	_, err = Build(BuildInput{
		NetworkID: 1,
		IssuedTo:  address.Address(1),
		Timestamp: 1,
		Private:   true,
	}, controller)
	if err == nil {
		t.Fatal("expected error building a private network config with no COM")
	}
}

func TestBuildPrivateNetworkAttachesCOM(t *testing.T) {
	controller, err := address.Generate()
	if err != nil {
		t.Fatal(err)
	}
	member := address.Address(1)
	membership := com.New(1, 0, member)
	if err := membership.Sign(controller); err != nil {
		t.Fatal(err)
	}

	d, err := Build(BuildInput{
		NetworkID: 1,
		IssuedTo:  member,
		Timestamp: 1,
		Private:   true,
		COM:       membership,
	}, controller)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := d.Get("com")
	if !ok || v == "" {
		t.Fatal("expected non-empty com key on a private network config")
	}
}

func TestBuildOmitsEmptyOptionalKeys(t *testing.T) {
	controller, err := address.Generate()
	if err != nil {
		t.Fatal(err)
	}
	d, err := Build(BuildInput{
		NetworkID: 1,
		IssuedTo:  address.Address(1),
		Timestamp: 1,
	}, controller)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"et", "ml", "ab", "rl", "gw", "v4s", "com"} {
		if _, ok := d.Get(key); ok {
			t.Fatalf("unexpected key %q present with no data for it", key)
		}
	}
}

func TestBuildJoinsRelaysAndGateways(t *testing.T) {
	controller, err := address.Generate()
	if err != nil {
		t.Fatal(err)
	}
	d, err := Build(BuildInput{
		NetworkID: 1,
		IssuedTo:  address.Address(1),
		Timestamp: 1,
		Relays: []Relay{
			{Node: address.Address(2), PhyAddress: "1.2.3.4/9993"},
		},
		Gateways: []Gateway{
			{IP: "10.0.0.1", Metric: 0},
		},
	}, controller)
	if err != nil {
		t.Fatal(err)
	}
	rl, _ := d.Get("rl")
	if !strings.Contains(rl, "1.2.3.4/9993") {
		t.Fatalf("rl = %q, missing relay phy address", rl)
	}
	gw, _ := d.Get("gw")
	if gw != "10.0.0.1/0" {
		t.Fatalf("gw = %q, want %q", gw, "10.0.0.1/0")
	}
}
