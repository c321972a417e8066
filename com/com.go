// Package com implements the Certificate of Membership: a signed set of
// qualifier triples that two peers compare to decide whether they may
// exchange frames on a private network.
package com

import (
	"encoding/binary"
	"errors"
	"sort"

	"github.com/meshcore/engine/address"
)

// Standard qualifier ids. The controller always issues these three; a
// certificate may carry additional application-defined ids, though this
// module has none to define.
const (
	QualifierRevision  = 0
	QualifierNetworkID = 1
	QualifierIssuedTo  = 2
)

// RevisionMaxDelta is the default tolerance on the revision qualifier: a
// peer up to this many revisions behind still agrees.
const RevisionMaxDelta = 2

// Qualifier is one (id, value, max-delta) triple.
type Qualifier struct {
	ID       uint64
	Value    uint64
	MaxDelta uint64
}

// COM is a certificate of membership: an ordered set of qualifiers plus
// a detached signature over their serialized form.
type COM struct {
	qualifiers []Qualifier
	signer     address.Address
	signature  []byte
}

// ErrUnsigned is returned by Verify when the certificate has no
// signature attached.
var ErrUnsigned = errors.New("com: certificate has no signature")

// New builds an unsigned certificate for a network membership: the
// standard revision/network-id/issued-to qualifiers, in that order.
func New(networkID uint64, revision uint64, issuedTo address.Address) *COM {
	return &COM{
		qualifiers: []Qualifier{
			{ID: QualifierRevision, Value: revision, MaxDelta: RevisionMaxDelta},
			{ID: QualifierNetworkID, Value: networkID, MaxDelta: 0},
			{ID: QualifierIssuedTo, Value: uint64(issuedTo), MaxDelta: 0},
		},
	}
}

// AddQualifier appends a non-standard qualifier. Qualifiers must be
// added before Sign.
func (c *COM) AddQualifier(q Qualifier) {
	c.qualifiers = append(c.qualifiers, q)
}

// Qualifiers returns the certificate's qualifiers in serialization
// order.
func (c *COM) Qualifiers() []Qualifier {
	out := make([]Qualifier, len(c.qualifiers))
	copy(out, c.qualifiers)
	return out
}

// value returns a qualifier's (value, max-delta, ok) for the given id.
func (c *COM) value(id uint64) (value, maxDelta uint64, ok bool) {
	for _, q := range c.qualifiers {
		if q.ID == id {
			return q.Value, q.MaxDelta, true
		}
	}
	return 0, 0, false
}

// serialize returns the bytes a signature is computed over: each
// qualifier's (id, value, max-delta) as three big-endian uint64s, in
// ascending id order so the signed form doesn't depend on insertion
// order.
func (c *COM) serialize() []byte {
	sorted := make([]Qualifier, len(c.qualifiers))
	copy(sorted, c.qualifiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	buf := make([]byte, 0, len(sorted)*24)
	var tmp [8]byte
	put := func(v uint64) {
		binary.BigEndian.PutUint64(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}
	for _, q := range sorted {
		put(q.ID)
		put(q.Value)
		put(q.MaxDelta)
	}
	return buf
}

// Sign signs the certificate with signingID, which must hold a private
// key.
func (c *COM) Sign(signingID address.Identity) error {
	if !signingID.HasPrivate() {
		return errors.New("com: cannot sign without a private key")
	}
	sig, err := signingID.Sign(c.serialize())
	if err != nil {
		return err
	}
	c.signer = signingID.Address()
	c.signature = sig
	return nil
}

// Verify reports whether the certificate's signature validates against
// signerID's public key and that signerID's address matches the
// certificate's recorded signer.
func (c *COM) Verify(signerID address.Identity) (bool, error) {
	if c.signature == nil {
		return false, ErrUnsigned
	}
	if signerID.Address() != c.signer {
		return false, nil
	}
	return signerID.Verify(c.serialize(), c.signature), nil
}

// Agree reports whether a and b mutually admit each other: for every
// qualifier id present in both, the absolute difference between their
// values must not exceed the smaller of the two max-deltas.
func Agree(a, b *COM) bool {
	for _, qa := range a.qualifiers {
		vb, db, ok := b.value(qa.ID)
		if !ok {
			continue
		}
		delta := qa.MaxDelta
		if db < delta {
			delta = db
		}
		diff := qa.Value - vb
		if qa.Value < vb {
			diff = vb - qa.Value
		}
		if diff > delta {
			return false
		}
	}
	return true
}

// Marshal encodes the certificate as a flat sequence of big-endian
// uint64 triples followed by the signer address and signature, for
// carrying in a wire packet.
func (c *COM) Marshal() []byte {
	body := c.serialize()
	out := make([]byte, 0, 1+len(body)+address.Size+len(c.signature))
	out = append(out, byte(len(c.qualifiers)))
	out = append(out, body...)
	sb := c.signer.Bytes()
	out = append(out, sb[:]...)
	out = append(out, c.signature...)
	return out
}

// Unmarshal decodes a certificate previously produced by Marshal.
func Unmarshal(b []byte) (*COM, error) {
	if len(b) < 1 {
		return nil, errors.New("com: truncated certificate")
	}
	n := int(b[0])
	b = b[1:]
	need := n*24 + address.Size
	if len(b) < need {
		return nil, errors.New("com: truncated certificate")
	}
	c := &COM{qualifiers: make([]Qualifier, 0, n)}
	for i := 0; i < n; i++ {
		off := i * 24
		c.qualifiers = append(c.qualifiers, Qualifier{
			ID:       binary.BigEndian.Uint64(b[off : off+8]),
			Value:    binary.BigEndian.Uint64(b[off+8 : off+16]),
			MaxDelta: binary.BigEndian.Uint64(b[off+16 : off+24]),
		})
	}
	b = b[n*24:]
	addr, err := address.FromBytes(b[:address.Size])
	if err != nil {
		return nil, err
	}
	c.signer = addr
	c.signature = append([]byte(nil), b[address.Size:]...)
	return c, nil
}
