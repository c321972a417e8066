// Package packet implements the wire protocol engine: the fixed binary
// packet header, cipher-suite framing (armor/dearmor), payload
// compression, and fragmentation/reassembly for a bounded path MTU.
//
// All multi-byte integers on the wire are big-endian; the one exception,
// noted at the call site, is the little-endian length field folded into
// the armor key-mangling step.
package packet

import "github.com/meshcore/engine/address"

// HeaderSize is the size in bytes of the top-level packet header,
// before the verb byte and its payload: IV(8) + dest(5) + src(5) +
// flags(1) + MAC(8).
const HeaderSize = 27

// MinSize is the smallest a well-formed packet can be: header plus verb
// byte.
const MinSize = HeaderSize + 1

// PayloadOffset is the offset of the verb payload, immediately after the
// verb byte itself. Compression operates on bytes from this offset
// onward; the verb byte (carrying the compressed flag) is never
// compressed, only encrypted along with the payload.
const PayloadOffset = HeaderSize + 1

// Header field offsets, all big-endian.
const (
	offIV    = 0  // 8 bytes: packet id / IV
	offDest  = 8  // 5 bytes
	offSrc   = 13 // 5 bytes
	offFlags = 18 // 1 byte: FFCCCHHH
	offMAC   = 19 // 8 bytes
	offVerb  = 27 // 1 byte: verb + compressed flag
)

// Cipher selector values, packed into bits 3..5 of the flags byte.
type Cipher uint8

const (
	// CipherNone transports the payload unencrypted; MAC still covers
	// it. The only verb ever sent under CipherNone is HELLO, which
	// itself carries a public key and has nothing to hide.
	CipherNone Cipher = 0
	// CipherSalsa2012Poly1305 is the standard authenticated encryption
	// suite: Salsa20/12 payload encryption, Poly1305 MAC.
	CipherSalsa2012Poly1305 Cipher = 1
	// CipherEphemeral selects a session negotiated via an ephemeral
	// handshake; out of scope for this module beyond framing it.
	CipherEphemeral Cipher = 7
)

// Valid reports whether c is one of the defined cipher selectors.
func (c Cipher) Valid() bool {
	switch c {
	case CipherNone, CipherSalsa2012Poly1305, CipherEphemeral:
		return true
	default:
		return false
	}
}

// Outer flag bits, in the high two bits of the flags byte.
const (
	flagEncryptedDeprecated = 1 << 7
	flagFragmented          = 1 << 6
	flagCipherMask          = 0x38 // bits 3..5
	flagCipherShift         = 3
	flagHopMask             = 0x07 // bits 0..2
	maxHop                  = 7
)

// Verb is the 5-bit opcode selecting a packet's meaning, carried in the
// low 5 bits of the post-envelope verb byte.
type Verb uint8

const (
	VerbNop                        Verb = 0
	VerbHello                      Verb = 1
	VerbError                      Verb = 2
	VerbOK                         Verb = 3
	VerbWhois                      Verb = 4
	VerbRendezvous                 Verb = 5
	VerbFrame                      Verb = 6
	VerbExtFrame                   Verb = 7
	VerbMulticastLike              Verb = 9
	VerbNetworkMembershipCert      Verb = 10
	VerbNetworkConfigRequest       Verb = 11
	VerbNetworkConfigRefresh       Verb = 12
	VerbMulticastGather            Verb = 13
	VerbMulticastFrame             Verb = 14
	VerbCircuitTest                Verb = 16
)

const verbCompressedFlag = 1 << 7
const verbMask = 0x1f

// ErrorCode is a wire-level error code carried in an ERROR verb payload.
type ErrorCode uint8

const (
	ErrorNone                       ErrorCode = 0
	ErrorInvalidRequest             ErrorCode = 1
	ErrorBadProtocolVersion         ErrorCode = 2
	ErrorObjNotFound                ErrorCode = 3
	ErrorIdentityCollision          ErrorCode = 4
	ErrorUnsupportedOperation       ErrorCode = 5
	ErrorNeedMembershipCertificate  ErrorCode = 6
	ErrorNetworkAccessDenied        ErrorCode = 7
	ErrorUnwantedMulticast          ErrorCode = 8
)

// Header is a decoded view of a packet's fixed 27-byte header.
type Header struct {
	IV    uint64
	Dest  address.Address
	Src   address.Address
	Flags byte
}

// Cipher returns the cipher selector encoded in the flags byte.
func (h Header) Cipher() Cipher {
	return Cipher((h.Flags & flagCipherMask) >> flagCipherShift)
}

// Hops returns the current hop count encoded in the flags byte.
func (h Header) Hops() int {
	return int(h.Flags & flagHopMask)
}

// Fragmented reports whether the fragmented bit is set, meaning this is
// fragment 0 of a multi-fragment packet.
func (h Header) Fragmented() bool {
	return h.Flags&flagFragmented != 0
}
