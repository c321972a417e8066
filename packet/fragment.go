package packet

import (
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/meshcore/engine/address"
	"github.com/meshcore/engine/wirebuf"
)

// FragmentHeaderSize is the size of a non-head fragment's header:
// packet-id(8) + dest(5) + sentinel(1) + total<<4|index(1) + hops(1).
const FragmentHeaderSize = 16

const (
	fragOffPacketID = 0
	fragOffDest     = 8
	fragOffSentinel = 13
	fragOffCounters = 14
	fragOffHops     = 15
)

// MaxFragments is the largest number of pieces (including the head) a
// packet may be split into.
const MaxFragments = 16

var (
	// ErrTooLargeToFragment is returned by Split when a packet needs
	// more than MaxFragments pieces to fit the given MTU.
	ErrTooLargeToFragment = errors.New("packet: too large to fragment for this MTU")
	// ErrReassemblyTimeout names a fragment window expiring with the
	// packet still incomplete. Reassembler does not return it: expired
	// partial state is dropped silently.
	ErrReassemblyTimeout = errors.New("packet: fragment reassembly timed out")
)

// Split divides an armored packet into fragments no larger than mtu.
// If the packet already fits within mtu, it returns a single element
// equal to the packet unchanged (the fragmented bit is not set). The
// first returned fragment, when splitting occurs, is the leading mtu
// bytes of the original packet (its header included), with the
// fragmented bit set; the rest carry FragmentHeaderSize-byte headers.
func Split(buf *wirebuf.Buffer, mtu int) ([][]byte, error) {
	full := buf.Bytes()
	if len(full) <= mtu {
		out := make([]byte, len(full))
		copy(out, full)
		return [][]byte{out}, nil
	}
	if mtu < MinSize {
		return nil, errors.New("packet: mtu too small to carry a header")
	}

	destb := full[offDest : offDest+address.Size]
	iv := full[offIV : offIV+8]

	head := make([]byte, mtu)
	copy(head, full[:mtu])
	head[offFlags] |= flagFragmented

	remaining := full[mtu:]
	tailPayload := mtu - FragmentHeaderSize
	if tailPayload <= 0 {
		return nil, errors.New("packet: mtu too small to carry a fragment payload")
	}
	numTail := (len(remaining) + tailPayload - 1) / tailPayload
	total := 1 + numTail
	if total > MaxFragments {
		return nil, ErrTooLargeToFragment
	}

	frags := make([][]byte, 0, total)
	frags = append(frags, head)
	for i := 0; i < numTail; i++ {
		start := i * tailPayload
		end := start + tailPayload
		if end > len(remaining) {
			end = len(remaining)
		}
		chunk := remaining[start:end]
		frag := make([]byte, FragmentHeaderSize+len(chunk))
		copy(frag[fragOffPacketID:], iv)
		copy(frag[fragOffDest:], destb)
		frag[fragOffSentinel] = address.Reserved
		frag[fragOffCounters] = byte(total<<4) | byte(i+1)
		frag[fragOffHops] = 0
		copy(frag[FragmentHeaderSize:], chunk)
		frags = append(frags, frag)
	}
	return frags, nil
}

// IsFragment reports whether p is a non-head fragment record, i.e. the
// byte at offset 13 (right after a fragment header's destination
// address; the first source-address byte in a full packet) is the
// reserved fragment sentinel.
func IsFragment(p []byte) bool {
	return len(p) > fragOffSentinel && p[fragOffSentinel] == address.Reserved
}

// FragmentPacketID returns the packet id a fragment (head or tail)
// belongs to.
func FragmentPacketID(p []byte) (uint64, error) {
	if len(p) < 8 {
		return 0, errors.New("packet: fragment too short")
	}
	var id uint64
	for _, b := range p[:8] {
		id = id<<8 | uint64(b)
	}
	return id, nil
}

// ParseFragmentCounters extracts the total fragment count and this
// fragment's index from a tail fragment's counters byte.
func ParseFragmentCounters(p []byte) (total, index int, err error) {
	if len(p) <= fragOffCounters {
		return 0, 0, errors.New("packet: fragment too short")
	}
	c := p[fragOffCounters]
	return int(c >> 4), int(c & 0x0f), nil
}

type reassembly struct {
	total int
	parts [MaxFragments][]byte
	have  [MaxFragments]bool
	n     int
}

// Reassembler buffers fragments for in-flight packets and reconstitutes
// the original bytes once every piece has arrived. Each packet id has a
// bounded window: fragments for it are discarded, and the partial state
// dropped, once the window expires with the packet still incomplete.
// There is no retransmission — a dropped fragment means the whole packet
// is lost.
type Reassembler struct {
	cache *ttlcache.Cache[uint64, *reassembly]
}

// NewReassembler returns a Reassembler whose fragment window is window
// long. Callers should call Stop when done to release the background
// eviction goroutine.
func NewReassembler(window time.Duration) *Reassembler {
	cache := ttlcache.New[uint64, *reassembly](
		ttlcache.WithTTL[uint64, *reassembly](window),
	)
	go cache.Start()
	return &Reassembler{cache: cache}
}

// Stop releases the Reassembler's background goroutine.
func (r *Reassembler) Stop() {
	r.cache.Stop()
}

// AddHead adds a head fragment (fragment 0, the truncated original
// packet with the fragmented bit set) to the reassembly window. The head
// fragment carries no fragment count, so the total stays unknown until
// a tail fragment passed to AddTail supplies it.
func (r *Reassembler) AddHead(id uint64, head []byte) (complete []byte, err error) {
	return r.add(id, 0, 0, head)
}

// AddTail adds a non-head fragment (the full wire record, header
// included) to the reassembly window.
func (r *Reassembler) AddTail(id uint64, index, total int, fragment []byte) (complete []byte, err error) {
	if index <= 0 || index >= total || total < 1 || total > MaxFragments {
		return nil, errors.New("packet: invalid fragment index/total")
	}
	if len(fragment) < FragmentHeaderSize {
		return nil, errors.New("packet: fragment shorter than its header")
	}
	return r.add(id, index, total, fragment)
}

func (r *Reassembler) add(id uint64, index, total int, data []byte) ([]byte, error) {
	item := r.cache.Get(id)
	var st *reassembly
	if item != nil {
		st = item.Value()
	} else {
		st = &reassembly{}
	}

	if st.have[index] {
		// Duplicate fragment: idempotent, not an error, but don't
		// double count it.
		r.cache.Set(id, st, ttlcache.DefaultTTL)
		return r.tryComplete(id, st)
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	st.parts[index] = cp
	st.have[index] = true
	st.n++
	if total > 0 {
		st.total = total
	}

	r.cache.Set(id, st, ttlcache.DefaultTTL)
	return r.tryComplete(id, st)
}

func (r *Reassembler) tryComplete(id uint64, st *reassembly) ([]byte, error) {
	if st.total == 0 || st.n < st.total {
		return nil, nil
	}
	for i := 0; i < st.total; i++ {
		if !st.have[i] {
			return nil, nil
		}
	}

	var out []byte
	out = append(out, st.parts[0]...)
	for i := 1; i < st.total; i++ {
		out = append(out, st.parts[i][FragmentHeaderSize:]...)
	}
	// The fragmented bit is a transient wire signal, not part of the
	// packet that was originally armored; clear it before handing the
	// reassembled bytes to Dearmor.
	out[offFlags] &^= flagFragmented

	r.cache.Delete(id)
	return out, nil
}
