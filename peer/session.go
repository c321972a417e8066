// Package peer tracks per-peer session state: the cached shared
// secret used to armor and dearmor packets, last-send/last-receive
// timestamps, candidate path preference, and WHOIS bookkeeping for
// peers whose identity isn't yet known.
package peer

import (
	"sync"
	"time"

	"github.com/meshcore/engine/address"
	"github.com/meshcore/engine/logger"
	"github.com/meshcore/engine/packet"
	"github.com/meshcore/engine/wirebuf"
)

const registryShards = 32

// Session holds everything needed to exchange packets with one remote
// node once its identity is known.
type Session struct {
	mu sync.Mutex

	addr      address.Address
	identity  address.Identity
	shared    [32]byte
	hasShared bool

	lastSend    time.Time
	lastReceive time.Time

	paths *PathSet
	logf  logger.Logf // set by Registry.Establish; rate-limited across all sessions
}

// Identity returns the peer's identity.
func (s *Session) Identity() address.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// SharedSecret returns the cached Curve25519 shared secret with self,
// computing and caching it on first use. self must be the local
// identity, holding a private key.
func (s *Session) SharedSecret(self address.Identity) ([32]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasShared {
		return s.shared, nil
	}
	ss, err := self.SharedSecret(s.identity)
	if err != nil {
		return [32]byte{}, err
	}
	s.shared = ss
	s.hasShared = true
	return s.shared, nil
}

// Open dearmors and decodes a packet just received from this peer,
// decompressing it if the wire flagged it as compressed, using the
// shared secret cached (or computed and cached) against self.
func (s *Session) Open(self address.Identity, buf *wirebuf.Buffer) (packet.Decoded, error) {
	shared, err := s.SharedSecret(self)
	if err != nil {
		return packet.Decoded{}, err
	}
	d, err := packet.Open(buf, &shared)
	if err != nil && s.logf != nil {
		s.logf("peer: dropped packet from %s: %v", s.addr, err)
	}
	return d, err
}

// NoteSend records that a packet was just sent to this peer.
func (s *Session) NoteSend(at time.Time) {
	s.mu.Lock()
	s.lastSend = at
	s.mu.Unlock()
}

// NoteReceive records that a packet was just received from this peer.
func (s *Session) NoteReceive(at time.Time) {
	s.mu.Lock()
	s.lastReceive = at
	s.mu.Unlock()
}

// LastSend and LastReceive report the most recent activity times.
func (s *Session) LastSend() time.Time    { s.mu.Lock(); defer s.mu.Unlock(); return s.lastSend }
func (s *Session) LastReceive() time.Time { s.mu.Lock(); defer s.mu.Unlock(); return s.lastReceive }

// Paths returns the peer's candidate path set.
func (s *Session) Paths() *PathSet {
	return s.paths
}
