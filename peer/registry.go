package peer

import (
	"time"

	"github.com/meshcore/engine/address"
	"github.com/meshcore/engine/internal/syncs"
	"github.com/meshcore/engine/logger"
)

// Registry owns every Session this process holds, keyed by peer
// address, plus the set of addresses currently awaiting a WHOIS
// response.
type Registry struct {
	sessions *syncs.ShardedMap[address.Address, *Session]
	whois    *syncs.ShardedMap[address.Address, time.Time] // addr -> last WHOIS sent

	logf logger.Logf
	// dropLogf rate-limits the noisy per-packet drop logging every
	// Session shares, so a flood of malformed packets from one or many
	// peers can't drown out everything else logf writes.
	dropLogf logger.Logf
}

// NewRegistry returns an empty Registry that logs through logf. A nil
// logf discards everything.
func NewRegistry(logf logger.Logf) *Registry {
	if logf == nil {
		logf = logger.Discard
	}
	shard := func(a address.Address) int { return int(a % registryShards) }
	return &Registry{
		sessions: syncs.NewShardedMap[address.Address, *Session](registryShards, shard),
		whois:    syncs.NewShardedMap[address.Address, time.Time](registryShards, shard),
		logf:     logf,
		dropLogf: logger.RateLimitedFn(logf, 10*time.Second, 3, 64),
	}
}

// Get returns the session for addr, if one has been established.
func (r *Registry) Get(addr address.Address) (*Session, bool) {
	return r.sessions.GetOk(addr)
}

// Establish creates or returns the session for a now-known identity,
// clearing any pending WHOIS for its address.
func (r *Registry) Establish(id address.Identity) *Session {
	var s *Session
	r.sessions.Mutate(id.Address(), func(old *Session, existed bool) (*Session, bool) {
		if existed {
			old.mu.Lock()
			old.identity = id
			old.mu.Unlock()
			s = old
			return old, true
		}
		s = &Session{addr: id.Address(), identity: id, paths: NewPathSet(), logf: r.dropLogf}
		return s, true
	})
	r.whois.Delete(id.Address())
	return s
}

// NeedWhois reports whether addr has no established session and no
// WHOIS request outstanding within the retry interval; if so, it
// records that a request is now outstanding as of now.
func (r *Registry) NeedWhois(addr address.Address, now time.Time, retryInterval time.Duration) bool {
	if r.sessions.Contains(addr) {
		return false
	}
	need := false
	r.whois.Mutate(addr, func(last time.Time, existed bool) (time.Time, bool) {
		if !existed || now.Sub(last) >= retryInterval {
			need = true
			return now, true
		}
		return last, true
	})
	return need
}

// ForgetWhois clears any outstanding WHOIS bookkeeping for addr, e.g.
// after giving up on an unreachable peer.
func (r *Registry) ForgetWhois(addr address.Address) {
	r.whois.Delete(addr)
}

// Len returns the number of established sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}
