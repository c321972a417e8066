package peer

import (
	"sync"
	"time"
)

// Path is one candidate network address for reaching a peer.
type Path struct {
	Address      string
	LastActivity time.Time
	Latency      time.Duration
}

// PathSet tracks the candidate paths to a peer and picks the preferred
// one: the lowest-latency path that has seen activity within the
// staleness window, falling back to the most recently active path if
// none have a measured latency.
type PathSet struct {
	mu    sync.Mutex
	paths map[string]*Path
}

// staleAfter bounds how long a path can go quiet before it's excluded
// from latency-based preference, so a fast-but-dead path doesn't win
// over a slower-but-live one.
const staleAfter = 30 * time.Second

// NewPathSet returns an empty PathSet.
func NewPathSet() *PathSet {
	return &PathSet{paths: make(map[string]*Path)}
}

// Update records activity on addr, optionally updating its measured
// latency (a negative latency leaves the previous measurement
// unchanged).
func (ps *PathSet) Update(addr string, at time.Time, latency time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, ok := ps.paths[addr]
	if !ok {
		p = &Path{Address: addr, Latency: -1}
		ps.paths[addr] = p
	}
	p.LastActivity = at
	if latency >= 0 {
		p.Latency = latency
	}
}

// Remove drops a path, e.g. after repeated send failures.
func (ps *PathSet) Remove(addr string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.paths, addr)
}

// Preferred returns the best current path, or ok=false if there are
// none.
func (ps *PathSet) Preferred(now time.Time) (Path, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	var best *Path
	for _, p := range ps.paths {
		if best == nil {
			best = p
			continue
		}
		bestLive := now.Sub(best.LastActivity) < staleAfter
		pLive := now.Sub(p.LastActivity) < staleAfter
		switch {
		case pLive && !bestLive:
			best = p
		case pLive == bestLive && p.Latency >= 0 && (best.Latency < 0 || p.Latency < best.Latency):
			best = p
		case pLive == bestLive && p.Latency < 0 && best.Latency < 0 && p.LastActivity.After(best.LastActivity):
			best = p
		}
	}
	if best == nil {
		return Path{}, false
	}
	return *best, true
}

// All returns a snapshot of every known path.
func (ps *PathSet) All() []Path {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]Path, 0, len(ps.paths))
	for _, p := range ps.paths {
		out = append(out, *p)
	}
	return out
}
