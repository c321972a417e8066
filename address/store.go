package address

import "github.com/meshcore/engine/internal/syncs"

// Store enforces first-come-first-claim binding between a node address
// and its identity: once an address has an identity on file, any later
// sighting of a different identity for that address is rejected.
//
// The zero value is not usable; use NewStore.
type Store struct {
	byAddr *syncs.ShardedMap[Address, Identity]
}

// NewStore returns an empty identity store.
func NewStore() *Store {
	return &Store{
		byAddr: syncs.NewShardedMap[Address, Identity](16, func(a Address) int {
			return int(a % 16)
		}),
	}
}

// Upsert records id for its address. It returns ok=false if a different
// identity is already on file for that address, in which case the store
// is left unchanged.
func (s *Store) Upsert(id Identity) (ok bool) {
	ok = true
	s.byAddr.Mutate(id.addr, func(old Identity, existed bool) (Identity, bool) {
		if existed && !identitiesEqualConstantTime(old, id) {
			ok = false
			return old, true
		}
		return id, true
	})
	return ok
}

// Lookup returns the identity on file for addr, if any.
func (s *Store) Lookup(addr Address) (Identity, bool) {
	return s.byAddr.GetOk(addr)
}
