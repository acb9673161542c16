package registry

import (
	"fmt"

	"github.com/google/uuid"
)

// FleetRegistry layers a RedisRegistry in front of a MemoryRegistry: Redis
// enforces insert-unique across every process sharing the broker, while the
// local MemoryRegistry is what actually hands back a live *session.Session
// handle to SendMessage/Stop (a RedisRegistry entry survives only as a
// string marker once it has round-tripped through the wire, per redis.go's
// doc comment, so it cannot serve Manager's lookups by itself).
type FleetRegistry struct {
	local    *MemoryRegistry
	fleet    *RedisRegistry
	ownerTag string
}

// NewFleetRegistry wraps local with fleet for cross-process uniqueness.
// Pass a nil fleet to behave exactly like local alone (the single-process
// deployment case). Each FleetRegistry stamps its own claims with a random
// instance ID so an operator inspecting the Redis key can tell which
// process in the fleet currently owns a session key, rather than a bare
// local pointer address that means nothing outside this process.
func NewFleetRegistry(local *MemoryRegistry, fleet *RedisRegistry) *FleetRegistry {
	return &FleetRegistry{local: local, fleet: fleet, ownerTag: uuid.NewString()}
}

// Insert implements Registry. It claims key in the fleet-wide registry
// first; only once that succeeds does it store handle locally, so a
// uniqueness conflict elsewhere in the fleet is visible before any local
// state is created.
func (r *FleetRegistry) Insert(key string, handle any) error {
	if r.fleet != nil {
		if err := r.fleet.Insert(key, fmt.Sprintf("owner=%s", r.ownerTag)); err != nil {
			return err
		}
	}
	if err := r.local.Insert(key, handle); err != nil {
		if r.fleet != nil {
			_ = r.fleet.Delete(key)
		}
		return err
	}
	return nil
}

// Lookup implements Registry, always resolving from the local store since
// it alone holds live handles.
func (r *FleetRegistry) Lookup(key string) (any, error) {
	return r.local.Lookup(key)
}

// Delete implements Registry, removing key from both the local store and
// the fleet-wide claim.
func (r *FleetRegistry) Delete(key string) error {
	if r.fleet != nil {
		_ = r.fleet.Delete(key)
	}
	return r.local.Delete(key)
}

// Keys returns a snapshot of every locally registered session key.
func (r *FleetRegistry) Keys() []string {
	return r.local.Keys()
}
