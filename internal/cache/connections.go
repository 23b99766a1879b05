package cache

import "github.com/frkn-dev/pony/internal/model"

// PutConnection inserts or replaces a connection by id.
func (c *Cache) PutConnection(conn model.Connection) {
	c.connections.Store(conn.ID, conn)
}

// GetConnection looks up a connection by id.
func (c *Cache) GetConnection(id string) (model.Connection, bool) {
	return c.connections.Load(id)
}

// DeleteConnection removes a connection from the cache entirely. Soft-delete
// (is_deleted=true, kept in cache) is expressed by PutConnection with the
// updated Connection, not by this method; callers use DeleteConnection only
// when dropping an entry that no longer belongs in this process's view at
// all (e.g. the sidecar evicting a non-Hysteria2 connection).
func (c *Cache) DeleteConnection(id string) {
	c.connections.Delete(id)
}

// RangeConnections iterates cached connections in no particular order.
func (c *Cache) RangeConnections(fn func(model.Connection) bool) {
	c.connections.Range(func(_ string, conn model.Connection) bool {
		return fn(conn)
	})
}

// ConnectionCount reports the number of cached connections.
func (c *Cache) ConnectionCount() int {
	return c.connections.Size()
}

// WireguardLoad returns, for every node with at least one non-deleted
// WireGuard connection in env, the count of such connections keyed by
// node_id. Used to rank least-loaded placement candidates (§4.1.3). Callers
// needing a point-in-time-consistent count across a placement decision
// should run this inside Cache.View or Cache.Do.
func (c *Cache) WireguardLoad(env string) map[string]int {
	loads := make(map[string]int)
	c.RangeConnections(func(conn model.Connection) bool {
		if conn.Env != env || conn.IsDeleted {
			return true
		}
		wg, ok := conn.WireguardParam()
		if !ok {
			return true
		}
		loads[wg.NodeID]++
		return true
	})
	return loads
}

// WireguardAddressesForNode returns the addresses of every non-deleted
// WireGuard connection bound to nodeID, for address allocation and the
// pairwise-distinct-address invariant (§3, §8).
func (c *Cache) WireguardAddressesForNode(nodeID string) []model.WgParam {
	var out []model.WgParam
	c.RangeConnections(func(conn model.Connection) bool {
		if conn.IsDeleted {
			return true
		}
		wg, ok := conn.WireguardParam()
		if ok && wg.NodeID == nodeID {
			out = append(out, wg.Param)
		}
		return true
	})
	return out
}

// WireguardAddressTaken reports whether a non-deleted WireGuard connection
// on nodeID already uses addr.
func (c *Cache) WireguardAddressTaken(nodeID string, addr model.WgParam) bool {
	taken := false
	c.RangeConnections(func(conn model.Connection) bool {
		wg, ok := conn.WireguardParam()
		if ok && !conn.IsDeleted && wg.NodeID == nodeID && wg.Param.Address == addr.Address {
			taken = true
			return false
		}
		return true
	})
	return taken
}

// ConnectionsForNode returns every non-deleted connection whose WireGuard
// peer is bound to nodeID. Connections of other protos are not included.
func (c *Cache) ConnectionsForNode(nodeID string) []model.Connection {
	var out []model.Connection
	c.RangeConnections(func(conn model.Connection) bool {
		if conn.IsDeleted {
			return true
		}
		if wg, ok := conn.WireguardParam(); ok && wg.NodeID == nodeID {
			out = append(out, conn)
		}
		return true
	})
	return out
}
