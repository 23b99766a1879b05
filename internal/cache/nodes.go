package cache

import "github.com/frkn-dev/pony/internal/model"

// PutNode inserts or replaces a node by its (env, id) key.
func (c *Cache) PutNode(n model.Node) {
	c.nodes.Store(n.Key(), n)
}

// GetNode looks up a node by key.
func (c *Cache) GetNode(key model.NodeKey) (model.Node, bool) {
	return c.nodes.Load(key)
}

// DeleteNode removes a node by key.
func (c *Cache) DeleteNode(key model.NodeKey) {
	c.nodes.Delete(key)
}

// RangeNodes iterates live nodes in no particular order. fn returning false
// stops the iteration early, matching xsync.Map.Range's contract.
func (c *Cache) RangeNodes(fn func(model.Node) bool) {
	c.nodes.Range(func(_ model.NodeKey, n model.Node) bool {
		return fn(n)
	})
}

// NodeCount reports the number of cached nodes.
func (c *Cache) NodeCount() int {
	return c.nodes.Size()
}

// NodesInEnv returns every node whose Env matches env, used by the REST
// GET /nodes?env=… handler and placement candidate selection.
func (c *Cache) NodesInEnv(env string) []model.Node {
	var out []model.Node
	c.RangeNodes(func(n model.Node) bool {
		if n.Env == env {
			out = append(out, n)
		}
		return true
	})
	return out
}
