package bind

import (
	"sort"
	"strings"
)

// dependencyNode is one vertex of a handler's dependency graph. An edge
// A→B exists when provider A declares a parameter named B that is itself a
// dependency name in scope.
type dependencyNode struct {
	key      string
	provider *Provider
	deps     []*dependencyNode
}

// buildDependencyGraph expands the handler's directly requested dependency
// names into the full graph. Cycles are a fatal configuration error raised
// here, at registration time, never at request time.
func buildDependencyGraph(requested []string, deps map[string]*Provider) (map[string]*dependencyNode, error) {
	nodes := make(map[string]*dependencyNode)

	var visit func(key string, stack []string) (*dependencyNode, error)
	visit = func(key string, stack []string) (*dependencyNode, error) {
		for _, s := range stack {
			if s == key {
				cycle := append(stack, key)
				return nil, configErrorf("cyclic dependency detected: %s", strings.Join(cycle, " -> "))
			}
		}
		if n, ok := nodes[key]; ok {
			return n, nil
		}

		provider, ok := deps[key]
		if !ok {
			return nil, configErrorf("dependency %q is not provided by any layer", key)
		}

		n := &dependencyNode{key: key, provider: provider}
		subKeys := provider.plan.dependencyKeys
		stack = append(stack, key)
		for _, sub := range subKeys {
			child, err := visit(sub, stack)
			if err != nil {
				return nil, err
			}
			n.deps = append(n.deps, child)
		}

		nodes[key] = n
		return n, nil
	}

	for _, key := range requested {
		if _, err := visit(key, nil); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

// createBatches partitions the graph into ordered batches: batch 0 holds
// dependencies with no dependency-typed parameters, batch k holds those
// satisfied entirely by batches < k. Within a batch there is no ordering
// guarantee; batches themselves run strictly in sequence.
func createBatches(nodes map[string]*dependencyNode) [][]*dependencyNode {
	remaining := make(map[string]*dependencyNode, len(nodes))
	for k, n := range nodes {
		remaining[k] = n
	}
	resolved := make(map[string]bool, len(nodes))

	var batches [][]*dependencyNode
	for len(remaining) > 0 {
		var batch []*dependencyNode
		for _, key := range sortedKeys(remaining) {
			n := remaining[key]
			ready := true
			for _, dep := range n.deps {
				if !resolved[dep.key] {
					ready = false
					break
				}
			}
			if ready {
				batch = append(batch, n)
			}
		}
		// Cycles are rejected during graph construction, so progress is
		// guaranteed.
		for _, n := range batch {
			resolved[n.key] = true
			delete(remaining, n.key)
		}
		batches = append(batches, batch)
	}
	return batches
}

// batchKeys returns the sorted key sets per batch, for introspection.
func batchKeys(batches [][]*dependencyNode) [][]string {
	out := make([][]string, len(batches))
	for i, batch := range batches {
		keys := make([]string, len(batch))
		for j, n := range batch {
			keys[j] = n.key
		}
		sort.Strings(keys)
		out[i] = keys
	}
	return out
}
