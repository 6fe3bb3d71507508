// Package topology builds the peer overlay used to fan out gossip.
//
// The overlay starts as a chain over the node IDs in order, then adds a
// direct edge between every pair of nodes that are not already within two
// hops of each other. The resulting graph has a diameter of at most two.
package topology

// Graph is a symmetric adjacency list keyed by node ID.
type Graph map[string][]string

// Build returns the overlay graph for the given ordered node IDs.
//
// Duplicate IDs are ignored. Every ID is present in the graph, including when
// it has no neighbours.
func Build(ids []string) Graph {
	ids = dedup(ids)

	g := make(Graph, len(ids))
	for _, id := range ids {
		g[id] = []string{}
	}

	for i := 0; i+1 < len(ids); i++ {
		g.connect(ids[i], ids[i+1])
	}

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if !g.WithinHops(ids[i], ids[j], 2) {
				g.connect(ids[i], ids[j])
			}
		}
	}

	return g
}

// Neighbours returns the nodes directly connected to id.
func (g Graph) Neighbours(id string) []string {
	return g[id]
}

// WithinHops returns whether dst is reachable from src in at most maxHops
// edges, using a breadth first search bounded to maxHops.
func (g Graph) WithinHops(src, dst string, maxHops int) bool {
	if src == dst {
		return true
	}

	visited := map[string]struct{}{src: {}}
	frontier := []string{src}
	for depth := 0; depth < maxHops && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, peer := range g[id] {
				if peer == dst {
					return true
				}
				if _, ok := visited[peer]; ok {
					continue
				}
				visited[peer] = struct{}{}
				next = append(next, peer)
			}
		}
		frontier = next
	}
	return false
}

// Edges returns the number of undirected edges.
func (g Graph) Edges() int {
	n := 0
	for _, peers := range g {
		n += len(peers)
	}
	return n / 2
}

func (g Graph) connect(a, b string) {
	if a == b || g.adjacent(a, b) {
		return
	}
	g[a] = append(g[a], b)
	g[b] = append(g[b], a)
}

func (g Graph) adjacent(a, b string) bool {
	for _, peer := range g[a] {
		if peer == b {
			return true
		}
	}
	return false
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
