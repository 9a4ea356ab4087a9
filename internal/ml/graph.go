package ml

import "sync"

type graphEdge struct {
	from string
	to   string
}

// CommGraph is a directed sender-to-recipient communication graph with a
// hard node cap. When adding an edge would push the node count over the
// cap, the oldest edges are evicted first and any node left without edges
// is dropped with them.
type CommGraph struct {
	mu         sync.Mutex
	out        map[string]map[string]int
	in         map[string]map[string]int
	order      []graphEdge
	sent       map[string]int
	totalSent  int
	maxNodes   int
	evictBatch int
}

// NewCommGraph creates a graph capped at maxNodes. evictBatch controls how
// many of the oldest edges are removed per eviction pass.
func NewCommGraph(maxNodes, evictBatch int) *CommGraph {
	if evictBatch <= 0 {
		evictBatch = 1
	}
	return &CommGraph{
		out:        make(map[string]map[string]int),
		in:         make(map[string]map[string]int),
		sent:       make(map[string]int),
		maxNodes:   maxNodes,
		evictBatch: evictBatch,
	}
}

// AddEdge records one send from sender to recipient
func (g *CommGraph) AddEdge(sender, recipient string) {
	if sender == "" || recipient == "" || sender == recipient {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.out[sender] == nil {
		g.out[sender] = make(map[string]int)
	}
	if g.in[recipient] == nil {
		g.in[recipient] = make(map[string]int)
	}

	if g.out[sender][recipient] == 0 {
		g.order = append(g.order, graphEdge{from: sender, to: recipient})
	}
	g.out[sender][recipient]++
	g.in[recipient][sender]++

	g.sent[sender]++
	g.totalSent++

	if g.maxNodes > 0 && g.nodeCount() > g.maxNodes {
		g.evictOldest()
	}
}

// nodeCount is the number of distinct addresses appearing in any edge
func (g *CommGraph) nodeCount() int {
	seen := make(map[string]struct{}, len(g.out)+len(g.in))
	for node := range g.out {
		seen[node] = struct{}{}
	}
	for node := range g.in {
		seen[node] = struct{}{}
	}
	return len(seen)
}

// NodeCount reports the current number of graph nodes
func (g *CommGraph) NodeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodeCount()
}

// evictOldest removes the oldest distinct edges and prunes nodes that no
// longer participate in any edge. Send counters stay untouched so traffic
// share reflects the full run.
func (g *CommGraph) evictOldest() {
	n := g.evictBatch
	if n > len(g.order) {
		n = len(g.order)
	}

	for _, edge := range g.order[:n] {
		if targets, ok := g.out[edge.from]; ok {
			delete(targets, edge.to)
			if len(targets) == 0 {
				delete(g.out, edge.from)
			}
		}
		if sources, ok := g.in[edge.to]; ok {
			delete(sources, edge.from)
			if len(sources) == 0 {
				delete(g.in, edge.to)
			}
		}
	}
	g.order = append(g.order[:0], g.order[n:]...)
}

// DegreeCentrality is the node's combined in and out degree over the total
// node count. An unknown node or an empty graph scores zero.
func (g *CommGraph) DegreeCentrality(node string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	total := g.nodeCount()
	if total == 0 {
		return 0
	}

	degree := len(g.out[node]) + len(g.in[node])
	return float64(degree) / float64(total)
}

// ClusteringCoefficient measures how connected a node's neighbors are to
// each other: directed links present among them over directed links
// possible. Neighborhood membership counts both directions.
func (g *CommGraph) ClusteringCoefficient(node string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	neighbors := make(map[string]struct{})
	for n := range g.out[node] {
		neighbors[n] = struct{}{}
	}
	for n := range g.in[node] {
		neighbors[n] = struct{}{}
	}

	k := len(neighbors)
	if k < 2 {
		return 0
	}

	links := 0
	for a := range neighbors {
		for b := range neighbors {
			if a == b {
				continue
			}
			if g.out[a] != nil && g.out[a][b] > 0 {
				links++
			}
		}
	}

	return float64(links) / float64(k*(k-1))
}

// TrafficShare is the sender's share of all sends recorded during the run
func (g *CommGraph) TrafficShare(sender string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.totalSent == 0 {
		return 0
	}
	return float64(g.sent[sender]) / float64(g.totalSent)
}
