// Package routing computes all-pairs shortest-path next-hop routing
// tables over an effective topology, with caching to suppress redundant
// recomputation (spec §4.2).
package routing

import (
	"container/heap"
	"math"

	"github.com/loopnet/routingctl/internal/topology"
)

// Route is one row of a computed routing table: from Src to Dest, go via
// NextHop, at total Distance. Unreachable destinations carry NextHop -1
// and Distance routewire.UnreachableDistance (kept as a plain int here;
// the driver converts to the wire's int32 sentinel values).
type Route struct {
	Src      int
	Dest     int
	NextHop  int
	Distance int
}

const (
	unreachableHop      = -1
	unreachableDistance = 9999
)

// ComputeTables runs single-source Dijkstra from every switch id in
// 0..n-1 over the effective topology, producing a full n-entry routing
// table per source in ascending destination order.
func ComputeTables(eff *topology.Effective, n int) map[int][]Route {
	tables := make(map[int][]Route, n)
	for s := 0; s < n; s++ {
		tables[s] = shortestPathsFrom(eff, n, s)
	}
	return tables
}

func shortestPathsFrom(eff *topology.Effective, n, src int) []Route {
	dist := make([]int, n)
	prev := make([]int, n)
	for i := range dist {
		dist[i] = math.MaxInt32
		prev[i] = unreachableHop
	}
	dist[src] = 0

	pq := &priorityQueue{{node: src, dist: 0}}
	heap.Init(pq)

	visited := make([]bool, n)
	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		u := item.node
		if visited[u] {
			continue
		}
		if item.dist > dist[u] {
			continue // stale entry
		}
		visited[u] = true

		for _, nb := range eff.Neighbors(u) {
			alt := dist[u] + nb.Cost
			if alt < dist[nb.ID] {
				dist[nb.ID] = alt
				prev[nb.ID] = u
				heap.Push(pq, pqItem{node: nb.ID, dist: alt})
			}
		}
	}

	routes := make([]Route, n)
	for d := 0; d < n; d++ {
		if d == src {
			routes[d] = Route{Src: src, Dest: d, NextHop: src, Distance: 0}
			continue
		}
		if dist[d] == math.MaxInt32 {
			routes[d] = Route{Src: src, Dest: d, NextHop: unreachableHop, Distance: unreachableDistance}
			continue
		}
		routes[d] = Route{Src: src, Dest: d, NextHop: nextHop(prev, src, d), Distance: dist[d]}
	}
	return routes
}

// nextHop walks predecessors from d back toward src; the node whose
// predecessor is src is the next hop taken from src.
func nextHop(prev []int, src, d int) int {
	at := d
	for steps := 0; steps < len(prev); steps++ {
		p := prev[at]
		if p == src {
			return at
		}
		if p == unreachableHop {
			return unreachableHop
		}
		at = p
	}
	return unreachableHop
}

// --- priority queue, (distance, node_id) tie-break for determinism ---

type pqItem struct {
	node int
	dist int
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].node < pq[j].node
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)   { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
