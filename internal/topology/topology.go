// Package topology holds the declared switch/edge graph read from the
// static config file, and derives the "effective topology" — the subset
// of declared edges usable given current liveness and reported state.
package topology

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Edge is one declared, bidirectional link between two switches.
type Edge struct {
	A, B int
	Cost int
}

// Declared is the immutable, config-loaded topology: N switches and the
// set of declared edges.
type Declared struct {
	N     int
	Edges []Edge

	// adjacency is derived once at load time for fast lookups.
	adjacency map[int][]neighbor
}

type neighbor struct {
	id   int
	cost int
}

// Load reads the config grammar: line 1 is the switch count N; each
// subsequent non-blank line is "s1 s2 cost" declaring a bidirectional
// edge. Mirrors original_source/controller.py:bootstrap's parser.
func Load(path string) (*Declared, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("topology: opening config %s: %w", path, err)
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) (*Declared, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		return nil, fmt.Errorf("topology: config is empty")
	}
	n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return nil, fmt.Errorf("topology: invalid switch count %q: %w", scanner.Text(), err)
	}
	if n <= 0 {
		return nil, fmt.Errorf("topology: switch count must be positive, got %d", n)
	}

	d := &Declared{N: n, adjacency: make(map[int][]neighbor, n)}
	for i := 0; i < n; i++ {
		d.adjacency[i] = nil
	}

	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 3 {
			return nil, fmt.Errorf("topology: line %d: expected 3 fields, got %d", lineNo, len(parts))
		}
		a, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("topology: line %d: invalid switch id %q: %w", lineNo, parts[0], err)
		}
		b, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("topology: line %d: invalid switch id %q: %w", lineNo, parts[1], err)
		}
		cost, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("topology: line %d: invalid cost %q: %w", lineNo, parts[2], err)
		}
		if a < 0 || a >= n || b < 0 || b >= n {
			return nil, fmt.Errorf("topology: line %d: edge (%d,%d) references id outside 0..%d", lineNo, a, b, n-1)
		}
		if cost <= 0 {
			return nil, fmt.Errorf("topology: line %d: cost must be positive, got %d", lineNo, cost)
		}

		d.Edges = append(d.Edges, Edge{A: a, B: b, Cost: cost})
		d.adjacency[a] = append(d.adjacency[a], neighbor{id: b, cost: cost})
		d.adjacency[b] = append(d.adjacency[b], neighbor{id: a, cost: cost})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("topology: reading config: %w", err)
	}

	return d, nil
}

// Neighbors returns the declared neighbor ids of switch s, in the order
// they were declared in the config. Costs are not included.
func (d *Declared) Neighbors(s int) []int {
	ns := d.adjacency[s]
	ids := make([]int, len(ns))
	for i, n := range ns {
		ids[i] = n.id
	}
	return ids
}

// Effective computes the subset of declared edges that are currently
// usable: both endpoints alive and each endpoint's last-reported
// neighbor vector marks the other alive. A switch that has never
// reported is treated as reporting all its declared neighbors alive
// (spec §4.5 / §9).
type Effective struct {
	N     int
	edges map[[2]int]int // canonical (min,max) id pair -> cost
	adj   map[int][]neighbor
}

// DeriveEffective computes the effective topology from the declared
// topology, the switch-alive map, and each switch's reported neighbor
// vector.
func DeriveEffective(d *Declared, alive map[int]bool, reported map[int]map[int]bool) *Effective {
	e := &Effective{
		N:     d.N,
		edges: make(map[[2]int]int),
		adj:   make(map[int][]neighbor, d.N),
	}
	for _, edge := range d.Edges {
		if !alive[edge.A] || !alive[edge.B] {
			continue
		}
		if !reportsAlive(reported, edge.A, edge.B) || !reportsAlive(reported, edge.B, edge.A) {
			continue
		}
		key := canonical(edge.A, edge.B)
		e.edges[key] = edge.Cost
		e.adj[edge.A] = append(e.adj[edge.A], neighbor{id: edge.B, cost: edge.Cost})
		e.adj[edge.B] = append(e.adj[edge.B], neighbor{id: edge.A, cost: edge.Cost})
	}
	return e
}

// reportsAlive returns whether switch `from`'s reported vector marks
// `to` as alive. Absence of a report (nil vector, or no entry for `to`)
// defaults to true, per spec's "report defaults to true for declared
// neighbors" convention.
func reportsAlive(reported map[int]map[int]bool, from, to int) bool {
	vec, ok := reported[from]
	if !ok {
		return true
	}
	v, ok := vec[to]
	if !ok {
		return true
	}
	return v
}

func canonical(a, b int) [2]int {
	if a < b {
		return [2]int{a, b}
	}
	return [2]int{b, a}
}

// Neighbors returns the effective (neighbor_id, cost) adjacency for s.
func (e *Effective) Neighbors(s int) []NeighborView {
	ns := e.adj[s]
	out := make([]NeighborView, len(ns))
	for i, n := range ns {
		out[i] = NeighborView{ID: n.id, Cost: n.cost}
	}
	return out
}

// NeighborView is the exported shape of an adjacency entry.
type NeighborView struct {
	ID   int
	Cost int
}

// Key returns a value equal for structurally equal effective topologies
// (same adjacency set with same costs), suitable as a cache key. Equal
// is not used directly since Go map/slice values aren't comparable; Key
// renders a canonical string instead.
func (e *Effective) Key() string {
	type kv struct {
		a, b, cost int
	}
	pairs := make([]kv, 0, len(e.edges))
	for k, cost := range e.edges {
		pairs = append(pairs, kv{k[0], k[1], cost})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})
	var sb strings.Builder
	fmt.Fprintf(&sb, "n=%d;", e.N)
	for _, p := range pairs {
		fmt.Fprintf(&sb, "%d-%d:%d;", p.a, p.b, p.cost)
	}
	return sb.String()
}
