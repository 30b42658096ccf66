/**
 * Filename: /Users/bao/code/yahs/graph.go
 * Path: /Users/bao/code/yahs
 * Created Date: Tuesday, June 29th 2021, 9:30:08 pm
 * Author: bao
 *
 * Copyright (c) 2021 Haibao Tang
 */

package yahs

import (
	"sort"
)

// Pruning cascade thresholds
const (
	// SimpleAlpha drops arcs below this fraction of the best arc at a node
	SimpleAlpha = .1
	// SimpleBeta is the second-to-best ratio above which competitors are ambiguous
	SimpleBeta = .7
	// SimpleGamma drops arcs this much weaker than an alternative two-arc path
	SimpleGamma = .1
	// TransitiveFold is the comparison factor of transitive reduction
	TransitiveFold = 1.0
	// WeakArcWeight is the absolute weight floor of the weak-edge trim
	WeakArcWeight = .2
)

// GraphArc is one directed arc of the bidirected scaffolding graph. Nodes
// encode an oriented scaffold end as id<<1|bit. Every undirected edge
// materializes as two arcs sharing an Edge id; an arc u -> v always has its
// mate v^1 -> u^1 with the same weight.
type GraphArc struct {
	From, To uint32
	Edge     uint32
	Weight   float64
	Del      bool
}

// ScafGraph is the scaffolding graph over the oriented ends of a layout.
// Arcs are kept sorted by From with a range index; removal marks both mated
// arcs and nothing is physically deleted until compact.
type ScafGraph struct {
	Layout *Layout
	Arcs   []GraphArc
	idx    []int32 // arc range of node u is [idx[u], idx[u+1])
	nEdges uint32
}

// NewScafGraph makes an empty graph over the layout's 2N oriented ends
func NewScafGraph(l *Layout) *ScafGraph {
	return &ScafGraph{Layout: l}
}

// AddEdge joins end eu of one scaffold with end ev of another. endU and endV
// are the id<<1|end encoded junction ends.
func (g *ScafGraph) AddEdge(endU, endV uint32, weight float64) {
	edge := g.nEdges
	g.nEdges++
	// The to-node is the far end of the target, where a walk continues
	g.Arcs = append(g.Arcs,
		GraphArc{From: endU, To: endV ^ 1, Edge: edge, Weight: weight},
		GraphArc{From: endV, To: endU ^ 1, Edge: edge, Weight: weight},
	)
}

// sortIndex re-establishes the sort order and the per-node arc ranges
func (g *ScafGraph) sortIndex() {
	sort.Slice(g.Arcs, func(i, j int) bool {
		if g.Arcs[i].From != g.Arcs[j].From {
			return g.Arcs[i].From < g.Arcs[j].From
		}
		if g.Arcs[i].To != g.Arcs[j].To {
			return g.Arcs[i].To < g.Arcs[j].To
		}
		return g.Arcs[i].Edge < g.Arcs[j].Edge
	})
	n := 2 * g.Layout.NumSeqs()
	g.idx = make([]int32, n+1)
	k := 0
	for u := 0; u <= n; u++ {
		for k < len(g.Arcs) && int(g.Arcs[k].From) < u {
			k++
		}
		g.idx[u] = int32(k)
	}
}

// liveArcs collects the indices of live arcs leaving a node
func (g *ScafGraph) liveArcs(u uint32) []int {
	var live []int
	for i := g.idx[u]; i < g.idx[u+1]; i++ {
		if !g.Arcs[i].Del {
			live = append(live, int(i))
		}
	}
	return live
}

// endDeg is the number of live joins at node u (an oriented scaffold end)
func (g *ScafGraph) endDeg(u uint32) int {
	n := 0
	for i := g.idx[u]; i < g.idx[u+1]; i++ {
		if !g.Arcs[i].Del {
			n++
		}
	}
	return n
}

// dropEdge flips the removed bit on both mated arcs of an edge
func (g *ScafGraph) dropEdge(edge uint32) {
	for i := range g.Arcs {
		if g.Arcs[i].Edge == edge {
			g.Arcs[i].Del = true
		}
	}
}

// compact physically removes deleted arcs and re-indexes
func (g *ScafGraph) compact() int {
	kept := g.Arcs[:0]
	for _, a := range g.Arcs {
		if !a.Del {
			kept = append(kept, a)
		}
	}
	g.Arcs = kept
	g.sortIndex()
	return len(g.Arcs)
}

// NumArcs returns the number of live arcs
func (g *ScafGraph) NumArcs() int {
	return len(g.Arcs)
}

// BuildGraph materializes an edge for every inter-link bucket whose
// normalized score clears both the absolute floor and the per-pair binomial
// quality threshold. Buckets are visited in ascending index and a bucket
// whose score equals that of a lower-indexed bucket of the same pair adds no
// edge, so equal scores resolve to the lexicographically smallest orientation
// pair.
func BuildGraph(m *InterMatrix, l *Layout, minNorm, la float64) *ScafGraph {
	g := NewScafGraph(l)
	rejected := 0
	for _, link := range m.Links {
		if link.LinkT == 0 {
			continue
		}
		qla := qualityThreshold(link.N0, la)
		for j := 0; j < 4; j++ {
			if link.LinkT&(1<<j) == 0 {
				continue
			}
			norm := link.Norms[j]
			if norm < minNorm {
				continue
			}
			if norm < qla {
				rejected++
				continue
			}
			tied := false
			for k := 0; k < j; k++ {
				if link.LinkT&(1<<k) != 0 && link.Norms[k] == norm {
					tied = true
				}
			}
			if tied {
				continue
			}
			endU := uint32(link.C0)<<1 | uint32(j)>>1
			endV := uint32(link.C1)<<1 | uint32(j)&1
			g.AddEdge(endU, endV, norm)
		}
	}
	g.sortIndex()
	log.Noticef("Graph contains %d nodes and %d arcs (%d rejected by quality filter)",
		2*l.NumSeqs(), len(g.Arcs), rejected)
	return g
}

// TrimSimpleFilter drops arcs that are locally implausible: much weaker than
// the best arc at a node, near-tied competitors of the best arc, or much
// weaker than an alternative two-arc path to the same destination
func (g *ScafGraph) TrimSimpleFilter(alpha, beta, gamma float64) {
	n := 2 * g.Layout.NumSeqs()
	for u := 0; u < n; u++ {
		live := g.liveArcs(uint32(u))
		if len(live) == 0 {
			continue
		}
		wmax := 0.0
		for _, i := range live {
			if g.Arcs[i].Weight > wmax {
				wmax = g.Arcs[i].Weight
			}
		}
		for _, i := range live {
			w := g.Arcs[i].Weight
			if w < alpha*wmax {
				g.dropEdge(g.Arcs[i].Edge)
			} else if w < wmax && w > beta*wmax {
				// A competitor this close to the best is noise either way
				g.dropEdge(g.Arcs[i].Edge)
			}
		}
	}
	// Arcs dominated by an alternative path
	for u := 0; u < n; u++ {
		for _, i := range g.liveArcs(uint32(u)) {
			a := g.Arcs[i]
			if alt := g.bestAltPath(a); alt > 0 && a.Weight < gamma*alt {
				g.dropEdge(a.Edge)
			}
		}
	}
	g.compact()
}

// bestAltPath finds the strongest two-arc path from a.From to a.To avoiding
// the arc itself, returning the min weight along that path, 0 when none
func (g *ScafGraph) bestAltPath(a GraphArc) float64 {
	best := 0.0
	for _, i := range g.liveArcs(a.From) {
		mid := g.Arcs[i]
		if mid.Del || mid.Edge == a.Edge || mid.To == a.To {
			continue
		}
		for _, j := range g.liveArcs(mid.To) {
			next := g.Arcs[j]
			if next.To != a.To || next.Edge == a.Edge {
				continue
			}
			w := minf(mid.Weight, next.Weight)
			if w > best {
				best = w
			}
		}
	}
	return best
}

// TrimTips prunes sequences dangling off a junction that continues without
// them: one free end, one single join leading into a busier junction
func (g *ScafGraph) TrimTips() {
	for c := 0; c < g.Layout.NumSeqs(); c++ {
		for e := 0; e < 2; e++ {
			u := uint32(c)<<1 | uint32(e)
			if g.endDeg(u^1) != 0 || g.endDeg(u) != 1 {
				continue
			}
			i := g.liveArcs(u)[0]
			a := g.Arcs[i]
			// The junction at the target end also hosts other joins
			if g.endDeg(a.To^1) > 1 {
				g.dropEdge(a.Edge)
			}
		}
	}
	g.compact()
}

// TrimBlunts drops arcs where exactly one side of the junction is clean
func (g *ScafGraph) TrimBlunts() {
	for i := range g.Arcs {
		a := g.Arcs[i]
		if a.Del {
			continue
		}
		dU := g.endDeg(a.From)
		dV := g.endDeg(a.To ^ 1)
		if (dU == 1) != (dV == 1) {
			g.dropEdge(a.Edge)
		}
	}
	g.compact()
}

// TrimRepeats removes all arcs of sequences with more than two joins and no
// dominant one; such sequences attract links from many loci at once
func (g *ScafGraph) TrimRepeats() {
	for c := 0; c < g.Layout.NumSeqs(); c++ {
		u0 := uint32(c) << 1
		live := append(g.liveArcs(u0), g.liveArcs(u0|1)...)
		if len(live) <= 2 {
			continue
		}
		best, second := 0.0, 0.0
		for _, i := range live {
			w := g.Arcs[i].Weight
			if w > best {
				best, second = w, best
			} else if w > second {
				second = w
			}
		}
		if second >= SimpleBeta*best {
			for _, i := range live {
				g.dropEdge(g.Arcs[i].Edge)
			}
		}
	}
	g.compact()
}

// TrimTransitive removes direct arcs already explained by a two-arc path of
// at least comparable weight
func (g *ScafGraph) TrimTransitive(fold float64) {
	for i := range g.Arcs {
		a := g.Arcs[i]
		if a.Del {
			continue
		}
		if alt := g.bestAltPath(a); alt > 0 && a.Weight <= alt*fold {
			g.dropEdge(a.Edge)
		}
	}
	g.compact()
}

// TrimPopBubbles collapses parallel two-arc paths between the same ordered
// node pair, keeping the heavier one
func (g *ScafGraph) TrimPopBubbles() {
	n := 2 * g.Layout.NumSeqs()
	for u := 0; u < n; u++ {
		live := g.liveArcs(uint32(u))
		if len(live) < 2 {
			continue
		}
		// through[v] is the best (branch, continuation) pair reaching v
		type hop struct {
			i, j   int
			weight float64
		}
		through := map[uint32]hop{}
		for _, i := range live {
			mid := g.Arcs[i]
			conts := g.liveArcs(mid.To)
			if len(conts) != 1 {
				continue
			}
			j := conts[0]
			next := g.Arcs[j]
			w := mid.Weight + next.Weight
			if prev, ok := through[next.To]; ok {
				// Parallel paths: pop the lighter branch
				if w > prev.weight {
					g.dropEdge(g.Arcs[prev.i].Edge)
					g.dropEdge(g.Arcs[prev.j].Edge)
					through[next.To] = hop{i, j, w}
				} else {
					g.dropEdge(mid.Edge)
					g.dropEdge(next.Edge)
				}
			} else {
				through[next.To] = hop{i, j, w}
			}
		}
	}
	g.compact()
}

// TrimPopUndirected collapses duplicate edges between the same node pair
// regardless of direction, keeping the heaviest
func (g *ScafGraph) TrimPopUndirected() {
	type pair struct{ u, v uint32 }
	bestOf := map[pair]int{}
	for i := range g.Arcs {
		a := g.Arcs[i]
		if a.Del {
			continue
		}
		u, v := a.From, a.To^1
		if u > v {
			u, v = v, u
		}
		key := pair{u, v}
		if j, ok := bestOf[key]; ok && g.Arcs[j].Edge != a.Edge {
			if a.Weight > g.Arcs[j].Weight {
				g.dropEdge(g.Arcs[j].Edge)
				bestOf[key] = i
			} else {
				g.dropEdge(a.Edge)
			}
		} else if !ok {
			bestOf[key] = i
		}
	}
	g.compact()
}

// TrimWeakEdges drops arcs below an absolute weight floor
func (g *ScafGraph) TrimWeakEdges(delta float64) {
	for i := range g.Arcs {
		if !g.Arcs[i].Del && g.Arcs[i].Weight < delta {
			g.dropEdge(g.Arcs[i].Edge)
		}
	}
	g.compact()
}

// TrimSelfLoops drops arcs joining a sequence to itself in either orientation
func (g *ScafGraph) TrimSelfLoops() {
	for i := range g.Arcs {
		if !g.Arcs[i].Del && g.Arcs[i].From>>1 == g.Arcs[i].To>>1 {
			g.dropEdge(g.Arcs[i].Edge)
		}
	}
	g.compact()
}

// TrimAmbiguousEdges is the final pass: at every node still holding two or
// more arcs, keep the best only when it dominates, otherwise drop them all
func (g *ScafGraph) TrimAmbiguousEdges(beta float64) {
	n := 2 * g.Layout.NumSeqs()
	for u := 0; u < n; u++ {
		live := g.liveArcs(uint32(u))
		if len(live) < 2 {
			continue
		}
		bestI := live[0]
		for _, i := range live[1:] {
			if g.Arcs[i].Weight > g.Arcs[bestI].Weight {
				bestI = i
			}
		}
		second := 0.0
		for _, i := range live {
			if i != bestI && g.Arcs[i].Weight > second {
				second = g.Arcs[i].Weight
			}
		}
		dominated := second <= beta*g.Arcs[bestI].Weight
		for _, i := range live {
			if !dominated || i != bestI {
				g.dropEdge(g.Arcs[i].Edge)
			}
		}
	}
	g.compact()
}

// Prune iterates the filter cascade until the arc count is stable, then
// applies the ambiguity filter once
func (g *ScafGraph) Prune() {
	nArcs := g.NumArcs()
	for round := 1; ; round++ {
		g.TrimSimpleFilter(SimpleAlpha, SimpleBeta, SimpleGamma)
		g.TrimTips()
		g.TrimBlunts()
		g.TrimRepeats()
		g.TrimTransitive(TransitiveFold)
		g.TrimPopBubbles()
		g.TrimPopUndirected()
		g.TrimWeakEdges(WeakArcWeight)
		g.TrimSelfLoops()
		log.Noticef("Arcs after trimming round %d: %d", round, g.NumArcs())
		if g.NumArcs() == nArcs {
			break
		}
		nArcs = g.NumArcs()
	}
	g.TrimAmbiguousEdges(SimpleBeta)
	log.Noticef("Arcs after ambiguity filter: %d", g.NumArcs())
}

// ScafPath is an ordered, oriented run of scaffolds to be joined
type ScafPath struct {
	Scaffolds    []int
	Orientations []byte
}

// walk follows unique out-arcs from an exit node, appending the visited
// sequences to the path
func (g *ScafGraph) walk(p *ScafPath, from uint32, visited []bool) {
	for {
		live := g.liveArcs(from)
		if len(live) == 0 {
			return
		}
		a := g.Arcs[live[0]]
		c := int(a.To >> 1)
		if visited[c] {
			return
		}
		visited[c] = true
		ori := byte('-')
		if a.To&1 == 1 {
			// Entered through the head, so the walk continues forward
			ori = '+'
		}
		p.Scaffolds = append(p.Scaffolds, c)
		p.Orientations = append(p.Orientations, ori)
		from = a.To
	}
}

// extractFreeEndPaths walks maximal simple paths starting at every unvisited
// sequence with exactly one free end
func (g *ScafGraph) extractFreeEndPaths(visited []bool) []ScafPath {
	var paths []ScafPath
	for c := 0; c < g.Layout.NumSeqs(); c++ {
		if visited[c] {
			continue
		}
		head := uint32(c) << 1
		tail := head | 1
		var start uint32
		var ori byte
		switch {
		case g.endDeg(head) == 0 && g.endDeg(tail) > 0:
			start, ori = tail, '+'
		case g.endDeg(tail) == 0 && g.endDeg(head) > 0:
			start, ori = head, '-'
		default:
			continue
		}
		visited[c] = true
		p := ScafPath{Scaffolds: []int{c}, Orientations: []byte{ori}}
		g.walk(&p, start, visited)
		paths = append(paths, p)
	}
	return paths
}

// SearchGraphPath extracts the non-branching path cover of the pruned graph.
// Every node holds at most one live arc by now; remaining cycles are broken
// at their weakest arc, and untouched sequences become singleton paths.
func (g *ScafGraph) SearchGraphPath() []ScafPath {
	nSeqs := g.Layout.NumSeqs()
	visited := make([]bool, nSeqs)
	paths := g.extractFreeEndPaths(visited)

	// Whatever still carries arcs sits on a cycle: cut the weakest arc and
	// extract the path freed by the cut
	for c := 0; c < nSeqs; c++ {
		if visited[c] || g.endDeg(uint32(c)<<1|1) == 0 {
			continue
		}
		weakest := g.findWeakestOnCycle(uint32(c)<<1 | 1)
		if weakest >= 0 {
			log.Warningf("Breaking cycle at arc weight %.3g", g.Arcs[weakest].Weight)
			g.dropEdge(g.Arcs[weakest].Edge)
			g.compact()
		}
		paths = append(paths, g.extractFreeEndPaths(visited)...)
	}

	// Leftover singletons
	for c := 0; c < nSeqs; c++ {
		if !visited[c] {
			visited[c] = true
			paths = append(paths, ScafPath{Scaffolds: []int{c}, Orientations: []byte{'+'}})
		}
	}

	log.Noticef("Path cover: %d paths over %d sequences", len(paths), nSeqs)
	return paths
}

// findWeakestOnCycle walks the cycle through an exit node and returns the
// index of its weakest arc
func (g *ScafGraph) findWeakestOnCycle(start uint32) int {
	weakest := -1
	from := start
	for {
		live := g.liveArcs(from)
		if len(live) == 0 {
			break
		}
		i := live[0]
		if weakest < 0 || g.Arcs[i].Weight < g.Arcs[weakest].Weight {
			weakest = i
		}
		from = g.Arcs[i].To
		if from>>1 == start>>1 {
			break
		}
	}
	return weakest
}

// CheckMates verifies the mated-arc invariant, used by tests: the mate of
// u -> v is v^1 -> u^1 with the same edge id and weight
func (g *ScafGraph) CheckMates() bool {
	type key struct {
		from, to, edge uint32
	}
	arcs := map[key]float64{}
	for _, a := range g.Arcs {
		if !a.Del {
			arcs[key{a.From, a.To, a.Edge}] = a.Weight
		}
	}
	for _, a := range g.Arcs {
		if a.Del {
			continue
		}
		w, ok := arcs[key{a.To ^ 1, a.From ^ 1, a.Edge}]
		if !ok || w != a.Weight {
			return false
		}
	}
	return true
}
