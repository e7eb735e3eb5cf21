package graph

import (
	"container/heap"
	"slices"
)

// RenderOrder returns the nodes that feed the output node, output last, in
// topological order. Ties are broken by ascending node id so identical
// graphs always yield identical orders. It returns nil when no output is set.
func (g *Graph) RenderOrder() []NodeID {
	if g.output == 0 {
		return nil
	}
	return g.RenderOrderFrom(g.output)
}

// RenderOrderFrom is RenderOrder over the union of the upstream closures of
// roots. Unknown roots are ignored.
func (g *Graph) RenderOrderFrom(roots ...NodeID) []NodeID {
	reach := g.upstream(roots)
	if len(reach) == 0 {
		return nil
	}

	indeg := make(map[NodeID]int, len(reach))
	for id := range reach {
		indeg[id] = 0
	}
	for _, c := range g.conns {
		if reach[c.From] && reach[c.To] {
			indeg[c.To]++
		}
	}

	ready := &idHeap{}
	for id, d := range indeg {
		if d == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]NodeID, 0, len(reach))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(NodeID)
		order = append(order, id)
		for _, c := range g.conns {
			if c.From != id || !reach[c.To] {
				continue
			}
			indeg[c.To]--
			if indeg[c.To] == 0 {
				heap.Push(ready, c.To)
			}
		}
	}
	return order
}

// upstream returns every node from which one of roots is reachable,
// including the roots themselves.
func (g *Graph) upstream(roots []NodeID) map[NodeID]bool {
	reach := make(map[NodeID]bool)
	stack := make([]NodeID, 0, len(roots))
	for _, r := range roots {
		if _, ok := g.nodes[r]; ok && !reach[r] {
			reach[r] = true
			stack = append(stack, r)
		}
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range g.conns {
			if c.To == cur && !reach[c.From] {
				reach[c.From] = true
				stack = append(stack, c.From)
			}
		}
	}
	return reach
}

type idHeap []NodeID

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(NodeID)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// IsTopological reports whether order lists every edge source before its
// destination, considering only edges with both ends in order.
func (g *Graph) IsTopological(order []NodeID) bool {
	pos := make(map[NodeID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, c := range g.conns {
		pf, okf := pos[c.From]
		pt, okt := pos[c.To]
		if okf && okt && pf >= pt {
			return false
		}
	}
	return !slices.ContainsFunc(order, func(id NodeID) bool { return !g.Has(id) })
}
