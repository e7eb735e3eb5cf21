// Package graph holds the mutable node graph: node instances, port
// connections and the designated output node. It validates every mutation
// and computes the deterministic render order used by the engine.
package graph

import (
	"fmt"
	"slices"

	"github.com/cwbudde/algo-synth/fault"
	"github.com/cwbudde/algo-synth/node"
)

// NodeID identifies a node instance within one graph. Zero is never assigned.
type NodeID uint32

// Position is UI placement metadata.
type Position struct {
	X float32
	Y float32
}

// Node is one node instance.
type Node struct {
	ID       NodeID
	Type     node.TypeID
	Desc     *node.Descriptor
	Position Position
	// Params holds current values in descriptor order.
	Params []float32
}

// Connection links an output port to an input port.
type Connection struct {
	From     NodeID
	FromPort node.PortID
	To       NodeID
	ToPort   node.PortID
}

// Graph is not safe for concurrent use; the session owns it.
type Graph struct {
	registry *node.Registry
	nodes    map[NodeID]*Node
	conns    []Connection
	output   NodeID
	nextID   NodeID
	version  uint64
}

// New returns an empty graph that resolves node kinds through reg.
func New(reg *node.Registry) *Graph {
	return &Graph{
		registry: reg,
		nodes:    make(map[NodeID]*Node),
		nextID:   1,
	}
}

// Version changes on every successful mutation.
func (g *Graph) Version() uint64 {
	return g.version
}

func (g *Graph) touch() {
	g.version++
}

// AddNode creates a node of the given kind with default parameter values.
func (g *Graph) AddNode(t node.TypeID, pos Position) (NodeID, error) {
	d, ok := g.registry.Lookup(t)
	if !ok {
		return 0, fmt.Errorf("%w: %d", node.ErrUnknownType, t)
	}
	id := g.nextID
	g.nextID++
	params := make([]float32, len(d.Params))
	for i, p := range d.Params {
		params[i] = p.Default
	}
	g.nodes[id] = &Node{ID: id, Type: t, Desc: d, Position: pos, Params: params}
	g.touch()
	return id, nil
}

// RemoveNode deletes a node and every connection touching it. Removing the
// output node unsets the output.
func (g *Graph) RemoveNode(id NodeID) error {
	if _, ok := g.nodes[id]; !ok {
		return fault.NotFound("node", uint32(id))
	}
	delete(g.nodes, id)
	g.conns = slices.DeleteFunc(g.conns, func(c Connection) bool {
		return c.From == id || c.To == id
	})
	if g.output == id {
		g.output = 0
	}
	g.touch()
	return nil
}

// MoveNode updates UI position metadata.
func (g *Graph) MoveNode(id NodeID, pos Position) error {
	n, ok := g.nodes[id]
	if !ok {
		return fault.NotFound("node", uint32(id))
	}
	n.Position = pos
	return nil
}

// Node returns a copy of the node.
func (g *Graph) Node(id NodeID) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	cp := *n
	cp.Params = slices.Clone(n.Params)
	return cp, true
}

// Has reports whether the node exists.
func (g *Graph) Has(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all node ids in ascending order.
func (g *Graph) Nodes() []NodeID {
	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Connections returns a copy of all connections.
func (g *Graph) Connections() []Connection {
	return slices.Clone(g.conns)
}

// Inputs returns the connections feeding id.
func (g *Graph) Inputs(id NodeID) []Connection {
	var out []Connection
	for _, c := range g.conns {
		if c.To == id {
			out = append(out, c)
		}
	}
	return out
}

// Connect adds an edge after validating endpoints, ports and acyclicity.
// On error the graph is unchanged.
func (g *Graph) Connect(c Connection) error {
	src, ok := g.nodes[c.From]
	if !ok {
		return fault.NotFound("node", uint32(c.From))
	}
	dst, ok := g.nodes[c.To]
	if !ok {
		return fault.NotFound("node", uint32(c.To))
	}
	out, ok := src.Desc.Output(c.FromPort)
	if !ok {
		return fmt.Errorf("%w: node %d has no output %d", ErrInvalidPort, c.From, c.FromPort)
	}
	in, ok := dst.Desc.Input(c.ToPort)
	if !ok {
		return fmt.Errorf("%w: node %d has no input %d", ErrInvalidPort, c.To, c.ToPort)
	}
	if !in.Kind.Accepts(out.Kind) {
		return fmt.Errorf("%w: %s output cannot feed %s input", ErrInvalidPort, out.Kind, in.Kind)
	}
	if c.From == g.output {
		return fmt.Errorf("%w: node %d", ErrOutputHasConsumers, c.From)
	}
	if slices.Contains(g.conns, c) {
		return ErrDuplicateConnection
	}
	if path := g.path(c.To, c.From); path != nil {
		return &CycleError{Path: append(path, c.To)}
	}
	g.conns = append(g.conns, c)
	g.touch()
	return nil
}

// Disconnect removes an edge. It reports false and does nothing if the edge
// is absent.
func (g *Graph) Disconnect(c Connection) bool {
	i := slices.Index(g.conns, c)
	if i < 0 {
		return false
	}
	g.conns = slices.Delete(g.conns, i, i+1)
	g.touch()
	return true
}

// SetOutput designates the sink node. The node must not feed other nodes.
func (g *Graph) SetOutput(id NodeID) error {
	if _, ok := g.nodes[id]; !ok {
		return fault.NotFound("node", uint32(id))
	}
	for _, c := range g.conns {
		if c.From == id {
			return fmt.Errorf("%w: node %d feeds node %d", ErrOutputHasConsumers, id, c.To)
		}
	}
	g.output = id
	g.touch()
	return nil
}

// ClearOutput unsets the output node.
func (g *Graph) ClearOutput() {
	if g.output != 0 {
		g.output = 0
		g.touch()
	}
}

// Output returns the output node id.
func (g *Graph) Output() (NodeID, bool) {
	return g.output, g.output != 0
}

// Clear removes all nodes and connections. Ids are not reused afterwards.
func (g *Graph) Clear() {
	g.nodes = make(map[NodeID]*Node)
	g.conns = nil
	g.output = 0
	g.touch()
}

// SetParam stores a clamped parameter value and returns it.
func (g *Graph) SetParam(id NodeID, p node.ParamID, v float32) (float32, error) {
	n, ok := g.nodes[id]
	if !ok {
		return 0, fault.NotFound("node", uint32(id))
	}
	i := n.Desc.ParamIndex(p)
	if i < 0 {
		return 0, fmt.Errorf("%w: node %d param %d", ErrUnknownParam, id, p)
	}
	v = n.Desc.Params[i].Clamp(v)
	n.Params[i] = v
	return v, nil
}

// Param returns the current value of a parameter.
func (g *Graph) Param(id NodeID, p node.ParamID) (float32, error) {
	n, ok := g.nodes[id]
	if !ok {
		return 0, fault.NotFound("node", uint32(id))
	}
	i := n.Desc.ParamIndex(p)
	if i < 0 {
		return 0, fmt.Errorf("%w: node %d param %d", ErrUnknownParam, id, p)
	}
	return n.Params[i], nil
}

// path returns a forward path from -> to following connections, or nil.
func (g *Graph) path(from, to NodeID) []NodeID {
	prev := map[NodeID]NodeID{from: 0}
	queue := []NodeID{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			var rev []NodeID
			for n := cur; n != 0; n = prev[n] {
				rev = append(rev, n)
			}
			slices.Reverse(rev)
			return rev
		}
		for _, c := range g.conns {
			if c.From != cur {
				continue
			}
			if _, seen := prev[c.To]; !seen {
				prev[c.To] = cur
				queue = append(queue, c.To)
			}
		}
	}
	return nil
}
