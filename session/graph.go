package session

import (
	"github.com/cwbudde/algo-synth/graph"
	"github.com/cwbudde/algo-synth/node"
	"github.com/cwbudde/algo-synth/param"
)

// AddNode creates a node of type t.
func (s *Session) AddNode(t node.TypeID, pos graph.Position) (graph.NodeID, error) {
	id, err := s.graph.AddNode(t, pos)
	if err != nil {
		return 0, s.rejected("add_node", err, "type", t)
	}
	s.commit()
	return id, nil
}

// RemoveNode deletes a node with its connections, parameter state and
// automation, and clears track targets that pointed at it.
func (s *Session) RemoveNode(id graph.NodeID) error {
	if err := s.graph.RemoveNode(id); err != nil {
		return s.rejected("remove_node", err, "node", id)
	}
	s.forget(id)
	s.commit()
	return nil
}

func (s *Session) forget(id graph.NodeID) {
	s.cache.Forget(id)
	s.params.ForgetNode(id)
	s.arr.ForgetNode(id)
}

// MoveNode changes the editor position of a node.
func (s *Session) MoveNode(id graph.NodeID, pos graph.Position) error {
	if err := s.graph.MoveNode(id, pos); err != nil {
		return s.rejected("move_node", err, "node", id)
	}
	return nil
}

// Connect adds an edge. Cycles are rejected and leave the graph unchanged.
func (s *Session) Connect(c graph.Connection) error {
	if err := s.graph.Connect(c); err != nil {
		return s.rejected("connect", err, "from", c.From, "to", c.To)
	}
	s.commit()
	return nil
}

// Disconnect removes an edge and reports whether it existed.
func (s *Session) Disconnect(c graph.Connection) bool {
	if !s.graph.Disconnect(c) {
		return false
	}
	s.commit()
	return true
}

// SetOutput designates the node whose signal reaches the master bus.
func (s *Session) SetOutput(id graph.NodeID) error {
	if err := s.graph.SetOutput(id); err != nil {
		return s.rejected("set_output", err, "node", id)
	}
	s.commit()
	return nil
}

// ClearOutput removes the output designation.
func (s *Session) ClearOutput() {
	s.graph.ClearOutput()
	s.commit()
}

// ClearGraph removes every node.
func (s *Session) ClearGraph() {
	for _, id := range s.graph.Nodes() {
		s.forget(id)
	}
	s.graph.Clear()
	s.commit()
}

// Output returns the output node.
func (s *Session) Output() (graph.NodeID, bool) {
	return s.graph.Output()
}

// Node returns a copy of a node.
func (s *Session) Node(id graph.NodeID) (graph.Node, bool) {
	return s.graph.Node(id)
}

// Nodes returns all node ids in ascending order.
func (s *Session) Nodes() []graph.NodeID {
	return s.graph.Nodes()
}

// NodeCount returns the number of nodes.
func (s *Session) NodeCount() int {
	return s.graph.Len()
}

// Connections returns a copy of all edges.
func (s *Session) Connections() []graph.Connection {
	return s.graph.Connections()
}

// RenderOrder returns the deterministic topological order of the graph.
func (s *Session) RenderOrder() []graph.NodeID {
	return s.graph.RenderOrder()
}

// SetParam clamps v to the parameter range, stores it, records it when a
// gesture is open, and forwards it to the engine. It returns the stored
// value.
func (s *Session) SetParam(id graph.NodeID, p node.ParamID, v float32) (float32, error) {
	stored, err := s.graph.SetParam(id, p, v)
	if err != nil {
		return 0, s.rejected("set_param", err, "node", id, "param", p)
	}
	k := param.Key{Node: id, Param: p}
	s.params.Write(k, stored, s.transport.Beat())
	s.sendParam(k, stored)
	return stored, nil
}

// Param returns the stored value of a parameter.
func (s *Session) Param(id graph.NodeID, p node.ParamID) (float32, error) {
	return s.graph.Param(id, p)
}

// BeginGesture opens a gesture. While it is open, automation of the
// parameter is suspended and writes are recorded.
func (s *Session) BeginGesture(id graph.NodeID, p node.ParamID) error {
	if _, err := s.graph.Param(id, p); err != nil {
		return s.rejected("begin_gesture", err, "node", id, "param", p)
	}
	if k := (param.Key{Node: id, Param: p}); s.params.Begin(k) {
		s.sendGesture(k)
	}
	return nil
}

// EndGesture closes a gesture and merges its recording into the lane. Ending
// a gesture that is not open does nothing.
func (s *Session) EndGesture(id graph.NodeID, p node.ParamID) error {
	if _, err := s.graph.Param(id, p); err != nil {
		return s.rejected("end_gesture", err, "node", id, "param", p)
	}
	k := param.Key{Node: id, Param: p}
	v := s.params.Version()
	if _, ok := s.params.End(k); !ok {
		return nil
	}
	if s.params.Version() != v {
		s.commit()
	}
	s.sendGesture(k)
	return nil
}

// GestureOpen reports whether a gesture is open on a parameter.
func (s *Session) GestureOpen(id graph.NodeID, p node.ParamID) bool {
	return s.params.Open(param.Key{Node: id, Param: p})
}

// AutomationLane returns a copy of the lane of a parameter.
func (s *Session) AutomationLane(id graph.NodeID, p node.ParamID) (param.Lane, bool) {
	return s.params.Lane(param.Key{Node: id, Param: p})
}

// ClearAutomation deletes the lane of a parameter.
func (s *Session) ClearAutomation(id graph.NodeID, p node.ParamID) bool {
	if !s.params.ClearLane(param.Key{Node: id, Param: p}) {
		return false
	}
	s.commit()
	return true
}
