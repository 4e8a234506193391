package graph

// Graph is the output of a transformation: nodes in order of creation and
// edges in order of their first bundled id.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// NodeSet collects nodes by id while remembering creation order.
type NodeSet struct {
	nodes map[string]*Node
	order []string
}

// NewNodeSet creates an empty node set
func NewNodeSet() *NodeSet {
	return &NodeSet{nodes: make(map[string]*Node)}
}

// Get returns the node with the given id
func (s *NodeSet) Get(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Put adds n unless a node with the same id already exists; it returns
// the node stored under the id.
func (s *NodeSet) Put(n *Node) *Node {
	if existing, ok := s.nodes[n.ID]; ok {
		return existing
	}
	s.nodes[n.ID] = n
	s.order = append(s.order, n.ID)
	return n
}

// Len returns the number of nodes
func (s *NodeSet) Len() int {
	return len(s.order)
}

// Nodes returns the nodes in creation order
func (s *NodeSet) Nodes() []*Node {
	nodes := make([]*Node, 0, len(s.order))
	for _, id := range s.order {
		nodes = append(nodes, s.nodes[id])
	}
	return nodes
}

// Build assembles the final graph.
func Build(nodes *NodeSet, edges *EdgeManager) *Graph {
	return &Graph{
		Nodes: nodes.Nodes(),
		Edges: edges.Edges(),
	}
}
