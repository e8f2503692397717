package types

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
)

type NodeKind string

const (
	NodeStart     NodeKind = "start"
	NodeEnd       NodeKind = "end"
	NodeModelCall NodeKind = "model_call"
	NodeToolCall  NodeKind = "tool_call"
	NodeCondition NodeKind = "condition"
	NodeWait      NodeKind = "wait"
)

type EdgeKind string

const (
	// EdgeSimple is always traversed.
	EdgeSimple EdgeKind = "simple"
	// EdgeConditional is traversed only when its condition evaluates true.
	EdgeConditional EdgeKind = "conditional"
	// EdgeFlexibleConditional is traversed when the EdgeDecider says so.
	EdgeFlexibleConditional EdgeKind = "flexible_conditional"
)

type Node struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`
	// Config is handed verbatim to the NodeExecutor registered for Kind.
	Config Data `json:"config,omitempty"`

	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type Edge struct {
	ID        string   `json:"id"`
	Source    string   `json:"source"`
	Target    string   `json:"target"`
	Kind      EdgeKind `json:"kind"`
	Condition string   `json:"condition,omitempty"`
}

type GraphMetadata struct {
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

/**
 * Graph is the shape of a workflow. Nodes and edges are immutable once added:
 * editing a node means RemoveNode followed by AddNode.
 * A Graph must not be modified while a run is using it.
 */
type Graph struct {
	ID       string           `json:"id"`
	Nodes    map[string]*Node `json:"nodes"`
	Edges    []*Edge          `json:"edges"`
	Metadata GraphMetadata    `json:"metadata"`
}

func NewGraph() *Graph {
	now := time.Now().UTC()
	return &Graph{
		ID:    uuid.NewString(),
		Nodes: make(map[string]*Node),
		Edges: make([]*Edge, 0),
		Metadata: GraphMetadata{
			Version:   "1.0.0",
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func (g *Graph) AddNode(node *Node) error {
	if node == nil || node.ID == "" {
		return errors.BadRequestf("node id is empty")
	}
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	if _, exists := g.Nodes[node.ID]; exists {
		return errors.AlreadyExistsf("node %s", node.ID)
	}
	g.Nodes[node.ID] = node
	g.touch()
	return nil
}

// RemoveNode removes the node together with every edge touching it.
func (g *Graph) RemoveNode(nodeID string) error {
	if _, exists := g.Nodes[nodeID]; !exists {
		return NewNodeNotFoundErrorf(nodeID, "node %s does not exist", nodeID)
	}
	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source != nodeID && e.Target != nodeID {
			kept = append(kept, e)
		}
	}
	g.Edges = kept
	delete(g.Nodes, nodeID)
	g.touch()
	return nil
}

// AddEdge appends an edge. Endpoints are not checked here, the validator
// reports dangling edges.
func (g *Graph) AddEdge(edge *Edge) error {
	if edge == nil || edge.ID == "" {
		return errors.BadRequestf("edge id is empty")
	}
	for _, e := range g.Edges {
		if e.ID == edge.ID {
			return errors.AlreadyExistsf("edge %s", edge.ID)
		}
	}
	if edge.Kind == "" {
		edge.Kind = EdgeSimple
	}
	g.Edges = append(g.Edges, edge)
	g.touch()
	return nil
}

func (g *Graph) RemoveEdge(edgeID string) error {
	for i, e := range g.Edges {
		if e.ID == edgeID {
			g.Edges = append(g.Edges[:i], g.Edges[i+1:]...)
			g.touch()
			return nil
		}
	}
	return errors.NotFoundf("edge %s", edgeID)
}

func (g *Graph) Node(nodeID string) (*Node, bool) {
	n, exists := g.Nodes[nodeID]
	return n, exists
}

// EdgesFrom returns the outgoing edges of nodeID in insertion order.
func (g *Graph) EdgesFrom(nodeID string) []*Edge {
	edges := make([]*Edge, 0)
	for _, e := range g.Edges {
		if e.Source == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

func (g *Graph) EdgesTo(nodeID string) []*Edge {
	edges := make([]*Edge, 0)
	for _, e := range g.Edges {
		if e.Target == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

func (g *Graph) HasEdge(source, target string) bool {
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			return true
		}
	}
	return false
}

// NodesOfKind returns the ids of every node of the given kind, sorted.
func (g *Graph) NodesOfKind(kind NodeKind) []string {
	ids := make([]string, 0)
	for id, n := range g.Nodes {
		if n.Kind == kind {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (g *Graph) StartNodes() []string {
	return g.NodesOfKind(NodeStart)
}

func (g *Graph) touch() {
	g.Metadata.UpdatedAt = time.Now().UTC()
}
