// Package graph builds and queries the typed dependency graph linking files,
// functions, classes, and methods.
package graph

import (
	"errors"
	"fmt"
	"maps"

	"github.com/phobologic/codemap/internal/model"
)

// ErrUnknownNode is returned when a query names a node not in the graph.
var ErrUnknownNode = errors.New("unknown node")

// EdgeType classifies a directed edge.
type EdgeType string

const (
	EdgeContains EdgeType = "contains"
	EdgeMemberOf EdgeType = "memberOf"
	EdgeImports  EdgeType = "imports"
	EdgeRequires EdgeType = "requires"
	EdgeCalls    EdgeType = "calls"
)

// Node is one of FileNode, FunctionNode, ClassNode, or MethodNode.
type Node interface {
	ID() string
	Kind() model.ElementType
	Label() string
	// FilePath is the owning file for declarations and the path itself for
	// files.
	FilePath() string
	node()
}

// FileNode is a source file. External marks files outside the indexed set,
// such as resolved node_modules targets.
type FileNode struct {
	Path      string `json:"path" yaml:"path"`
	Name      string `json:"name" yaml:"name"`
	Extension string `json:"extension" yaml:"extension"`
	External  bool   `json:"external,omitempty" yaml:"external,omitempty"`
}

// FunctionNode is a top-level function.
type FunctionNode struct {
	Path     string         `json:"filePath" yaml:"filePath"`
	Name     string         `json:"name" yaml:"name"`
	Params   []string       `json:"params" yaml:"params"`
	Location model.Location `json:"location" yaml:"location"`
}

// ClassNode is a class declaration.
type ClassNode struct {
	Path     string         `json:"filePath" yaml:"filePath"`
	Name     string         `json:"name" yaml:"name"`
	Methods  []string       `json:"methods" yaml:"methods"`
	Location model.Location `json:"location" yaml:"location"`
}

// MethodNode is a method of a class.
type MethodNode struct {
	Path     string         `json:"filePath" yaml:"filePath"`
	Class    string         `json:"className" yaml:"className"`
	Name     string         `json:"name" yaml:"name"`
	Params   []string       `json:"params" yaml:"params"`
	Location model.Location `json:"location" yaml:"location"`
}

func (n *FileNode) ID() string              { return model.FileKey(n.Path) }
func (n *FileNode) Kind() model.ElementType { return model.ElementFile }
func (n *FileNode) Label() string           { return n.Name }
func (n *FileNode) FilePath() string        { return n.Path }
func (*FileNode) node()                     {}

func (n *FunctionNode) ID() string              { return model.FunctionKey(n.Path, n.Name) }
func (n *FunctionNode) Kind() model.ElementType { return model.ElementFunction }
func (n *FunctionNode) Label() string           { return n.Name }
func (n *FunctionNode) FilePath() string        { return n.Path }
func (*FunctionNode) node()                     {}

func (n *ClassNode) ID() string              { return model.ClassKey(n.Path, n.Name) }
func (n *ClassNode) Kind() model.ElementType { return model.ElementClass }
func (n *ClassNode) Label() string           { return n.Name }
func (n *ClassNode) FilePath() string        { return n.Path }
func (*ClassNode) node()                     {}

func (n *MethodNode) ID() string              { return model.MethodKey(n.Path, n.Class, n.Name) }
func (n *MethodNode) Kind() model.ElementType { return model.ElementMethod }
func (n *MethodNode) Label() string           { return n.Class + "." + n.Name }
func (n *MethodNode) FilePath() string        { return n.Path }
func (*MethodNode) node()                     {}

// Edge is a directed, typed, weighted connection.
type Edge struct {
	Source   string            `json:"source" yaml:"source"`
	Target   string            `json:"target" yaml:"target"`
	Type     EdgeType          `json:"type" yaml:"type"`
	Weight   float64           `json:"weight" yaml:"weight"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type edgeKey struct {
	source, target string
	typ            EdgeType
}

// Graph is a directed multigraph with at most one edge per
// (source, target, type). It is not safe for concurrent mutation.
type Graph struct {
	nodes map[string]Node
	order []string
	edges []*Edge
	index map[edgeKey]*Edge
	out   map[string][]*Edge
	in    map[string][]*Edge
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]Node),
		index: make(map[edgeKey]*Edge),
		out:   make(map[string][]*Edge),
		in:    make(map[string][]*Edge),
	}
}

// AddNode inserts n, replacing any node with the same ID.
func (g *Graph) AddNode(n Node) {
	id := n.ID()
	if _, ok := g.nodes[id]; !ok {
		g.order = append(g.order, id)
	}
	g.nodes[id] = n
}

// AddEdge links source to target. It is a no-op returning false when either
// endpoint is missing. Re-adding an existing (source, target, type) edge
// accumulates its weight and overwrites the given metadata keys.
func (g *Graph) AddEdge(source, target string, typ EdgeType, weight float64, meta map[string]string) bool {
	if _, ok := g.nodes[source]; !ok {
		return false
	}
	if _, ok := g.nodes[target]; !ok {
		return false
	}

	key := edgeKey{source, target, typ}
	if e, ok := g.index[key]; ok {
		e.Weight += weight
		if len(meta) > 0 {
			if e.Metadata == nil {
				e.Metadata = make(map[string]string, len(meta))
			}
			maps.Copy(e.Metadata, meta)
		}
		return true
	}

	e := &Edge{Source: source, Target: target, Type: typ, Weight: weight}
	if len(meta) > 0 {
		e.Metadata = maps.Clone(meta)
	}
	g.edges = append(g.edges, e)
	g.index[key] = e
	g.out[source] = append(g.out[source], e)
	g.in[target] = append(g.in[target], e)
	return true
}

// Node returns the node with id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.order))
	for i, id := range g.order {
		out[i] = g.nodes[id]
	}
	return out
}

// Edges returns a copy of every edge in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	for i, e := range g.edges {
		out[i] = *e
	}
	return out
}

// Edge returns the edge identified by (source, target, type).
func (g *Graph) Edge(source, target string, typ EdgeType) (Edge, bool) {
	e, ok := g.index[edgeKey{source, target, typ}]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Direction selects which edges a traversal follows.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
	Both     Direction = "both"
)

// TraverseOptions bounds Dependencies. Depth below 1 means 1; MaxResults
// of 0 or less means unlimited; empty Types follows every edge type.
type TraverseOptions struct {
	Direction  Direction
	Types      []EdgeType
	Depth      int
	MaxResults int
}

// Dependency is a node reached by a traversal, with the edge that reached
// it and its distance in hops from the start.
type Dependency struct {
	ID    string `json:"id" yaml:"id"`
	Node  Node   `json:"node" yaml:"node"`
	Edge  Edge   `json:"edge" yaml:"edge"`
	Depth int    `json:"depth" yaml:"depth"`
}

// Dependencies walks depth-first from id. A node is reported at most once
// per call and the start node is never reported.
func (g *Graph) Dependencies(id string, opts TraverseOptions) ([]Dependency, error) {
	if _, ok := g.nodes[id]; !ok {
		return nil, fmt.Errorf("dependencies of %s: %w", id, ErrUnknownNode)
	}
	if opts.Depth < 1 {
		opts.Depth = 1
	}
	if opts.Direction == "" {
		opts.Direction = Outgoing
	}
	var types map[EdgeType]struct{}
	if len(opts.Types) > 0 {
		types = make(map[EdgeType]struct{}, len(opts.Types))
		for _, t := range opts.Types {
			types[t] = struct{}{}
		}
	}

	t := &traversal{
		g:       g,
		opts:    opts,
		types:   types,
		visited: map[string]struct{}{id: {}},
	}
	t.visit(id, 1)
	return t.results, nil
}

type traversal struct {
	g       *Graph
	opts    TraverseOptions
	types   map[EdgeType]struct{}
	visited map[string]struct{}
	results []Dependency
}

func (t *traversal) full() bool {
	return t.opts.MaxResults > 0 && len(t.results) >= t.opts.MaxResults
}

func (t *traversal) visit(id string, depth int) {
	if t.opts.Direction == Outgoing || t.opts.Direction == Both {
		t.follow(t.g.out[id], depth, func(e *Edge) string { return e.Target })
	}
	if t.opts.Direction == Incoming || t.opts.Direction == Both {
		t.follow(t.g.in[id], depth, func(e *Edge) string { return e.Source })
	}
}

func (t *traversal) follow(edges []*Edge, depth int, other func(*Edge) string) {
	for _, e := range edges {
		if t.full() {
			return
		}
		if t.types != nil {
			if _, ok := t.types[e.Type]; !ok {
				continue
			}
		}
		next := other(e)
		if _, seen := t.visited[next]; seen {
			continue
		}
		t.visited[next] = struct{}{}
		t.results = append(t.results, Dependency{ID: next, Node: t.g.nodes[next], Edge: *e, Depth: depth})
		if depth < t.opts.Depth {
			t.visit(next, depth+1)
		}
	}
}

// Impact is the unweighted impact of changing one node: nodes that reach
// it (impacted) and nodes it reaches (dependencies), with their counts as
// scores.
type Impact struct {
	Impacted        []Dependency `json:"impactedNodes" yaml:"impactedNodes"`
	Dependencies    []Dependency `json:"dependencyNodes" yaml:"dependencyNodes"`
	ImpactScore     int          `json:"impactScore" yaml:"impactScore"`
	DependencyScore int          `json:"dependencyScore" yaml:"dependencyScore"`
}

// ImpactAnalysis traverses incoming and outgoing edges from id up to depth
// hops.
func (g *Graph) ImpactAnalysis(id string, depth int) (*Impact, error) {
	impacted, err := g.Dependencies(id, TraverseOptions{Direction: Incoming, Depth: depth})
	if err != nil {
		return nil, err
	}
	deps, err := g.Dependencies(id, TraverseOptions{Direction: Outgoing, Depth: depth})
	if err != nil {
		return nil, err
	}
	return &Impact{
		Impacted:        impacted,
		Dependencies:    deps,
		ImpactScore:     len(impacted),
		DependencyScore: len(deps),
	}, nil
}
