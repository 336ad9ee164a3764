// Package dag implements the computation DAG: a node/edge graph with
// cycle-rejecting edge insertion, Kahn's-algorithm topological sort,
// and the derived queries (roots, leaves, ready set, max parallelism,
// critical-path length) the scheduler consults.
package dag

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"
)

// NodeID is the dense node index the graph is indexed by.
type NodeID uint32

// NodeKind distinguishes the shapes of work a node represents.
type NodeKind byte

const (
	NodeConstant NodeKind = iota
	NodeCompute
	NodeParallelBlock
	NodeDataParallel
)

// Node carries a node's static description: its kind, a human name for
// compute nodes, the iteration count for data-parallel nodes, its
// priority, and whether it belongs to a parallel region. A data-parallel
// node records no iterator or body; only IterationLen is stored.
type Node struct {
	ID           NodeID
	Kind         NodeKind
	Name         string
	IterationLen int
	Priority     byte
	InParallel   bool

	deps     map[NodeID]struct{}
	dependents map[NodeID]struct{}
}

// Edge carries one dependency arc plus its visibility flag.
type Edge struct {
	From   NodeID
	To     NodeID
	Public bool
}

var (
	ErrNodeNotFound        = errors.New("dag: node not found")
	ErrCycleDetected       = errors.New("dag: edge would create a cycle")
	ErrDuplicateEdge       = errors.New("dag: duplicate edge")
	ErrGraphFrozen         = errors.New("dag: graph is frozen")
	ErrTopologySortFailed  = errors.New("dag: topological sort left a residual cycle")
	ErrSelfLoop            = errors.New("dag: self-loop edge rejected")
)

// Graph is the dependency DAG. It does no locking of its own: sharing
// one instance across goroutines is safe only while none of them
// mutates it.
type Graph struct {
	nodes  []*Node
	edges  []Edge
	frozen bool
}

func New() *Graph {
	return &Graph{}
}

// AddNode appends a node and returns its assigned id.
func (g *Graph) AddNode(kind NodeKind, name string) (NodeID, error) {
	if g.frozen {
		return 0, ErrGraphFrozen
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &Node{
		ID: id, Kind: kind, Name: name,
		deps: make(map[NodeID]struct{}), dependents: make(map[NodeID]struct{}),
	})
	return id, nil
}

func (g *Graph) node(id NodeID) (*Node, error) {
	if int(id) < 0 || int(id) >= len(g.nodes) {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return g.nodes[id], nil
}

// AddEdge records that to depends on from. It verifies both endpoints
// exist, rejects self-loops and duplicate edges, and rejects any edge
// that would close a cycle.
func (g *Graph) AddEdge(from, to NodeID, public bool) error {
	if g.frozen {
		return ErrGraphFrozen
	}
	if from == to {
		return ErrSelfLoop
	}
	fromNode, err := g.node(from)
	if err != nil {
		return err
	}
	toNode, err := g.node(to)
	if err != nil {
		return err
	}
	if _, dup := fromNode.dependents[to]; dup {
		return fmt.Errorf("%w: %d -> %d", ErrDuplicateEdge, from, to)
	}
	if g.hasPath(to, from) {
		return fmt.Errorf("%w: %d -> %d", ErrCycleDetected, from, to)
	}

	fromNode.dependents[to] = struct{}{}
	toNode.deps[from] = struct{}{}
	g.edges = append(g.edges, Edge{From: from, To: to, Public: public})
	return nil
}

// hasPath reports whether there is already a path from start to target,
// via iterative DFS with an explicit visited set — adding an edge
// target->start would otherwise close a cycle back through this path.
func (g *Graph) hasPath(start, target NodeID) bool {
	if start == target {
		return true
	}
	visited := make(map[NodeID]bool)
	stack := []NodeID{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true
		if n == target {
			return true
		}
		for dep := range g.nodes[n].dependents {
			if !visited[dep] {
				stack = append(stack, dep)
			}
		}
	}
	return false
}

// Freeze switches the graph to an immutable phase: AddNode and AddEdge
// fail from this point on.
func (g *Graph) Freeze() {
	g.frozen = true
}

func (g *Graph) Frozen() bool {
	return g.frozen
}

func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

func (g *Graph) Node(id NodeID) (*Node, error) {
	return g.node(id)
}

// sortNodeIDs returns ids in ascending order so that callers iterating
// over what were originally Go maps (deps/dependents are keyed by
// NodeID for O(1) membership tests) see a deterministic order.
func sortNodeIDs(ids []NodeID) []NodeID {
	slices.SortFunc(ids, func(a, b NodeID) int { return int(a) - int(b) })
	return ids
}

// Dependencies returns id's dependency set as a slice, sorted by id.
func (g *Graph) Dependencies(id NodeID) []NodeID {
	n := g.nodes[id]
	out := make([]NodeID, 0, len(n.deps))
	for d := range n.deps {
		out = append(out, d)
	}
	return sortNodeIDs(out)
}

func (g *Graph) Dependents(id NodeID) []NodeID {
	n := g.nodes[id]
	out := make([]NodeID, 0, len(n.dependents))
	for d := range n.dependents {
		out = append(out, d)
	}
	return sortNodeIDs(out)
}

// Roots returns every node with no dependencies, sorted by id.
func (g *Graph) Roots() []NodeID {
	var out []NodeID
	for _, n := range g.nodes {
		if len(n.deps) == 0 {
			out = append(out, n.ID)
		}
	}
	return sortNodeIDs(out)
}

// Leaves returns every node with no dependents, sorted by id.
func (g *Graph) Leaves() []NodeID {
	var out []NodeID
	for _, n := range g.nodes {
		if len(n.dependents) == 0 {
			out = append(out, n.ID)
		}
	}
	return sortNodeIDs(out)
}

// Ready returns every node whose full dependency set is contained in
// completed, excluding nodes already in completed themselves, sorted by
// id.
func (g *Graph) Ready(completed map[NodeID]bool) []NodeID {
	var out []NodeID
	for _, n := range g.nodes {
		if completed[n.ID] {
			continue
		}
		satisfied := true
		for d := range n.deps {
			if !completed[d] {
				satisfied = false
				break
			}
		}
		if satisfied {
			out = append(out, n.ID)
		}
	}
	return sortNodeIDs(out)
}

// TopologicalSort runs Kahn's algorithm on in-degrees, dequeuing from
// the zero-in-degree roots outward. That BFS order already places every
// dependency before its dependents, so it is returned as-is. It fails
// with ErrTopologySortFailed if a residual cycle prevents every node
// from being visited (AddEdge should already have ruled this out; this
// is a defensive final check).
func (g *Graph) TopologicalSort() ([]NodeID, error) {
	inDegree := make(map[NodeID]int, len(g.nodes))
	for _, n := range g.nodes {
		inDegree[n.ID] = len(n.deps)
	}

	queue := g.Roots()
	var order []NodeID
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for dep := range g.nodes[id].dependents {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, ErrTopologySortFailed
	}

	return order, nil
}

// MaxParallelism returns the size of the largest level in a level
// decomposition of the graph: level 0 is the roots, level k+1 is every
// node whose dependencies are all in levels <= k and which first
// becomes ready at level k+1.
func (g *Graph) MaxParallelism() int {
	if len(g.nodes) == 0 {
		return 0
	}
	level := make(map[NodeID]int, len(g.nodes))
	order, err := g.TopologicalSort()
	if err != nil {
		return 0
	}
	best := 0
	counts := make(map[int]int)
	for _, id := range order {
		maxDepLevel := -1
		for d := range g.nodes[id].deps {
			if level[d] > maxDepLevel {
				maxDepLevel = level[d]
			}
		}
		lvl := maxDepLevel + 1
		level[id] = lvl
		counts[lvl]++
		if counts[lvl] > best {
			best = counts[lvl]
		}
	}
	return best
}

// CriticalPathLength returns the length (node count) of the longest
// dependency chain in the graph.
func (g *Graph) CriticalPathLength() int {
	order, err := g.TopologicalSort()
	if err != nil {
		return 0
	}
	longest := make(map[NodeID]int, len(g.nodes))
	best := 0
	for _, id := range order {
		maxDep := 0
		for d := range g.nodes[id].deps {
			if longest[d] > maxDep {
				maxDep = longest[d]
			}
		}
		longest[id] = maxDep + 1
		if longest[id] > best {
			best = longest[id]
		}
	}
	return best
}
