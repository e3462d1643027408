package truth

import (
	"fmt"
)

// NoTrack marks a vertex or edge without a track payload.
const NoTrack = -1

// VertexKind tells real simulation vertices from synthetic ghost vertices.
type VertexKind uint8

const (
	// VertexReal is a vertex of the simulation record.
	VertexReal VertexKind = iota
	// VertexGhost anchors a stable particle that never decayed.
	VertexGhost
)

func (k VertexKind) String() string {
	switch k {
	case VertexReal:
		return "real"
	case VertexGhost:
		return "ghost"
	default:
		return fmt.Sprintf("VertexKind(%d)", uint8(k))
	}
}

// Vertex is a node of the decay graph.
//
// Real vertices keep the index of the track that decayed into them in Track,
// or NoTrack for primary interactions. Ghost vertices never carry a track;
// the stable particle lives on their incoming edge.
type Vertex struct {
	ID         int        `json:"id"`
	Kind       VertexKind `json:"kind"`
	Track      int        `json:"track"`
	Cumulative int        `json:"cumulative"`

	parent   int
	children []int
}

// Edge is a parent→child decay relation carrying the child track.
type Edge struct {
	ID         int `json:"id"`
	Parent     int `json:"parent"`
	Child      int `json:"child"`
	Track      int `json:"track"`
	Hits       int `json:"hits"`
	Cumulative int `json:"cumulative"`
}

// DecayGraph is an arena of vertices and edges addressed by index.
//
// Vertex ids 0..NumReal()-1 are the simulation vertices in input order; ghost
// vertices are appended after them. Every vertex has at most one incoming
// edge and AddEdge refuses edges that would close a cycle, so the graph is a
// forest rooted at the vertices without a parent edge.
type DecayGraph struct {
	vertices []Vertex
	edges    []Edge
	numReal  int

	// roots is a union-find forest over vertices whose representative is the
	// root of the vertex's tree.
	roots []int
}

// NewDecayGraph creates a graph with n real vertices and no edges.
func NewDecayGraph(n int) *DecayGraph {
	g := &DecayGraph{
		vertices: make([]Vertex, n),
		numReal:  n,
		roots:    make([]int, n),
	}
	for i := range g.vertices {
		g.vertices[i] = Vertex{ID: i, Kind: VertexReal, Track: NoTrack, parent: -1}
		g.roots[i] = i
	}
	return g
}

// NumVertices returns the number of vertices, ghosts included.
func (g *DecayGraph) NumVertices() int { return len(g.vertices) }

// NumReal returns the number of real vertices.
func (g *DecayGraph) NumReal() int { return g.numReal }

// NumEdges returns the number of edges.
func (g *DecayGraph) NumEdges() int { return len(g.edges) }

// Vertex returns a copy of vertex id.
func (g *DecayGraph) Vertex(id int) Vertex { return g.vertices[id] }

// Edge returns a copy of edge id.
func (g *DecayGraph) Edge(id int) Edge { return g.edges[id] }

// Children returns the outgoing edge ids of a vertex in insertion order.
func (g *DecayGraph) Children(v int) []int { return g.vertices[v].children }

// ParentEdge returns the incoming edge id of a vertex, or -1 for roots.
func (g *DecayGraph) ParentEdge(v int) int { return g.vertices[v].parent }

// AddGhost appends a ghost vertex and returns its id.
func (g *DecayGraph) AddGhost() int {
	id := len(g.vertices)
	g.vertices = append(g.vertices, Vertex{ID: id, Kind: VertexGhost, Track: NoTrack, parent: -1})
	g.roots = append(g.roots, id)
	return id
}

func (g *DecayGraph) valid(v int) bool {
	return v >= 0 && v < len(g.vertices)
}

// AddEdge connects parent to child with the given track and own hit count.
func (g *DecayGraph) AddEdge(parent, child, track, hits int) (int, error) {
	if !g.valid(parent) || !g.valid(child) {
		return -1, fmt.Errorf("%w: edge %d->%d with %d vertices", ErrVertexRange, parent, child, len(g.vertices))
	}
	if g.vertices[child].parent >= 0 {
		return -1, fmt.Errorf("%w: vertex %d", ErrSecondParent, child)
	}
	// child has no parent edge, so it is the root of its own tree; the edge
	// closes a cycle exactly when parent lives in that tree.
	if g.treeRoot(parent) == child {
		return -1, fmt.Errorf("%w: edge %d->%d", ErrCycle, parent, child)
	}

	id := len(g.edges)
	g.edges = append(g.edges, Edge{ID: id, Parent: parent, Child: child, Track: track, Hits: hits})
	g.vertices[child].parent = id
	g.vertices[parent].children = append(g.vertices[parent].children, id)
	g.roots[child] = g.treeRoot(parent)
	return id, nil
}

// treeRoot returns the root of the tree containing v.
func (g *DecayGraph) treeRoot(v int) int {
	for g.roots[v] != v {
		g.roots[v] = g.roots[g.roots[v]]
		v = g.roots[v]
	}
	return v
}

// setVertexTrack records the track that decayed into a real vertex.
func (g *DecayGraph) setVertexTrack(v, track int) {
	g.vertices[v].Track = track
}

// Roots returns the vertices without a parent edge, ascending.
func (g *DecayGraph) Roots() []int {
	var roots []int
	for i := range g.vertices {
		if g.vertices[i].parent < 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

// IsLeaf reports whether a vertex has no outgoing edges.
func (g *DecayGraph) IsLeaf(v int) bool {
	return len(g.vertices[v].children) == 0
}

// Validate checks the structural invariants: ghost ids follow the real ids,
// every non-root vertex has exactly one parent edge and the graph is acyclic.
func (g *DecayGraph) Validate() error {
	incoming := make([]int, len(g.vertices))
	for _, e := range g.edges {
		if !g.valid(e.Parent) || !g.valid(e.Child) {
			return fmt.Errorf("%w: edge %d", ErrVertexRange, e.ID)
		}
		incoming[e.Child]++
	}
	for i, v := range g.vertices {
		if v.Kind == VertexGhost && i < g.numReal {
			return fmt.Errorf("ghost vertex %d inside real range [0,%d)", i, g.numReal)
		}
		if v.Kind == VertexReal && i >= g.numReal {
			return fmt.Errorf("real vertex %d outside real range [0,%d)", i, g.numReal)
		}
		if incoming[i] > 1 {
			return fmt.Errorf("%w: vertex %d has %d", ErrSecondParent, i, incoming[i])
		}
		if v.Kind == VertexGhost && len(v.children) > 0 {
			return fmt.Errorf("ghost vertex %d has outgoing edges", i)
		}
	}

	// Everything must be reachable from a root; a vertex that is not sits on a cycle.
	seen := 0
	visited := make([]bool, len(g.vertices))
	stack := g.Roots()
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[v] {
			return fmt.Errorf("%w: vertex %d reached twice", ErrCycle, v)
		}
		visited[v] = true
		seen++
		for _, e := range g.vertices[v].children {
			stack = append(stack, g.edges[e].Child)
		}
	}
	if seen != len(g.vertices) {
		return fmt.Errorf("%w: %d vertices unreachable from roots", ErrCycle, len(g.vertices)-seen)
	}
	return nil
}

// GraphSnapshot is the serializable form of a decay graph.
type GraphSnapshot struct {
	BunchCrossing int       `json:"bunchCrossing"`
	NumReal       int       `json:"numReal"`
	Vertices      []Vertex  `json:"vertices"`
	Edges         []Edge    `json:"edges"`
	TrackIDs      []TrackID `json:"trackIds"`
}

// Snapshot copies the graph into its serializable form. tracks resolves the
// track indices stored on vertices and edges to barcodes.
func (g *DecayGraph) Snapshot(bunchCrossing int, tracks []SimTrack) GraphSnapshot {
	s := GraphSnapshot{
		BunchCrossing: bunchCrossing,
		NumReal:       g.numReal,
		Vertices:      make([]Vertex, len(g.vertices)),
		Edges:         make([]Edge, len(g.edges)),
		TrackIDs:      make([]TrackID, len(tracks)),
	}
	for i, v := range g.vertices {
		s.Vertices[i] = Vertex{ID: v.ID, Kind: v.Kind, Track: v.Track, Cumulative: v.Cumulative}
	}
	copy(s.Edges, g.edges)
	for i, t := range tracks {
		s.TrackIDs[i] = t.TrackID
	}
	return s
}
