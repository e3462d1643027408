package truth

import (
	"github.com/orneryd/calotruth/pkg/pool"
)

// frame is one entry of the explicit traversal stack: a vertex and the
// position of the next child edge to descend into.
type frame struct {
	vertex int
	next   int
}

var framePool = pool.NewSlicePool[frame](64)

// Annotate fills the cumulative hit counts of every vertex and edge.
//
// Each root is walked depth-first in post-order. Once all children of a vertex
// are done, every child edge gets its own hit count plus the cumulative count
// of its child vertex, and the vertex gets the sum over its child edges.
// Vertices unreachable from a root keep zero.
//
// The walk uses an explicit stack, so decay chains of any depth are handled
// without growing the goroutine stack, in time linear in vertices plus edges.
func Annotate(g *DecayGraph) {
	for i := range g.vertices {
		g.vertices[i].Cumulative = 0
	}
	for i := range g.edges {
		g.edges[i].Cumulative = 0
	}

	visited := pool.GetBoolSlice(len(g.vertices))
	defer pool.PutBoolSlice(visited)
	stack := framePool.Get()
	defer func() { framePool.Put(stack) }()

	for _, root := range g.Roots() {
		visited[root] = true
		stack = append(stack, frame{vertex: root})

		for len(stack) > 0 {
			top := len(stack) - 1
			v := &g.vertices[stack[top].vertex]

			if stack[top].next < len(v.children) {
				e := v.children[stack[top].next]
				stack[top].next++
				child := g.edges[e].Child
				if visited[child] {
					continue
				}
				visited[child] = true
				stack = append(stack, frame{vertex: child})
				continue
			}

			sum := 0
			for _, e := range v.children {
				edge := &g.edges[e]
				edge.Cumulative = edge.Hits + g.vertices[edge.Child].Cumulative
				sum += edge.Cumulative
			}
			v.Cumulative = sum
			stack = stack[:top]
		}
	}
}
